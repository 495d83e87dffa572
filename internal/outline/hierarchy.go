package outline

import (
	"strings"
)

// Node is a parsed goal line placed in the document hierarchy.
type Node struct {
	Line   Line
	Meta   Meta
	Parent int // index into the node slice, -1 for roots
	Order  int
}

type frontierEntry struct {
	depth int
	index int
}

// Reconstruct infers each line's parent from indentation depths in one pass.
//
// The frontier holds, for every depth still open, the last line seen at that depth.
// Its depths are strictly increasing, so it is kept as a stack. A line's parent is
// the deepest open entry shallower than the line; afterwards every entry at the
// line's depth or deeper is closed and the line itself is opened.
func Reconstruct(depths []int) []int {
	parents := make([]int, len(depths))
	frontier := make([]frontierEntry, 0, 8)
	for i, d := range depths {
		for len(frontier) > 0 && frontier[len(frontier)-1].depth >= d {
			frontier = frontier[:len(frontier)-1]
		}
		parents[i] = -1
		if len(frontier) > 0 {
			parents[i] = frontier[len(frontier)-1].index
		}
		frontier = append(frontier, frontierEntry{depth: d, index: i})
	}
	return parents
}

// ParseOutline tokenizes every non-blank line of text and links it to its parent.
// Order is assigned sequentially from 1 in document order.
func ParseOutline(clock Clock, text string) []Node {
	return parseLines(clock, splitLines(text))
}

func parseLines(clock Clock, lines []string) []Node {
	var nodes []Node
	var depths []int
	for _, raw := range lines {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		line := TokenizeLine(raw)
		nodes = append(nodes, Node{
			Line:  line,
			Meta:  ParseMeta(clock, line.Meta),
			Order: len(nodes) + 1,
		})
		depths = append(depths, line.Depth)
	}
	for i, p := range Reconstruct(depths) {
		nodes[i].Parent = p
	}
	return nodes
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}
