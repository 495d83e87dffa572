package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"goalline/internal/app"
	"goalline/internal/editor"
	"goalline/internal/engine"
	"goalline/internal/outline"
	"goalline/internal/watch"
)

// document is one editable view of the goal store.
type document struct {
	name  string
	short string
	empty string
	read  func(ctx context.Context, e engine.Engine, all bool) (string, error)
	write func(ctx context.Context, e engine.Engine, text string) (engine.Summary, error)
}

var (
	tasksDoc = document{
		name:  "tasks",
		short: "the goal tree",
		empty: "Nothing to save.",
		read:  func(ctx context.Context, e engine.Engine, all bool) (string, error) { return e.TasksText(ctx, all) },
		write: func(ctx context.Context, e engine.Engine, text string) (engine.Summary, error) { return e.SyncTasks(ctx, text) },
	}
	scheduleDoc = document{
		name:  "schedule",
		short: "scheduled goals by day",
		empty: "Nothing to save.",
		read:  func(ctx context.Context, e engine.Engine, all bool) (string, error) { return e.ScheduleText(ctx, all) },
		write: func(ctx context.Context, e engine.Engine, text string) (engine.Summary, error) { return e.SyncSchedule(ctx, text) },
	}
)

func tasksCmd() *cobra.Command    { return documentCmd(tasksDoc) }
func scheduleCmd() *cobra.Command { return documentCmd(scheduleDoc) }

func documentCmd(d document) *cobra.Command {
	cmd := &cobra.Command{Use: d.name, Short: "Show, edit or sync " + d.short}
	cmd.AddCommand(documentShowCmd(d))
	cmd.AddCommand(documentEditCmd(d))
	cmd.AddCommand(documentSyncCmd(d))
	return cmd
}

func documentShowCmd(d document) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print " + d.short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				text, err := d.read(ctx, ws.Engine, all || ws.Config.Outline.IncludeArchived)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"text": text})
				}
				fmt.Println(text)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include done and cancelled goals")
	return cmd
}

func documentEditCmd(d document) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit " + d.short + " in your editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				text, err := d.read(ctx, ws.Engine, all || ws.Config.Outline.IncludeArchived)
				if err != nil {
					return err
				}
				return editAndSync(ctx, ws, d.name, text, d.empty, func(edited string) (engine.Summary, error) {
					return d.write(ctx, ws.Engine, edited)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include done and cancelled goals")
	return cmd
}

func documentSyncCmd(d document) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [FILE]",
		Short: "Merge " + d.short + " from FILE or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sum, err := d.write(ctx, e, text)
				if errors.Is(err, outline.ErrEmptyDocument) {
					fmt.Println(d.empty)
					return nil
				}
				if err != nil {
					return err
				}
				return printSummary(sum)
			})
		},
	}
	return cmd
}

func missionCmd() *cobra.Command {
	m := &cobra.Command{
		Use:   "mission",
		Short: "Show or edit a mission document",
		Long:  "A mission document has four sections: # Mission (the goal line), # Log (its notes), # Schedule (scheduled goals below it) and # Tasks (its subtree). Without an ID the first pending goal is the mission.",
	}
	m.AddCommand(&cobra.Command{
		Use:   "show [ID]",
		Short: "Print a mission document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				id, text, err := e.MissionText(ctx, optionalArg(args))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"mission_id": id, "text": text})
				}
				fmt.Println(text)
				return nil
			})
		},
	})
	m.AddCommand(&cobra.Command{
		Use:   "edit [ID]",
		Short: "Edit a mission document in your editor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				_, text, err := ws.Engine.MissionText(ctx, optionalArg(args))
				if err != nil {
					return err
				}
				return editAndSync(ctx, ws, "mission", text, "Mission required.", func(edited string) (engine.Summary, error) {
					return ws.Engine.SyncMission(ctx, edited)
				})
			})
		},
	})
	return m
}

func editAndSync(ctx context.Context, ws *app.Workspace, name, text, emptyMsg string, sync func(string) (engine.Summary, error)) error {
	ed := editor.Editor{Command: ws.Config.Editor.Command, Log: ws.Log}
	edited, err := ed.Edit(ctx, name, text)
	if err != nil {
		return err
	}
	if edited == strings.TrimRight(text, " \t\r\n") {
		fmt.Println("Nothing to save.")
		return nil
	}
	sum, err := sync(edited)
	if errors.Is(err, outline.ErrEmptyDocument) {
		fmt.Println(emptyMsg)
		return nil
	}
	if err != nil {
		return err
	}
	return printSummary(sum)
}

func exportCmd() *cobra.Command {
	var all, schedule bool
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the goal tree (or schedule) to FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := tasksDoc
			if schedule {
				d = scheduleDoc
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				text, err := d.read(ctx, e, all)
				if err != nil {
					return err
				}
				if err := atomic.WriteFile(args[0], strings.NewReader(text+"\n")); err != nil {
					return err
				}
				fmt.Println("Wrote", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include done and cancelled goals")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "export the schedule instead of the tree")
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Keep FILE and the goal tree in sync",
		Long:  "Writes the goal tree to FILE when it does not exist, then merges every saved edit and writes the canonical text back.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				e := ws.Engine
				all := ws.Config.Outline.IncludeArchived
				if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
					text, err := e.TasksText(ctx, all)
					if err != nil {
						return err
					}
					if err := atomic.WriteFile(path, strings.NewReader(text+"\n")); err != nil {
						return err
					}
				}
				log := ws.Log.With(zap.String("file", path))
				w := watch.Watcher{
					Path: path,
					Log:  log,
					OnChange: func(ctx context.Context) {
						if err := syncFile(ctx, e, path, all); err != nil {
							log.Error("sync failed", zap.Error(err))
						}
					},
				}
				fmt.Printf("Watching %s (Ctrl-C to stop)\n", path)
				return w.Run(ctx)
			})
		},
	}
	return cmd
}

// syncFile merges path and rewrites it only when the canonical text differs, so the
// rewrite settles after one round.
func syncFile(ctx context.Context, e engine.Engine, path string, all bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	content := string(data)
	sum, err := e.SyncTasks(ctx, content)
	if errors.Is(err, outline.ErrEmptyDocument) {
		return nil
	}
	if err != nil {
		return err
	}
	text, err := e.TasksText(ctx, all)
	if err != nil {
		return err
	}
	if sum.Changes() > 0 {
		e.Log.Info("file merged", zap.Int("changes", sum.Changes()))
	}
	if strings.TrimRight(content, " \t\r\n") == text {
		return nil
	}
	return atomic.WriteFile(path, strings.NewReader(text+"\n"))
}

func printSummary(sum engine.Summary) error {
	if viper.GetBool("json") {
		return printJSON(sum)
	}
	if sum.Changes() == 0 {
		fmt.Println("No changes.")
	} else {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Created", "Renamed", "State", "Rescheduled", "Moved", "Notes"})
		tw.AppendRow(table.Row{sum.Created, sum.TextChanged, sum.StateChanged, sum.Rescheduled, sum.Reparented, sum.NotesCreated + sum.NotesChanged})
		tw.Render()
	}
	for _, edge := range sum.Dropped {
		fmt.Fprintf(os.Stderr, "warning: %s not placed under %s (would form a cycle)\n", edge.ChildID, edge.ParentID)
	}
	return nil
}

func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(args[0])
	return string(data), err
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
