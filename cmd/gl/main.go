package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"goalline/internal/app"
	"goalline/internal/config"
	"goalline/internal/db"
	"goalline/internal/domain"
	"goalline/internal/engine"
	"goalline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "gl",
	Short: "Goalline CLI",
	Long: `Goalline keeps hierarchical goals as plain indented text.
- Tasks: the whole goal tree, one goal per line, four spaces per level.
- Status: "+ " marks a goal done, "_ " cancelled; anything else is pending.
- Metadata: text after "  # " holds an optional schedule (20240105 or 20240105-0930),
  "..." when the goal has notes, and the 7-character goal id. Lines without an id are new.
- Schedule: scheduled goals grouped under date headings.
- Mission: one goal with its log of notes, its schedule and its task tree.
Edit any of them with 'gl tasks edit', 'gl schedule edit' or 'gl mission edit'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GOALLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("timezone", "", "timezone for schedule tokens (overrides config)")
	flags.String("editor", "", "editor command (overrides config)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	for _, name := range []string{"workspace", "json", "timezone", "editor", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(missionCmd())
	rootCmd.AddCommand(goalCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
}

func goalCmd() *cobra.Command {
	g := &cobra.Command{Use: "goal", Short: "Inspect goals"}
	g.AddCommand(goalListCmd())
	g.AddCommand(goalGetCmd())
	return g
}

func goalListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				goals, err := e.Goals(ctx, all)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(goals)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Text", "State", "Schedule", "Parents", "Notes"})
				for _, g := range goals {
					tw.AppendRow(table.Row{g.ID, g.Text, g.State.String(), scheduleString(e, g), strings.Join(g.ParentIDs, ","), g.NoteCount})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include done and cancelled goals")
	return cmd
}

func goalGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show a goal and its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				g, err := e.Goal(ctx, args[0])
				if err != nil {
					return err
				}
				notes, err := e.Notes(ctx, g.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"goal": g, "notes": notes})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRows([]table.Row{
					{"ID", g.ID},
					{"Text", g.Text},
					{"State", g.State.String()},
					{"Schedule", scheduleString(e, g)},
					{"Parents", strings.Join(g.ParentIDs, ", ")},
					{"Children", strings.Join(g.ChildIDs, ", ")},
					{"Created", g.CreatedAt.Format(time.RFC3339)},
				})
				tw.Render()
				for _, n := range notes {
					fmt.Printf("\n%s  %s\n%s\n", e.Clock.FormatTimestamp(n.CreatedAt), n.ID, n.Text)
				}
				return nil
			})
		},
	}
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count goals by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.Stats(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(stats)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Pending", "Done", "Cancelled", "Total", "Notes"})
				tw.AppendRow(table.Row{stats.Pending, stats.Done, stats.Cancelled, stats.Total(), stats.Notes})
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every change a sync made: goals created, renamed, completed, rescheduled or moved, and notes.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Payload"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind (goal, note)")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func doctorCmd() *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Find goals caught in link cycles",
		Long:  fmt.Sprintf("Reports goals that sit on a parent cycle or are reached more than %d times from the roots. With --fix their links are removed.", engine.MaxVisits),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.Doctor(ctx, fix)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				if len(report.Flagged()) == 0 {
					fmt.Println("No problems found.")
					return nil
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Goal", "Problem"})
				for _, id := range report.Cyclic {
					tw.AppendRow(table.Row{id, "cycle"})
				}
				for _, id := range report.Overvisited {
					tw.AppendRow(table.Row{id, "reached too often"})
				}
				tw.Render()
				if fix {
					fmt.Printf("Removed %d links.\n", report.Unlinked)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "remove links of flagged goals")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in goalline.yml at the workspace root; GOALLINE_* environment variables override it.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show resolved config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"), overrides())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			out, err := config.ToYAML(cfg)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default goalline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("Wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				cfg := ws.Config
				if addr == "" {
					addr = cfg.Server.Addr
				}
				if basePath == "" {
					basePath = cfg.Server.BasePath
				}
				secret := cfg.Server.JWTSecret
				if secret == "" {
					ws.Log.Warn("server.jwt_secret not set; API is unauthenticated")
				}
				handler, err := server.New(server.Config{
					Engine:   ws.Engine,
					BasePath: basePath,
					Auth:     server.AuthConfig{JWTSecret: secret},
					Log:      ws.Log,
				})
				if err != nil {
					return err
				}
				server.StartWebhooks(ctx, ws.Engine, ws.Log)
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				ws.Log.Info("serving API", zap.String("addr", addr), zap.String("base_path", basePath))
				fmt.Printf("Serving goalline API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"), overrides())
			if err != nil {
				return err
			}
			token, err := server.SignToken(cfg.Server.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"token": token})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "local-user", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime; 0 for none")
	return cmd
}

// --- helpers ---

func overrides() app.Overrides {
	return app.Overrides{
		Timezone: viper.GetString("timezone"),
		Editor:   viper.GetString("editor"),
		LogLevel: viper.GetString("log-level"),
	}
}

func withWorkspace(ctx context.Context, fn func(context.Context, *app.Workspace) error) error {
	ws, err := app.Open(ctx, viper.GetString("workspace"), overrides())
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withWorkspace(ctx, func(ctx context.Context, ws *app.Workspace) error {
		return fn(ctx, ws.Engine)
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func scheduleString(e engine.Engine, g domain.Goal) string {
	if g.ScheduleAt == nil {
		return ""
	}
	return e.Clock.FormatTimestamp(*g.ScheduleAt)
}
