package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"habitsync/cmd/habitsync/ui"
	"habitsync/internal/config"
	"habitsync/internal/content"
	"habitsync/internal/engine"
	"habitsync/internal/export"
	"habitsync/internal/gateway"
	"habitsync/internal/habitica"
	"habitsync/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger

	// Wired once in PersistentPreRunE and shared by every command.
	eng *engine.Engine
)

// rootCmd launches the interactive dashboard when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "habitsync",
	Short: "habitsync - Habitica sync engine and terminal dashboard",
	Long: `habitsync keeps a local, typed view of your Habitica tasks, tags, party
and game content, computes due status and the damage your missed Dailies
will deal to you and your party, and serves it all to a terminal dashboard.

Run without arguments to open the dashboard.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" {
			return nil // init runs before a valid config exists
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}

		gw := gateway.New(gateway.Config{
			UserID:   cfg.API.UserID,
			APIToken: cfg.API.APIToken,
			BaseURL:  cfg.API.BaseURL,
			Timeout:  cfg.API.RequestTimeout(),
		}, logger.Named("gateway"))
		store := content.NewStore(cfg.Cache.Dir, gw, logger.Named("content"))
		eng = engine.New(gw, store, cfg.Cache.Dir, logger.Named("engine"))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard()
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Writes a starter config file with placeholders for the account id and
API token. Credentials can also live in HABITICA_USER_ID and
HABITICA_API_TOKEN instead of the file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := config.DefaultConfig()
		if err := c.Save(configPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", configPath)
		fmt.Println("fill in api.user_id and api.api_token, or export HABITICA_USER_ID / HABITICA_API_TOKEN")
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one refresh cycle and print a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.Refresh(cmd.Context()); err != nil {
			return err
		}
		snap := eng.Stats()
		fmt.Printf("synced %d tasks", snap.TotalTasks)
		for _, kind := range []habitica.Kind{habitica.KindHabit, habitica.KindDaily, habitica.KindTodo, habitica.KindReward} {
			fmt.Printf("  %s:%d", kind, snap.Totals[kind])
		}
		fmt.Println()
		if snap.DamageToSelf > 0 {
			fmt.Printf("projected damage if you miss today's Dailies: %.1f hp", snap.DamageToSelf)
			if snap.DamageToParty > 0 {
				fmt.Printf(" (+%.1f to party)", snap.DamageToParty)
			}
			fmt.Println()
		}
		return nil
	},
}

var damageCmd = &cobra.Command{
	Use:   "damage",
	Short: "List due Dailies with their projected damage",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.Refresh(cmd.Context()); err != nil {
			return err
		}
		due := eng.Tasks(engine.TaskFilter{Kind: habitica.KindDaily, Status: habitica.StatusDue})
		if len(due) == 0 {
			fmt.Println("nothing due, no damage projected")
			return nil
		}
		for _, rec := range due {
			self, party := 0.0, 0.0
			if rec.DamageToSelf != nil {
				self = *rec.DamageToSelf
			}
			if rec.DamageToParty != nil {
				party = *rec.DamageToParty
			}
			fmt.Printf("%-40.40s  self %5.1f  party %5.1f\n", rec.Text, self, party)
		}
		return nil
	},
}

var sleepCmd = &cobra.Command{
	Use:   "sleep",
	Short: "Toggle resting in the inn",
	RunE: func(cmd *cobra.Command, args []string) error {
		sleeping, err := eng.ToggleSleep(cmd.Context())
		if err != nil {
			return err
		}
		if sleeping {
			fmt.Println("now resting in the inn (Dailies deal no damage)")
		} else {
			fmt.Println("checked out of the inn")
		}
		eng.Wait()
		return nil
	},
}

var scoreDown bool

var scoreCmd = &cobra.Command{
	Use:   "score [task-id]",
	Short: "Score a task (up by default, --down for habits)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.Refresh(cmd.Context()); err != nil {
			return err
		}
		if err := eng.ScoreTask(cmd.Context(), args[0], !scoreDown); err != nil {
			return err
		}
		fmt.Println("scored")
		eng.Wait()
		return nil
	},
}

var addNotes string

var addCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a new to-do",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := args[0]
		for _, a := range args[1:] {
			text += " " + a
		}
		id, err := eng.AddTodo(cmd.Context(), text, addNotes)
		if err != nil {
			return err
		}
		fmt.Printf("created %s\n", id)
		eng.Wait()
		return nil
	},
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags and how many tasks use each",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.Refresh(cmd.Context()); err != nil {
			return err
		}
		counts := map[string]int{}
		for _, rec := range eng.Tasks(engine.TaskFilter{}) {
			for _, id := range rec.TagIDs {
				counts[id]++
			}
		}
		for _, tag := range eng.Tags(engine.TagFilter{}) {
			fmt.Printf("%-30.30s %4d  %s\n", tag.Name, counts[tag.ID], tag.ID)
		}
		return nil
	},
}

var challengesForce bool

var challengesCmd = &cobra.Command{
	Use:   "challenges",
	Short: "List joined challenges (cached; --refresh to refetch)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.LoadChallenges(cmd.Context(), challengesForce); err != nil {
			return err
		}
		for _, c := range eng.Challenges(engine.ChallengeFilter{}) {
			fmt.Printf("%-40.40s %4d members  %s\n", c.Name, c.MemberCount, c.ID)
		}
		return nil
	},
}

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tasks and stats to a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.Refresh(cmd.Context()); err != nil {
			return err
		}
		path, err := export.Write(exportDir, export.Document{
			ExportedAt: time.Now(),
			Stats:      eng.Stats(),
			Tasks:      eng.Tasks(engine.TaskFilter{}),
			Tags:       eng.Tags(engine.TagFilter{}),
		})
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

// runDashboard performs the first refresh, then hands the engine to the
// bubbletea presentation layer.
func runDashboard() error {
	ctx := context.Background()
	if err := eng.Refresh(ctx); err != nil {
		// The dashboard can still open on stale/empty state; it shows the
		// error in its status line.
		logger.Warn("initial refresh failed", zap.Error(err))
	}

	model := ui.NewDashboard(eng)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	eng.Wait()
	return err
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	scoreCmd.Flags().BoolVar(&scoreDown, "down", false, "score the task down")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "notes for the new to-do")
	challengesCmd.Flags().BoolVar(&challengesForce, "refresh", false, "refetch instead of using the cache")
	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "directory to write the export into")

	rootCmd.AddCommand(initCmd, syncCmd, damageCmd, sleepCmd, scoreCmd, addCmd, tagsCmd, challengesCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
