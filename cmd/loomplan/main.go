package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joshharrison/loomplan/internal/config"
	"github.com/joshharrison/loomplan/internal/engine"
	"github.com/joshharrison/loomplan/internal/project"
	"github.com/joshharrison/loomplan/internal/reporter"
	"github.com/joshharrison/loomplan/internal/store"
	"github.com/joshharrison/loomplan/internal/tracker"
	"github.com/joshharrison/loomplan/internal/ui"
)

var (
	cfg    config.Config
	logger *zap.Logger

	flagJSON     bool
	flagNow      int
	flagStateDir string
	flagOutput   string
	flagPin      bool
	flagFormat   string
	flagQuiet    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loomplan",
		Short: "Critical path and resource-constrained project scheduling",
		Long: `Loomplan reads a project snapshot (activities, resources, work streams),
computes earliest and latest times, slack and the critical path, then assigns
resources under capacity limits. Recorded progress is kept in a ledger and
replayed as fixed history whenever the schedule is recomputed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			if flagStateDir != "" {
				cfg.State.Dir = flagStateDir
			}
			logger, err = cfg.Logger()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().IntVar(&flagNow, "now", 0, "First re-plannable time unit; earlier progress is fixed")
	rootCmd.PersistentFlags().StringVar(&flagStateDir, "state-dir", "", "Directory holding the progress ledger")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(trackCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(vizCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// compute is shared by every command: load the snapshot and ledger, then run
// the engine.
func compute(path string, now int) (*project.Snapshot, *tracker.Ledger, *engine.Result, error) {
	s, err := project.LoadFile(path)
	if err != nil {
		return nil, nil, nil, err
	}

	start, err := cfg.Start()
	if err != nil {
		return nil, nil, nil, err
	}
	if start != nil {
		s.ProjectStart = start
	}

	ledger, err := loadLedger(s)
	if err != nil {
		return nil, nil, nil, err
	}

	eng := engine.New(engine.Options{
		Logger:       logger,
		SkipWeekends: cfg.Scheduler.SkipWeekends,
		MaxDeferral:  cfg.Scheduler.MaxDeferral,
		Now:          now,
	})
	result, err := eng.Compute(s, ledger)
	if err != nil {
		return nil, nil, nil, err
	}
	ledger.Rebase(result.Plans())
	return s, ledger, result, nil
}

// loadLedger prefers the stored ledger, then the snapshot's own trackers.
func loadLedger(s *project.Snapshot) (*tracker.Ledger, error) {
	plans := tracker.PlansFor(s.Activities)
	path := cfg.ProgressPath()
	if !tracker.Exists(path) {
		return tracker.FromTrackers(s.Resources, plans, s.Trackers)
	}
	logger.Debug("loading progress ledger", zap.String("path", path), zap.String("driver", cfg.State.Driver))

	if cfg.State.Driver != "sqlite" {
		return tracker.Load(path, s.Resources, plans)
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	ledger, err := db.Ledger(context.Background(), s.Resources, plans)
	if err != nil {
		return nil, err
	}
	if ledger.Len() == 0 {
		return tracker.FromTrackers(s.Resources, plans, s.Trackers)
	}
	return ledger, nil
}

// saveEntry persists a recorded entry. A fresh database is seeded with the
// whole ledger so snapshot trackers are not lost.
func saveEntry(ledger *tracker.Ledger, e tracker.Entry) error {
	path := cfg.ProgressPath()
	if cfg.State.Driver != "sqlite" {
		return ledger.Save(path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	stored, err := db.Entries(ctx)
	if err != nil {
		return err
	}
	pending := []tracker.Entry{e}
	if len(stored) == 0 {
		pending = ledger.Entries()
	}
	for _, p := range pending {
		if err := db.Append(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule <snapshot>",
		Short: "Compute the schedule and resource assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ledger, result, err := compute(args[0], flagNow)
			if err != nil {
				return err
			}
			rpt := reporter.New(s, result, ledger)

			if flagOutput != "" {
				out := *s
				out.Activities = result.Apply(s.Activities)
				if flagPin {
					out.Activities = project.Pin(out.Activities, result.Allocation.Pinned())
				}
				out.Trackers = ledger.Trackers()
				data, err := project.Encode(&out)
				if err != nil {
					return err
				}
				if err := os.WriteFile(flagOutput, data, 0644); err != nil {
					return fmt.Errorf("write snapshot: %w", err)
				}
			}

			if flagJSON {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return result.Err()
			}

			if !flagQuiet {
				ui.PrintBanner(os.Stderr)
				rpt.PrintSchedule(os.Stdout)
			}
			fmt.Print(rpt.Summary())
			return result.Err()
		},
	}

	cmd.Flags().StringVar(&flagOutput, "output", "", "Write the computed snapshot to a file")
	cmd.Flags().BoolVar(&flagPin, "pin", false, "Pin every activity to its assignment in the written snapshot")
	cmd.Flags().BoolVar(&flagQuiet, "quiet", false, "Print only the summary")

	return cmd
}

func trackCmd() *cobra.Command {
	var entry tracker.Entry

	cmd := &cobra.Command{
		Use:   "track <snapshot>",
		Short: "Record completed work for an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, ledger, _, err := compute(args[0], flagNow)
			if err != nil {
				return err
			}
			if err := ledger.Record(entry); err != nil {
				return err
			}
			if err := saveEntry(ledger, entry); err != nil {
				return err
			}
			logger.Info("progress recorded",
				zap.Int("time", entry.Time),
				zap.Int("resource", entry.ResourceID),
				zap.Int("activity", entry.ActivityID),
				zap.Int("units", entry.Units))

			if flagJSON {
				data, err := json.MarshalIndent(entry, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			fmt.Printf("%s Recorded %d unit(s) on activity %s by resource %d at time %d\n",
				ui.Green("✓"), entry.Units, ui.BoldMagenta(entry.ActivityID), entry.ResourceID, entry.Time)
			return nil
		},
	}

	cmd.Flags().IntVar(&entry.Time, "time", 0, "Time unit the work was done in")
	cmd.Flags().IntVar(&entry.ResourceID, "resource", 0, "Resource that did the work")
	cmd.Flags().IntVar(&entry.ActivityID, "activity", 0, "Activity worked on")
	cmd.Flags().IntVar(&entry.Units, "units", 1, "Work units completed")
	_ = cmd.MarkFlagRequired("resource")
	_ = cmd.MarkFlagRequired("activity")

	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <snapshot>",
		Short: "Show completed and remaining work per activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ledger, result, err := compute(args[0], flagNow)
			if err != nil {
				return err
			}
			rpt := reporter.New(s, result, ledger)

			if flagJSON {
				data, err := rpt.JSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			rpt.PrintStatus(os.Stdout)
			return nil
		},
	}
	return cmd
}

func vizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viz <snapshot>",
		Short: "Print the activity network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ledger, result, err := compute(args[0], flagNow)
			if err != nil {
				return err
			}
			rpt := reporter.New(s, result, ledger)

			switch flagFormat {
			case "dot":
				rpt.WriteDOT(os.Stdout)
			case "json":
				data, err := rpt.GraphJSON()
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			case "ascii":
				rpt.WriteASCII(os.Stdout)
			default:
				return fmt.Errorf("unknown format %q (want ascii, dot or json)", flagFormat)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagFormat, "format", "ascii", "Output format (ascii, dot, json)")

	return cmd
}
