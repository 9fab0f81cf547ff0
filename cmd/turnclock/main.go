// Package main is the turnclock command line tool. It drives a calendar
// through the same engine the server uses, against the configured record
// store or a throwaway in-memory one.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/keyxmakerx/turnclock/internal/app"
	"github.com/keyxmakerx/turnclock/internal/config"
	"github.com/keyxmakerx/turnclock/internal/middleware"
	"github.com/keyxmakerx/turnclock/internal/plugins/calendar"
)

var (
	calendarName string
	seedPath     string
	useMemory    bool
	jsonOutput   bool
	verbose      bool
	out          io.Writer = os.Stdout
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "turnclock",
		Short:         "Turn-driven calendar engine",
		Long:          "Inspect and drive turnclock calendars: dates, events and turn simulation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&calendarName, "calendar", "n", "", "Calendar name (default: DEFAULT_CALENDAR)")
	rootCmd.PersistentFlags().StringVar(&seedPath, "seed", "", "YAML seed for calendars without configuration")
	rootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "Use a throwaway in-memory store")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(dateCmd(), eventsCmd(), upcomingCmd(), simulateCmd(), commandCmd(),
		exportCmd(), importCmd(), hashKeyCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// engine opens the store and returns the calendar service and the calendar
// name to operate on. The returned func closes the store.
func engine() (calendar.CalendarService, string, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", nil, fmt.Errorf("loading config: %w", err)
	}
	if seedPath != "" {
		cfg.Calendar.SeedPath = seedPath
	}
	name := calendarName
	if name == "" {
		name = cfg.Calendar.DefaultName
	}

	var store *app.Store
	if useMemory {
		store, err = app.NewMemoryStore()
	} else {
		store, err = app.OpenStore(cfg)
	}
	if err != nil {
		return nil, "", nil, fmt.Errorf("opening store: %w", err)
	}

	a, err := app.New(cfg, store)
	if err != nil {
		store.Close()
		return nil, "", nil, err
	}
	if err := a.Calendars.EnsureDefaults(context.Background(), name); err != nil {
		store.Close()
		return nil, "", nil, err
	}
	return a.Calendars, name, func() { store.Close() }, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printNow(now *calendar.NowView) error {
	if jsonOutput {
		return printJSON(now)
	}
	if now == nil {
		fmt.Fprintln(out, "calendar has no usable configuration")
		return nil
	}
	fmt.Fprintf(out, "%s, %s (%s)\n", now.Date, now.Time12h, now.Time)
	fmt.Fprintf(out, "  %s, %s, day %d (%d/%d turns)\n",
		now.TimeOfDay, now.Season, now.DayNumber, now.Progress, now.ActionsPerDay)
	return nil
}

func printResult(res *calendar.TurnResult) error {
	if jsonOutput {
		return printJSON(res)
	}
	if res == nil {
		fmt.Fprintln(out, "calendar has no usable configuration")
		return nil
	}
	fmt.Fprintf(out, "turn %d [%s]", res.Turn, res.Transition.Kind)
	if res.Now != nil {
		fmt.Fprintf(out, " %s, %s", res.Now.Date, res.Now.Time)
	}
	fmt.Fprintln(out)
	if res.Message != "" {
		fmt.Fprintf(out, "  %s\n", res.Message)
	}
	for _, n := range res.Notifications {
		fmt.Fprintf(out, "  %s\n", n)
	}
	return nil
}

func dateCmd() *cobra.Command {
	var turn int

	cmd := &cobra.Command{
		Use:   "date",
		Short: "Print the current date and time",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, name, closeFn, err := engine()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			if cmd.Flags().Changed("turn") {
				if _, err := svc.ProcessTurn(ctx, name, turn, ""); err != nil {
					return err
				}
			}
			now, err := svc.Now(ctx, name)
			if err != nil {
				return err
			}
			return printNow(now)
		},
	}

	cmd.Flags().IntVarP(&turn, "turn", "t", 0, "Process this turn first")
	return cmd
}

func eventsCmd() *cobra.Command {
	var add, remove string
	var today bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List, add or remove events",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, name, closeFn, err := engine()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			switch {
			case add != "":
				ev, err := svc.AddEvent(ctx, name, add)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "added: %s\n", ev.Line)
				return nil
			case remove != "":
				n, err := svc.RemoveEvent(ctx, name, remove)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "removed %d event(s)\n", n)
				return nil
			case today:
				events, err := svc.TodayEvents(ctx, name)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(events)
				}
				for _, ev := range events {
					fmt.Fprintf(out, "%-24s %s\n", ev.Name, ev.Status.State)
				}
				return nil
			}

			events, err := svc.AllEvents(ctx, name)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(events)
			}
			for _, ev := range events {
				fmt.Fprintln(out, ev.Line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&add, "add", "", "Add an event line, e.g. \"Fair: annual 6/21 for 3 days\"")
	cmd.Flags().StringVar(&remove, "remove", "", "Remove every event with this name")
	cmd.Flags().BoolVar(&today, "today", false, "Show only today's events with their status")
	cmd.MarkFlagsMutuallyExclusive("add", "remove", "today")
	return cmd
}

func upcomingCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List events starting in the next days",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, name, closeFn, err := engine()
			if err != nil {
				return err
			}
			defer closeFn()

			events, err := svc.UpcomingEvents(cmd.Context(), name, days)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(events)
			}
			for _, ev := range events {
				fmt.Fprintf(out, "%-12s in %3d day(s)  %s\n", ev.Date, ev.DaysUntil, ev.Name)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 30, "Look-ahead in days")
	return cmd
}

func simulateCmd() *cobra.Command {
	var from, to, step int
	var quiet bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Process a run of turns and print what changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if step == 0 {
				return fmt.Errorf("--step must not be 0")
			}
			if (step > 0 && to < from) || (step < 0 && to > from) {
				return fmt.Errorf("--step %d never reaches --to %d from %d", step, to, from)
			}
			svc, name, closeFn, err := engine()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			for turn := from; (step > 0 && turn <= to) || (step < 0 && turn >= to); turn += step {
				res, err := svc.ProcessTurn(ctx, name, turn, "")
				if err != nil {
					return err
				}
				if quiet && res != nil && len(res.Notifications) == 0 {
					continue
				}
				if err := printResult(res); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&from, "from", 0, "First turn")
	cmd.Flags().IntVar(&to, "to", 200, "Last turn")
	cmd.Flags().IntVar(&step, "step", 1, "Turns between iterations (negative rewinds)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print turns with notifications")
	return cmd
}

func commandCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "command <text>",
		Short:   "Run a time command, e.g. \"advance 2 hours\"",
		Example: "  turnclock command \"set date 6/21/2024\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, name, closeFn, err := engine()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.ExecuteCommand(cmd.Context(), name, args[0])
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
}

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key <key>",
		Short: "Print the bcrypt hash to set as API_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := middleware.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, h)
			return nil
		},
	}
}
