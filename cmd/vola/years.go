package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hrakoto/vola/internal/cli"
	"github.com/hrakoto/vola/internal/model"
)

func yearsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "years",
		Short: "Manage yearly summaries",
		Long:  `Inspect, close, and reopen yearly contribution totals. Closing a year freezes its total; an open year is always recomputed from the ledger.`,
	}

	cmd.AddCommand(yearSummaryCmd())
	cmd.AddCommand(listYearsCmd())
	cmd.AddCommand(closeYearCmd())
	cmd.AddCommand(reopenYearCmd())
	cmd.AddCommand(rolloverCmd())

	return cmd
}

func parseYearArg(arg string) (int, error) {
	year, err := strconv.Atoi(arg)
	if err != nil || year < 1900 || year > 9999 {
		return 0, fmt.Errorf("invalid year %q", arg)
	}
	return year, nil
}

func yearSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <year>",
		Short: "Show a year's summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			year, err := parseYearArg(args[0])
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			summary, err := store.GetYearSummary(ctx, year)
			if err != nil {
				return fmt.Errorf("failed to get year summary: %w", err)
			}

			printSummary(summary)
			return nil
		},
	}
}

func printSummary(summary *model.YearSummary) {
	status := cli.InfoStyle.Render(cli.OpenIcon + " open (live total)")
	if summary.Closed() {
		status = cli.WarningStyle.Render(fmt.Sprintf("%s closed %s", cli.LockIcon, summary.ClosedAt.Format("2006-01-02")))
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Year %d", summary.Year)))
	fmt.Printf("  Total:  %s\n", summary.Total.String())
	fmt.Printf("  Status: %s\n", status)
	if summary.Note != "" {
		fmt.Printf("  Note:   %s\n", summary.Note)
	}
}

func listYearsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all yearly summaries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			summaries, err := store.ListYearSummaries(ctx)
			if err != nil {
				return fmt.Errorf("failed to list year summaries: %w", err)
			}

			if len(summaries) == 0 {
				fmt.Println(cli.FormatInfo("No contributions recorded yet."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				cli.HeaderStyle.Render("Year"),
				cli.HeaderStyle.Render("Total"),
				cli.HeaderStyle.Render("Status"),
				cli.HeaderStyle.Render("Note"))

			for _, s := range summaries {
				status := "open"
				if s.Closed() {
					status = "closed " + s.ClosedAt.Format("2006-01-02")
				}
				note := s.Note
				if note == "" {
					note = cli.SubtleStyle.Render("-")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Year, s.Total.String(), status, note)
			}
			return nil
		},
	}
}

func closeYearCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "close <year>",
		Short: "Close a year, freezing its total",
		Long:  `Compute the year's total and freeze it. Later contributions for the year are still stored but never change the frozen total.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			year, err := parseYearArg(args[0])
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			summary, err := store.CloseYear(ctx, year, note)
			if err != nil {
				return fmt.Errorf("failed to close year: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Closed year %d with total %s", summary.Year, summary.Total.String())))
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "closing note (generated when empty)")
	return cmd
}

func reopenYearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reopen <year>",
		Short: "Reopen a closed year",
		Long:  `Discard a year's frozen total and note; its summary reverts to live computation until closed again.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			year, err := parseYearArg(args[0])
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if !yes {
				ok, err := cli.NewConfirmer(os.Stdin, os.Stdout).Confirm(ctx,
					fmt.Sprintf("Reopen year %d? Its frozen total and closing note will be discarded.", year))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println(cli.FormatInfo("Aborted."))
					return nil
				}
			}

			summary, err := store.ReopenYear(ctx, year)
			if err != nil {
				return fmt.Errorf("failed to reopen year: %w", err)
			}

			fmt.Println(cli.FormatWarning(fmt.Sprintf("Reopened year %d (live total %s)", summary.Year, summary.Total.String())))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}

func rolloverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollover",
		Short: "Close the previous calendar year if still open",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			summary, err := store.CloseRolledOverYear(ctx)
			if err != nil {
				return fmt.Errorf("failed to close previous year: %w", err)
			}

			if summary == nil {
				fmt.Println(cli.FormatInfo("Previous year is already closed."))
				return nil
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Closed year %d with total %s", summary.Year, summary.Total.String())))
			return nil
		},
	}
}
