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

func contributionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contributions",
		Short: "Manage member contributions",
		Long:  `Record, correct, remove, and list contributions. Each payment is attributed to the calendar year of its payment date.`,
	}

	cmd.AddCommand(recordContributionCmd())
	cmd.AddCommand(correctContributionCmd())
	cmd.AddCommand(removeContributionCmd())
	cmd.AddCommand(listContributionsCmd())

	return cmd
}

func recordContributionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <member-id> <payment-date> <period> <amount>",
		Short: "Record a payment",
		Long:  `Record a payment for a member, e.g.: vola contributions record 3 2024-03-01 2024-Q1 15000.50`,
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			memberID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid member id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			contribution, err := store.RecordContribution(ctx, model.ContributionInput{
				MemberID:    memberID,
				PaymentDate: args[1],
				Period:      args[2],
				Amount:      args[3],
			})
			if err != nil {
				return fmt.Errorf("failed to record contribution: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Recorded %s for member %d (year %d, id %d)",
				contribution.Amount.String(), contribution.MemberID, contribution.RecordedYear, contribution.ID)))
			return nil
		},
	}
}

func correctContributionCmd() *cobra.Command {
	var (
		paymentDate string
		period      string
		amount      string
	)

	cmd := &cobra.Command{
		Use:   "correct <id>",
		Short: "Correct an existing contribution",
		Long:  `Correct a contribution's payment date, period, or amount. A changed date re-derives the recorded year.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid contribution id %q", args[0])
			}

			var update model.ContributionUpdate
			if cmd.Flags().Changed("date") {
				update.PaymentDate = &paymentDate
			}
			if cmd.Flags().Changed("period") {
				update.Period = &period
			}
			if cmd.Flags().Changed("amount") {
				update.Amount = &amount
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			contribution, err := store.CorrectContribution(ctx, id, update)
			if err != nil {
				return fmt.Errorf("failed to correct contribution: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Corrected contribution %d (%s, year %d)",
				contribution.ID, contribution.Amount.String(), contribution.RecordedYear)))
			return nil
		},
	}

	cmd.Flags().StringVar(&paymentDate, "date", "", "new payment date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&period, "period", "", "new period label")
	cmd.Flags().StringVar(&amount, "amount", "", "new amount")
	return cmd
}

func removeContributionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a contribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid contribution id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.RemoveContribution(ctx, id); err != nil {
				return fmt.Errorf("failed to remove contribution: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Removed contribution %d", id)))
			return nil
		},
	}
}

func listContributionsCmd() *cobra.Command {
	var (
		memberID int64
		year     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contributions for a member or a year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if memberID == 0 && year == 0 {
				return fmt.Errorf("either --member or --year is required")
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if memberID != 0 {
				contributions, err := store.ListContributionsForMember(ctx, memberID)
				if err != nil {
					return fmt.Errorf("failed to list contributions: %w", err)
				}
				return printContributions(contributions)
			}

			contributions, err := store.ListContributionsForYearWithMember(ctx, year)
			if err != nil {
				return fmt.Errorf("failed to list contributions: %w", err)
			}
			return printContributionsWithMember(contributions)
		},
	}

	cmd.Flags().Int64Var(&memberID, "member", 0, "list contributions for this member id")
	cmd.Flags().IntVar(&year, "year", 0, "list contributions for this year")
	return cmd
}

func printContributions(contributions []model.Contribution) error {
	if len(contributions) == 0 {
		fmt.Println(cli.FormatInfo("No contributions found."))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		cli.HeaderStyle.Render("ID"),
		cli.HeaderStyle.Render("Date"),
		cli.HeaderStyle.Render("Period"),
		cli.HeaderStyle.Render("Amount"),
		cli.HeaderStyle.Render("Year"))

	for _, c := range contributions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", c.ID, c.PaymentDate, c.Period, c.Amount.String(), c.RecordedYear)
	}
	return nil
}

func printContributionsWithMember(contributions []model.ContributionWithMember) error {
	if len(contributions) == 0 {
		fmt.Println(cli.FormatInfo("No contributions found."))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		cli.HeaderStyle.Render("ID"),
		cli.HeaderStyle.Render("Member"),
		cli.HeaderStyle.Render("Date"),
		cli.HeaderStyle.Render("Period"),
		cli.HeaderStyle.Render("Amount"))

	for _, c := range contributions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.MemberName, c.PaymentDate, c.Period, c.Amount.String())
	}
	return nil
}
