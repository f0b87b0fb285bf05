package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hrakoto/vola/internal/cli"
	"github.com/hrakoto/vola/internal/model"
	"github.com/hrakoto/vola/internal/service"
)

func membersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage church members",
		Long:  `Register, list, update, delete, and transfer church members.`,
	}

	cmd.AddCommand(addMemberCmd())
	cmd.AddCommand(listMembersCmd())
	cmd.AddCommand(updateMemberCmd())
	cmd.AddCommand(deleteMemberCmd())
	cmd.AddCommand(transferMembersCmd())

	return cmd
}

func memberInputFlags(cmd *cobra.Command, input *model.MemberInput) {
	cmd.Flags().StringVar(&input.Address, "address", "", "postal address")
	cmd.Flags().StringVar(&input.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&input.Job, "job", "", "occupation")
	cmd.Flags().StringVar((*string)(&input.Gender), "gender", "", "gender (M or F)")
	cmd.Flags().StringVar((*string)(&input.MemberType), "type", "", "member type (Communicant or Catechumen)")
}

func addMemberCmd() *cobra.Command {
	var input model.MemberInput

	cmd := &cobra.Command{
		Use:   "add <full-name> <card-number>",
		Short: "Register a new member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			input.FullName = args[0]
			input.CardNumber = args[1]

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			member, err := store.CreateMember(ctx, input)
			if err != nil {
				return fmt.Errorf("failed to register member: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Registered %s (card %s, id %d)",
				member.FullName, member.CardNumber, member.ID)))
			return nil
		},
	}

	memberInputFlags(cmd, &input)
	return cmd
}

func listMembersCmd() *cobra.Command {
	var memberType string
	var withTotals bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List members",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if withTotals {
				if memberType == "" {
					memberType = string(model.TypeCommunicant)
				}
				members, err := store.ListMembersWithTotals(ctx, model.MemberType(memberType))
				if err != nil {
					return fmt.Errorf("failed to list members: %w", err)
				}
				return printMembersWithTotals(members)
			}

			members, err := store.ListMembers(ctx, service.MemberFilter{MemberType: model.MemberType(memberType)})
			if err != nil {
				return fmt.Errorf("failed to list members: %w", err)
			}
			return printMembers(members)
		},
	}

	cmd.Flags().StringVar(&memberType, "type", "", "filter by member type")
	cmd.Flags().BoolVar(&withTotals, "totals", false, "include each member's lifetime contribution total")
	return cmd
}

func printMembers(members []model.Member) error {
	if len(members) == 0 {
		fmt.Println(cli.FormatInfo("No members found. Use 'vola members add' to register one."))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		cli.HeaderStyle.Render("ID"),
		cli.HeaderStyle.Render("Card"),
		cli.HeaderStyle.Render("Name"),
		cli.HeaderStyle.Render("Type"),
		cli.HeaderStyle.Render("Phone"))

	for _, m := range members {
		phone := m.Phone
		if phone == "" {
			phone = cli.SubtleStyle.Render("-")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", m.ID, m.CardNumber, m.FullName, m.MemberType, phone)
	}
	return nil
}

func printMembersWithTotals(members []model.MemberWithTotal) error {
	if len(members) == 0 {
		fmt.Println(cli.FormatInfo("No members found."))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		cli.HeaderStyle.Render("ID"),
		cli.HeaderStyle.Render("Card"),
		cli.HeaderStyle.Render("Name"),
		cli.HeaderStyle.Render("Total"))

	for _, m := range members {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", m.ID, m.CardNumber, m.FullName, m.TotalContributions)
	}
	return nil
}

func updateMemberCmd() *cobra.Command {
	var input model.MemberInput

	cmd := &cobra.Command{
		Use:   "update <id> <full-name> <card-number>",
		Short: "Update a member's details",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid member id %q", args[0])
			}
			input.FullName = args[1]
			input.CardNumber = args[2]

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			member, err := store.UpdateMember(ctx, id, input)
			if err != nil {
				return fmt.Errorf("failed to update member: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated member %d (%s)", member.ID, member.FullName)))
			return nil
		},
	}

	memberInputFlags(cmd, &input)
	return cmd
}

func deleteMemberCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a member and all of their contributions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid member id %q", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			member, err := store.GetMember(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to delete member: %w", err)
			}

			if !yes {
				ok, err := cli.NewConfirmer(os.Stdin, os.Stdout).Confirm(ctx,
					fmt.Sprintf("Delete %s (card %s) and ALL of their contributions?", member.FullName, member.CardNumber))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println(cli.FormatInfo("Aborted."))
					return nil
				}
			}

			if err := store.DeleteMember(ctx, id); err != nil {
				return fmt.Errorf("failed to delete member: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted member %d and their contributions", id)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}

func transferMembersCmd() *cobra.Command {
	var newType string

	cmd := &cobra.Command{
		Use:   "transfer <id>...",
		Short: "Transfer members to a new member type",
		Long:  `Move one or more members to a new type, e.g. promote catechumens to communicants. Contributions stay attached.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid member id %q", arg)
				}
				ids = append(ids, id)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			count, err := store.TransferMembers(ctx, ids, model.MemberType(newType))
			if err != nil {
				return fmt.Errorf("failed to transfer members: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Transferred %d member(s) to %s", count, newType)))
			return nil
		},
	}

	cmd.Flags().StringVar(&newType, "to", string(model.TypeCommunicant), "target member type")
	return cmd
}
