package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/segyhp/lending-ledger/internal/domain"
	customError "github.com/segyhp/lending-ledger/pkg/errors"
)

func parseLoanID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, customError.WrapInvalidInput(fmt.Errorf("loan id %q is not a positive integer", arg))
	}
	return id, nil
}

func (a *app) loanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "loan MEMBER_ID ISBN",
		Short: "Lend a book to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.library.Loan(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			loan, err := a.library.FindLoan(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.out.Success(
				fmt.Sprintf("Loan %d created, due %s", id, loan.DueDate.Format(time.DateOnly)),
				[]*domain.Loan{loan},
			)
		},
	}
}

func (a *app) returnCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "return LOAN_ID",
		Short: "Record the return of a loaned book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLoanID(args[0])
			if err != nil {
				return err
			}
			if err := a.library.ReturnBook(cmd.Context(), id); err != nil {
				return err
			}
			loan, err := a.library.FindLoan(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.out.Success(fmt.Sprintf("Loan %d closed", id), []*domain.Loan{loan})
		},
	}
}

func (a *app) loansCommand() *cobra.Command {
	var memberID string

	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List loans, optionally for one member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loans, err := a.library.ListLoans(cmd.Context(), memberID)
			if err != nil {
				return err
			}
			return a.out.Success("", loans)
		},
	}
	cmd.Flags().StringVar(&memberID, "member", "", "only loans of this member")
	return cmd
}

func (a *app) overdueCommand() *cobra.Command {
	var within time.Duration

	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List overdue loans with their fines",
		Long:  "With --within, list open loans falling due inside the window instead.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if within > 0 {
				loans, err := a.library.DueSoon(cmd.Context(), within)
				if err != nil {
					return err
				}
				return a.out.Success("", loans)
			}
			overdue, err := a.library.ListOverdue(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.Success("", overdue)
		},
	}
	cmd.Flags().DurationVar(&within, "within", 0, "show loans due within this window, e.g. 72h")
	return cmd
}

func (a *app) fineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fine LOAN_ID",
		Short: "Compute the fine accrued on a loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLoanID(args[0])
			if err != nil {
				return err
			}
			fine, err := a.library.Fine(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.out.Success("", map[string]interface{}{"loan_id": id, "fine": fine})
			}
			return a.out.Success(fmt.Sprintf("Loan %d: fine %s", id, fine.StringFixed(2)), nil)
		},
	}
}

func (a *app) reportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Refresh member statuses and print library statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.library.Report(cmd.Context())
			if err != nil {
				return err
			}
			return a.out.Success("", report)
		},
	}
}

func (a *app) sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Recompute the blocked status of every member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			blocked, err := a.library.SweepAll(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.out.Success("", map[string]int{"blocked": blocked})
			}
			return a.out.Success(fmt.Sprintf("%d member(s) blocked", blocked), nil)
		},
	}
}
