package response

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/health"
)

const dateLayout = time.DateOnly

func writeText(w io.Writer, data interface{}) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	switch v := data.(type) {
	case []*domain.Book:
		fmt.Fprintln(tw, "ISBN\tTITLE\tAUTHOR\tCATEGORY\tYEAR\tAVAILABLE")
		for _, b := range v {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", b.ISBN, b.Title, b.Author, b.Category, b.Year, yesNo(b.Available))
		}
	case *domain.Book:
		return writeText(w, []*domain.Book{v})
	case []*domain.Member:
		fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tSTATUS\tACTIVE LOANS")
		for _, m := range v {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", m.ID, strings.TrimSpace(m.FirstName+" "+m.Name), m.Email, m.Status, len(m.ActiveLoans))
		}
	case *domain.Member:
		if err := writeText(w, []*domain.Member{v}); err != nil {
			return err
		}
		for _, h := range v.History {
			fmt.Fprintf(w, "  - %s\n", h)
		}
		return nil
	case []*domain.Loan:
		fmt.Fprintln(tw, "ID\tMEMBER\tISBN\tLOANED\tDUE\tRETURNED\tSTATUS")
		for _, l := range v {
			returned := "-"
			if l.ReturnDate != nil {
				returned = l.ReturnDate.Format(dateLayout)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				l.ID, l.MemberID, l.ISBN, l.LoanDate.Format(dateLayout), l.DueDate.Format(dateLayout), returned, l.Status)
		}
	case []domain.OverdueLoan:
		fmt.Fprintln(tw, "ID\tMEMBER\tISBN\tDUE\tSTATUS\tDAYS LATE\tFINE")
		for _, o := range v {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n",
				o.Loan.ID, o.Loan.MemberID, o.Loan.ISBN, o.Loan.DueDate.Format(dateLayout), o.Loan.Status, o.DaysLate, o.Fine.StringFixed(2))
		}
	case *domain.Report:
		fmt.Fprintf(tw, "Total books\t%d\n", v.TotalBooks)
		fmt.Fprintf(tw, "Available books\t%d\n", v.AvailableBooks)
		fmt.Fprintf(tw, "Total members\t%d\n", v.TotalMembers)
		fmt.Fprintf(tw, "Blocked members\t%d\n", v.BlockedMembers)
		fmt.Fprintf(tw, "Total loans\t%d\n", v.TotalLoans)
		fmt.Fprintf(tw, "Active loans\t%d\n", v.ActiveLoans)
		fmt.Fprintf(tw, "Overdue loans\t%d\n", v.OverdueLoans)
		fmt.Fprintf(tw, "Outstanding fines\t%s\n", v.TotalFines.StringFixed(2))
	case *domain.Librarian:
		fmt.Fprintf(tw, "Matricule\t%s\n", v.Matricule)
		fmt.Fprintf(tw, "Name\t%s\n", v.DisplayName())
		fmt.Fprintf(tw, "Access level\t%s\n", v.AccessLevel)
	case *health.Status:
		fmt.Fprintf(tw, "status\t%s\n", v.Status)
		for _, name := range slices.Sorted(maps.Keys(v.Checks)) {
			fmt.Fprintf(tw, "%s\t%s\n", name, v.Checks[name])
		}
	default:
		fmt.Fprintf(tw, "%v\n", v)
	}

	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
