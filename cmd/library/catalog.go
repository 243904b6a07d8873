package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/service"
)

func (a *app) bookCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Manage the catalog",
	}
	cmd.AddCommand(
		a.bookSaveCommand("add", "Add a book to the catalog"),
		a.bookSaveCommand("update", "Update the descriptive fields of a book"),
		&cobra.Command{
			Use:   "show ISBN",
			Short: "Show one book",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				book, err := a.library.FindBook(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.out.Success("", book)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List every book",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				books, err := a.library.ListBooks(cmd.Context())
				if err != nil {
					return err
				}
				return a.out.Success("", books)
			},
		},
		&cobra.Command{
			Use:   "available",
			Short: "List books on the shelf",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				books, err := a.library.ListAvailableBooks(cmd.Context())
				if err != nil {
					return err
				}
				return a.out.Success("", books)
			},
		},
		a.bookSearchCommand(),
		&cobra.Command{
			Use:   "remove ISBN",
			Short: "Remove a book that is not on loan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.library.RemoveBook(cmd.Context(), args[0]); err != nil {
					return err
				}
				return a.out.Success(fmt.Sprintf("Book %s removed", args[0]), nil)
			},
		},
	)
	return cmd
}

func (a *app) bookSaveCommand(use, short string) *cobra.Command {
	var book domain.Book

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if use == "add" {
				if err := a.library.AddBook(cmd.Context(), &book); err != nil {
					return err
				}
				return a.out.Success(fmt.Sprintf("Book %s added", book.ISBN), &book)
			}
			if err := a.library.UpdateBook(cmd.Context(), &book); err != nil {
				return err
			}
			return a.out.Success(fmt.Sprintf("Book %s updated", book.ISBN), nil)
		},
	}

	f := cmd.Flags()
	f.StringVar(&book.ISBN, "isbn", "", "ISBN")
	f.StringVar(&book.Title, "title", "", "title")
	f.StringVar(&book.Author, "author", "", "author")
	f.StringVar(&book.Publisher, "publisher", "", "publisher")
	f.IntVar(&book.Year, "year", 0, "publication year")
	f.StringVar(&book.Category, "category", "", "category")
	f.IntVar(&book.PageCount, "pages", 0, "page count")
	_ = cmd.MarkFlagRequired("isbn")
	return cmd
}

func (a *app) bookSearchCommand() *cobra.Command {
	var criteria service.BookCriteria

	cmd := &cobra.Command{
		Use:   "search [TEXT]",
		Short: "Search the catalog by free text or by field",
		Long: "With TEXT, match title, author or category case-insensitively.\n" +
			"With field flags, every given criterion must match.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				books []*domain.Book
				err   error
			)
			if len(args) == 1 {
				books, err = a.library.SearchBooks(cmd.Context(), strings.TrimSpace(args[0]))
			} else {
				books, err = a.library.SearchBooksBy(cmd.Context(), criteria)
			}
			if err != nil {
				return err
			}
			return a.out.Success("", books)
		},
	}

	f := cmd.Flags()
	f.StringVar(&criteria.Title, "title", "", "title contains")
	f.StringVar(&criteria.Author, "author", "", "author contains")
	f.StringVar(&criteria.Category, "category", "", "category equals, ignoring case")
	f.IntVar(&criteria.YearFrom, "from", 0, "published in or after")
	f.IntVar(&criteria.YearTo, "to", 0, "published in or before")
	f.BoolVar(&criteria.AvailableOnly, "available", false, "only books on the shelf")
	return cmd
}

func (a *app) memberCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage members",
	}
	cmd.AddCommand(
		a.memberSaveCommand("add", "Register a member"),
		a.memberSaveCommand("update", "Update a member's contact details"),
		&cobra.Command{
			Use:   "show ID",
			Short: "Show one member with history",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				member, err := a.library.FindMember(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.out.Success("", member)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List every member",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				members, err := a.library.ListMembers(cmd.Context())
				if err != nil {
					return err
				}
				return a.out.Success("", members)
			},
		},
		&cobra.Command{
			Use:   "search TEXT",
			Short: "Search members by id, name or email",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				members, err := a.library.SearchMembers(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.out.Success("", members)
			},
		},
		&cobra.Command{
			Use:   "remove ID",
			Short: "Remove a member without active loans",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.library.RemoveMember(cmd.Context(), args[0]); err != nil {
					return err
				}
				return a.out.Success(fmt.Sprintf("Member %s removed", args[0]), nil)
			},
		},
	)
	return cmd
}

func (a *app) memberSaveCommand(use, short string) *cobra.Command {
	var member domain.Member

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if use == "add" {
				if err := a.library.RegisterMember(cmd.Context(), &member); err != nil {
					return err
				}
				return a.out.Success(fmt.Sprintf("Member %s registered", member.ID), &member)
			}
			if err := a.library.UpdateMember(cmd.Context(), &member); err != nil {
				return err
			}
			return a.out.Success(fmt.Sprintf("Member %s updated", member.ID), nil)
		},
	}

	f := cmd.Flags()
	f.StringVar(&member.ID, "id", "", "membership number")
	f.StringVar(&member.Name, "name", "", "family name")
	f.StringVar(&member.FirstName, "first-name", "", "first name")
	f.StringVar(&member.Email, "email", "", "email address")
	f.StringVar(&member.Phone, "phone", "", "phone number")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
