package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/health"
	customError "github.com/segyhp/lending-ledger/pkg/errors"
)

// readPassword prompts on stderr. Piped input is read line by line so
// scripts can supply passwords.
func (a *app) readPassword(prompt string) (string, error) {
	fmt.Fprint(a.stderr, prompt)

	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	if a.lines == nil {
		a.lines = bufio.NewReader(a.stdin)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) librarianCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "librarian",
		Short: "Manage staff accounts",
	}
	cmd.AddCommand(a.librarianAddCommand())
	cmd.AddCommand(&cobra.Command{
		Use:   "verify MATRICULE",
		Short: "Check a librarian's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.readPassword("Password: ")
			if err != nil {
				return err
			}
			librarian, err := a.library.Authenticate(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			return a.out.Success("Credentials accepted", librarian)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "passwd MATRICULE",
		Short: "Change a librarian's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := a.readPassword("Current password: ")
			if err != nil {
				return err
			}
			next, err := a.readPassword("New password: ")
			if err != nil {
				return err
			}
			if err := a.library.ChangePassword(cmd.Context(), args[0], current, next); err != nil {
				return err
			}
			return a.out.Success("Password changed", nil)
		},
	})
	return cmd
}

func (a *app) librarianAddCommand() *cobra.Command {
	var librarian domain.Librarian

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a librarian and create their account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := a.readPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := a.readPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return customError.WrapInvalidInput(fmt.Errorf("passwords do not match"))
			}
			if err := a.library.RegisterLibrarian(cmd.Context(), &librarian, password); err != nil {
				return err
			}
			return a.out.Success(fmt.Sprintf("Librarian %s registered", librarian.Matricule), &librarian)
		},
	}

	f := cmd.Flags()
	f.StringVar(&librarian.Matricule, "matricule", "", "staff number, also the login")
	f.StringVar(&librarian.Name, "name", "", "family name")
	f.StringVar(&librarian.FirstName, "first-name", "", "first name")
	f.StringVar(&librarian.Email, "email", "", "email address")
	f.StringVar(&librarian.Phone, "phone", "", "phone number")
	f.StringVar(&librarian.AccessLevel, "access-level", domain.AccessLevelStandard, "standard or admin")
	_ = cmd.MarkFlagRequired("matricule")
	return cmd
}

func (a *app) exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write a JSON snapshot of books, members, loans and librarians",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.library.Export(cmd.Context(), a.stdout)
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create %s: %w", args[0], err)
			}
			if err := a.library.Export(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", args[0], err)
			}
			return a.out.Success(fmt.Sprintf("Snapshot written to %s", args[0]), nil)
		},
	}
}

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load a JSON snapshot; any existing key aborts the import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			if err := a.library.Import(cmd.Context(), f); err != nil {
				return err
			}
			return a.out.Success(fmt.Sprintf("Snapshot %s imported", args[0]), nil)
		},
	}
}

func (a *app) healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the database and cache connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := health.NewChecker(a.db, a.redis, a.cfg.GetHealthTimeout()).Ready(cmd.Context())
			if err := a.out.Success("", status); err != nil {
				return err
			}
			if !status.Healthy() {
				return customError.WrapStorageError(fmt.Errorf("health check failed: %s", status.Status))
			}
			return nil
		},
	}
}
