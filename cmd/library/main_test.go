package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/lending-ledger/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type cli struct {
	t *testing.T
}

func newCLI(t *testing.T) *cli {
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "library.db"))
	t.Setenv("REDIS_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	return &cli{t: t}
}

// run executes one command line against a fresh app, as a shell would.
func (c *cli) run(stdin string, args ...string) (stdout, stderr string, err error) {
	var out, errOut bytes.Buffer
	a := &app{stdin: strings.NewReader(stdin), stdout: &out, stderr: &errOut}
	err = a.execute(context.Background(), args)
	return out.String(), errOut.String(), err
}

func (c *cli) mustRun(args ...string) string {
	out, errOut, err := c.run("", args...)
	require.NoError(c.t, err, errOut)
	return out
}

func TestCLI_LoanLifecycle(t *testing.T) {
	c := newCLI(t)

	c.mustRun("book", "add", "--isbn", "978-2-07-036822-8", "--title", "L'Étranger", "--author", "Camus", "--category", "Roman", "--year", "1942")
	c.mustRun("member", "add", "--id", "U001", "--name", "Ouédraogo", "--first-name", "Awa", "--email", "awa@etu.bf")

	out := c.mustRun("--json", "loan", "U001", "978-2-07-036822-8")
	var created struct {
		Success bool           `json:"success"`
		Data    []*domain.Loan `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	require.True(t, created.Success)
	require.Len(t, created.Data, 1)
	assert.Equal(t, int64(1), created.Data[0].ID)
	assert.Equal(t, domain.LoanStatusActive, created.Data[0].Status)

	out = c.mustRun("book", "available")
	assert.NotContains(t, out, "978-2-07-036822-8")

	out = c.mustRun("member", "show", "U001")
	assert.Contains(t, out, "borrowed 978-2-07-036822-8")

	out = c.mustRun("return", "1")
	assert.Contains(t, out, "Loan 1 closed")

	out = c.mustRun("loans", "--member", "U001")
	assert.Contains(t, out, string(domain.LoanStatusClosed))

	out = c.mustRun("fine", "1")
	assert.Contains(t, out, "fine 0.00")
}

func TestCLI_BusinessErrorsRenderCode(t *testing.T) {
	c := newCLI(t)
	c.mustRun("member", "add", "--id", "U001", "--name", "Sawadogo", "--email", "s@etu.bf")

	_, errOut, err := c.run("", "--json", "loan", "U001", "missing-isbn")
	require.Error(t, err)

	var resp struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	require.NoError(t, json.Unmarshal([]byte(errOut), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "BOOK_NOT_FOUND", resp.Code)

	_, errOut, err = c.run("", "return", "abc")
	require.Error(t, err)
	assert.Contains(t, errOut, "Operation rejected")
}

func TestCLI_LibrarianPasswordFromStdin(t *testing.T) {
	c := newCLI(t)

	_, errOut, err := c.run("motdepasse\nmotdepasse\n",
		"librarian", "add", "--matricule", "B-042", "--name", "Kaboré", "--email", "kabore@bib.bf")
	require.NoError(t, err, errOut)

	out, errOut, err := c.run("motdepasse\n", "librarian", "verify", "B-042")
	require.NoError(t, err, errOut)
	assert.Contains(t, out, "Credentials accepted")

	_, _, err = c.run("wrong-password\n", "librarian", "verify", "B-042")
	require.Error(t, err)

	_, _, err = c.run("motdepasse\nautrechose\n",
		"librarian", "add", "--matricule", "B-043", "--name", "Zongo", "--email", "zongo@bib.bf")
	require.Error(t, err)
}

func TestCLI_ExportImport(t *testing.T) {
	c := newCLI(t)
	c.mustRun("book", "add", "--isbn", "ISBN-1", "--title", "Titre", "--author", "Auteur")
	snapshot := filepath.Join(t.TempDir(), "snapshot.json")
	c.mustRun("export", snapshot)

	// A fresh database accepts the snapshot once.
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "restored.db"))
	c.mustRun("import", snapshot)
	out := c.mustRun("book", "list")
	assert.Contains(t, out, "ISBN-1")

	_, _, err := c.run("", "import", snapshot)
	require.Error(t, err)
}

func TestCLI_Health(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun("health")
	assert.Contains(t, out, "database")
}
