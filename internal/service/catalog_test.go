package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/lending-ledger/internal/domain"
	"github.com/segyhp/lending-ledger/internal/repository"
	customError "github.com/segyhp/lending-ledger/pkg/errors"
)

func TestBookPredicates(t *testing.T) {
	b := &domain.Book{Title: "Une si longue lettre", Author: "Mariama Bâ", Category: "Roman", Year: 1979, Available: true}

	tests := []struct {
		name   string
		filter domain.BookFilter
		want   bool
	}{
		{"text in title", MatchText("LONGUE"), true},
		{"text in author", MatchText("mariama"), true},
		{"text in category", MatchText("rom"), true},
		{"text miss", MatchText("poésie"), false},
		{"category is exact", ByCategory("rom"), false},
		{"category ignores case", ByCategory("ROMAN"), true},
		{"title substring", ByTitle("lettre"), true},
		{"author miss", ByAuthor("hugo"), false},
		{"criteria all match", MatchAll(BookCriteria{Title: "lettre", YearFrom: 1970, YearTo: 1980, AvailableOnly: true}), true},
		{"criteria year out of range", MatchAll(BookCriteria{YearFrom: 1980}), false},
		{"empty criteria", MatchAll(BookCriteria{}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter(b))
		})
	}
}

func TestCatalog_AvailabilityOnlyThroughMarks(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(repository.NewMemoryStores().Books)

	// Callers cannot add a book that is already out.
	require.NoError(t, catalog.Add(ctx, &domain.Book{ISBN: "ISBN-1", Title: "T", Author: "A", Available: false}))
	b, err := catalog.Find(ctx, "ISBN-1")
	require.NoError(t, err)
	assert.True(t, b.Available)

	require.NoError(t, catalog.MarkLoaned(ctx, "ISBN-1"))
	available, err := catalog.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)

	require.NoError(t, catalog.MarkAvailable(ctx, "ISBN-1"))
	available, err = catalog.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 1)

	assert.ErrorIs(t, catalog.MarkLoaned(ctx, "missing"), customError.ErrBookNotFound)
	assert.ErrorIs(t, catalog.Remove(ctx, "missing"), customError.ErrBookNotFound)
}

func TestRegistry_HistoryAndStatus(t *testing.T) {
	ctx := context.Background()
	registry := NewRegistry(repository.NewMemoryStores().Members)

	m := &domain.Member{ID: "U001", PersonInfo: domain.PersonInfo{Name: "Traoré", Email: "t@etu.bf"}, Status: domain.MemberStatusBlocked}
	require.NoError(t, registry.Register(ctx, m))

	got, err := registry.Find(ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberStatusActive, got.Status)

	require.NoError(t, registry.RecordTransaction(ctx, "U001", "card renewed"))
	require.NoError(t, registry.AttachLoan(ctx, "U001", 3, "borrowed"))
	require.NoError(t, registry.AttachLoan(ctx, "U001", 3, "borrowed again"))
	require.NoError(t, registry.SetStatus(ctx, "U001", domain.MemberStatusBlocked))

	got, err = registry.Find(ctx, "U001")
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, got.ActiveLoans)
	assert.Equal(t, []string{"card renewed", "borrowed", "borrowed again"}, got.History)

	blocked, err := registry.Search(ctx, ByStatus(domain.MemberStatusBlocked))
	require.NoError(t, err)
	assert.Len(t, blocked, 1)

	require.NoError(t, registry.DetachLoan(ctx, "U001", 3, "returned"))
	got, err = registry.Find(ctx, "U001")
	require.NoError(t, err)
	assert.Empty(t, got.ActiveLoans)

	assert.ErrorIs(t, registry.RecordTransaction(ctx, "U404", "x"), customError.ErrMemberNotFound)
}
