package repository

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/segyhp/lending-ledger/internal/domain"
)

const tableMembers = "members"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var memberColumns = []interface{}{
	"member_id", "name", "first_name", "email", "phone", "status", "history",
}

// memberRow is the flat table shape of domain.Member. Active loans are not
// stored on the row; they are read back from the loans table.
type memberRow struct {
	ID        string `db:"member_id"`
	Name      string `db:"name"`
	FirstName string `db:"first_name"`
	Email     string `db:"email"`
	Phone     string `db:"phone"`
	Status    string `db:"status"`
	// History is a JSON array of entries; entries may contain any text.
	History string `db:"history"`
}

func (row memberRow) toDomain(activeLoans []int64) (*domain.Member, error) {
	m := &domain.Member{
		ID: row.ID,
		PersonInfo: domain.PersonInfo{
			Name:      row.Name,
			FirstName: row.FirstName,
			Email:     row.Email,
			Phone:     row.Phone,
		},
		Status:      domain.MemberStatus(row.Status),
		History:     []string{},
		ActiveLoans: activeLoans,
	}
	if row.History != "" {
		if err := json.UnmarshalFromString(row.History, &m.History); err != nil {
			return nil, fmt.Errorf("decode history of member %s: %w", row.ID, err)
		}
	}
	if m.ActiveLoans == nil {
		m.ActiveLoans = []int64{}
	}
	return m, nil
}

type memberRepository struct {
	db *sqlx.DB
}

func NewMemberRepository(db *sqlx.DB) MemberStore {
	return &memberRepository{db: db}
}

func (r *memberRepository) Create(ctx context.Context, member *domain.Member) error {
	record, err := memberRecord(member)
	if err != nil {
		return err
	}

	query, args, err := dialect(r.db).Insert(tableMembers).Prepared(true).
		Rows(record).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = conn(ctx, r.db).ExecContext(ctx, query, args...)
	return translate(err)
}

func (r *memberRepository) Get(ctx context.Context, memberID string) (*domain.Member, error) {
	query, args, err := dialect(r.db).From(tableMembers).Prepared(true).
		Select(memberColumns...).
		Where(goqu.Ex{"member_id": memberID}).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var row memberRow
	if err := sqlx.GetContext(ctx, conn(ctx, r.db), &row, query, args...); err != nil {
		return nil, translate(err)
	}

	active, err := r.activeLoans(ctx, goqu.Ex{"member_id": memberID, "status": string(domain.LoanStatusActive)})
	if err != nil {
		return nil, err
	}
	return row.toDomain(active[memberID])
}

func (r *memberRepository) Update(ctx context.Context, member *domain.Member) error {
	record, err := memberRecord(member)
	if err != nil {
		return err
	}
	delete(record, "member_id")

	query, args, err := dialect(r.db).Update(tableMembers).Prepared(true).
		Set(record).
		Where(goqu.Ex{"member_id": member.ID}).
		ToSQL()
	if err != nil {
		return err
	}

	return execAffectingOne(ctx, conn(ctx, r.db), query, args...)
}

func (r *memberRepository) Delete(ctx context.Context, memberID string) error {
	query, args, err := dialect(r.db).Delete(tableMembers).Prepared(true).
		Where(goqu.Ex{"member_id": memberID}).
		ToSQL()
	if err != nil {
		return err
	}

	return execAffectingOne(ctx, conn(ctx, r.db), query, args...)
}

func (r *memberRepository) List(ctx context.Context) ([]*domain.Member, error) {
	query, args, err := dialect(r.db).From(tableMembers).Prepared(true).
		Select(memberColumns...).
		Order(goqu.I("member_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []memberRow
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &rows, query, args...); err != nil {
		return nil, translate(err)
	}

	active, err := r.activeLoans(ctx, goqu.Ex{"status": string(domain.LoanStatusActive)})
	if err != nil {
		return nil, err
	}

	members := make([]*domain.Member, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain(active[row.ID])
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, nil
}

// activeLoans groups the IDs of matching loans by member.
func (r *memberRepository) activeLoans(ctx context.Context, where goqu.Ex) (map[string][]int64, error) {
	query, args, err := dialect(r.db).From(tableLoans).Prepared(true).
		Select("member_id", "id").
		Where(where).
		Order(goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var refs []struct {
		MemberID string `db:"member_id"`
		ID       int64  `db:"id"`
	}
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &refs, query, args...); err != nil {
		return nil, translate(err)
	}

	grouped := make(map[string][]int64)
	for _, ref := range refs {
		grouped[ref.MemberID] = append(grouped[ref.MemberID], ref.ID)
	}
	return grouped, nil
}

func memberRecord(m *domain.Member) (goqu.Record, error) {
	status := m.Status
	if status == "" {
		status = domain.MemberStatusActive
	}

	history := ""
	if len(m.History) > 0 {
		encoded, err := json.MarshalToString(m.History)
		if err != nil {
			return nil, fmt.Errorf("encode history of member %s: %w", m.ID, err)
		}
		history = encoded
	}

	return goqu.Record{
		"member_id":  m.ID,
		"name":       m.Name,
		"first_name": m.FirstName,
		"email":      m.Email,
		"phone":      m.Phone,
		"status":     string(status),
		"history":    history,
	}, nil
}
