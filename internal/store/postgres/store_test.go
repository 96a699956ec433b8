package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"identity-sync/internal/store"
)

type mockRow struct {
	value string
	err   error
}

func (r mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > 0 {
		*(dest[0].(*string)) = r.value
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

// mockTx implementa pgx.Tx vía embedding; solo Exec, Commit y Rollback
// están soportados.
type mockTx struct {
	pgx.Tx
	tags       []string
	execs      []execCall
	execErr    error
	committed  bool
	rolledBack bool
}

func (t *mockTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	if t.execErr != nil {
		return pgconn.CommandTag{}, t.execErr
	}
	tag := t.tags[0]
	t.tags = t.tags[1:]
	return pgconn.NewCommandTag(tag), nil
}

func (t *mockTx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *mockTx) Rollback(_ context.Context) error {
	t.rolledBack = true
	return nil
}

type mockDB struct {
	tx       *mockTx
	beginErr error
	row      mockRow
	pingErr  error
}

func (m *mockDB) Begin(_ context.Context) (pgx.Tx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return m.tx, nil
}

func (m *mockDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return m.row
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return m.tx.Exec(context.Background(), sql, args...)
}

func (m *mockDB) Ping(_ context.Context) error {
	return m.pingErr
}

func newLink() store.NewUserLink {
	email := "a@x.com"
	return store.NewUserLink{
		OrgID:           "org-1",
		DisplayName:     &email,
		Provider:        "netlify",
		ProviderSubject: "abc123",
		Email:           &email,
	}
}

func TestCreateUserLink(t *testing.T) {
	t.Run("both inserts in one transaction", func(t *testing.T) {
		tx := &mockTx{tags: []string{"INSERT 0 1", "INSERT 0 1"}}
		s := &Store{pool: &mockDB{tx: tx}}

		profileID, already, err := s.CreateUserLink(context.Background(), newLink())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if already {
			t.Fatalf("expected already=false without conflict")
		}
		if profileID == "" {
			t.Fatalf("expected generated profile id")
		}
		if !tx.committed {
			t.Fatalf("expected transaction commit")
		}
		if len(tx.execs) != 2 {
			t.Fatalf("expected two inserts, got %d", len(tx.execs))
		}
		if !strings.Contains(tx.execs[0].sql, "user_profile") || !strings.Contains(tx.execs[1].sql, "auth_account") {
			t.Fatalf("unexpected insert order: %q, %q", tx.execs[0].sql, tx.execs[1].sql)
		}
		if !strings.Contains(tx.execs[1].sql, "ON CONFLICT (provider, provider_subject) DO NOTHING") {
			t.Fatalf("account insert must rely on the uniqueness constraint: %q", tx.execs[1].sql)
		}
		if tx.execs[1].args[1] != profileID {
			t.Fatalf("account must reference the new profile, got %v", tx.execs[1].args)
		}
	})

	t.Run("conflict rolls back and returns existing link", func(t *testing.T) {
		tx := &mockTx{tags: []string{"INSERT 0 1", "INSERT 0 0"}}
		s := &Store{pool: &mockDB{tx: tx, row: mockRow{value: "p-1"}}}

		profileID, already, err := s.CreateUserLink(context.Background(), newLink())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !already {
			t.Fatalf("expected already=true on conflict")
		}
		if profileID != "p-1" {
			t.Fatalf("expected existing user_id p-1, got %q", profileID)
		}
		if tx.committed {
			t.Fatalf("conflict must not commit the orphan profile")
		}
		if !tx.rolledBack {
			t.Fatalf("expected rollback to discard the profile insert")
		}
	})

	t.Run("conflict without existing link is an error", func(t *testing.T) {
		tx := &mockTx{tags: []string{"INSERT 0 1", "INSERT 0 0"}}
		s := &Store{pool: &mockDB{tx: tx, row: mockRow{err: pgx.ErrNoRows}}}

		_, _, err := s.CreateUserLink(context.Background(), newLink())
		if err == nil || !strings.Contains(err.Error(), "no existing link") {
			t.Fatalf("expected missing-link error, got %v", err)
		}
	})

	t.Run("insert failure propagates", func(t *testing.T) {
		tx := &mockTx{execErr: errors.New("relation does not exist")}
		s := &Store{pool: &mockDB{tx: tx}}

		if _, _, err := s.CreateUserLink(context.Background(), newLink()); err == nil {
			t.Fatalf("expected insert error")
		}
		if tx.committed {
			t.Fatalf("failed insert must not commit")
		}
	})
}

func TestLookupAccount(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s := &Store{pool: &mockDB{row: mockRow{value: "p-1"}}}
		userID, found, err := s.LookupAccount(context.Background(), "netlify", "abc123")
		if err != nil || !found || userID != "p-1" {
			t.Fatalf("expected p-1 found, got %q found=%v err=%v", userID, found, err)
		}
	})

	t.Run("no rows", func(t *testing.T) {
		s := &Store{pool: &mockDB{row: mockRow{err: pgx.ErrNoRows}}}
		_, found, err := s.LookupAccount(context.Background(), "netlify", "abc123")
		if err != nil || found {
			t.Fatalf("expected clean not-found, got found=%v err=%v", found, err)
		}
	})
}

func TestAnyOrganizationEmpty(t *testing.T) {
	s := &Store{pool: &mockDB{row: mockRow{err: pgx.ErrNoRows}}}
	if _, err := s.AnyOrganization(context.Background()); !errors.Is(err, store.ErrNoOrganization) {
		t.Fatalf("expected ErrNoOrganization, got %v", err)
	}
}

func TestProbe(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		s := &Store{pool: &mockDB{}}
		probe, err := s.Probe(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !probe.OK || probe.HTTPStatus != 200 {
			t.Fatalf("expected ok probe with status 200, got %+v", probe)
		}
	})

	t.Run("ping failure is an error", func(t *testing.T) {
		s := &Store{pool: &mockDB{pingErr: errors.New("connection refused")}}
		if _, err := s.Probe(context.Background()); err == nil {
			t.Fatalf("expected transport error")
		}
	})
}
