package postgres

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-sync/internal/domain"
	"identity-sync/internal/store"
)

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// db es el subconjunto de pgxpool.Pool que usa el store.
type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Store implementa store.Store directo contra Postgres. A diferencia del
// gateway REST, el vínculo se crea en una sola transacción y la unicidad
// de (provider, provider_subject) la garantiza un constraint de la tabla.
type Store struct {
	pool db
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) LookupAccount(ctx context.Context, provider, subject string) (string, bool, error) {
	const query = `
		SELECT user_id
		FROM auth_account
		WHERE provider = $1 AND provider_subject = $2
	`
	var userID string
	err := s.pool.QueryRow(ctx, query, provider, subject).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

func (s *Store) AnyOrganization(ctx context.Context) (string, error) {
	const query = `
		SELECT id
		FROM org
		LIMIT 1
	`
	var orgID string
	err := s.pool.QueryRow(ctx, query).Scan(&orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrNoOrganization
	}
	if err != nil {
		return "", err
	}
	return orgID, nil
}

// CreateUserLink crea perfil y cuenta en una transacción. Si la cuenta ya
// existe (conflicto sobre provider, provider_subject) se descarta el perfil
// y se devuelve el user_id existente con already=true.
func (s *Store) CreateUserLink(ctx context.Context, link store.NewUserLink) (string, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback(ctx)

	profileID := uuid.NewString()
	const insertProfile = `
		INSERT INTO user_profile (id, org_id, display_name)
		VALUES ($1, $2, $3)
	`
	if _, err := tx.Exec(ctx, insertProfile, profileID, link.OrgID, link.DisplayName); err != nil {
		return "", false, err
	}

	const insertAccount = `
		INSERT INTO auth_account (id, user_id, provider, provider_subject, email)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, provider_subject) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insertAccount, uuid.NewString(), profileID, link.Provider, link.ProviderSubject, link.Email)
	if err != nil {
		return "", false, err
	}
	if tag.RowsAffected() == 0 {
		// Otro proceso ganó la carrera; el rollback descarta el perfil.
		existing, found, err := s.LookupAccount(ctx, link.Provider, link.ProviderSubject)
		if err != nil {
			return "", false, err
		}
		if !found {
			return "", false, errors.New("auth_account conflict but no existing link")
		}
		return existing, true, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return "", false, err
	}
	return profileID, false, nil
}

func (s *Store) AppendAudit(ctx context.Context, event domain.AuditEvent) error {
	const query = `
		INSERT INTO audit_event (org_id, actor_user_id, event_type, entity_table, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query,
		event.OrgID,
		event.ActorUserID,
		event.EventType,
		event.EntityTable,
		event.EntityID,
		event.Detail,
	)
	return err
}

// Probe hace ping al pool; el status se reporta como 200 para mantener el
// contrato de whoami entre backends. Un ping fallido equivale a un fallo
// de transporte y se devuelve como error.
func (s *Store) Probe(ctx context.Context) (store.ProbeResult, error) {
	if err := s.pool.Ping(ctx); err != nil {
		return store.ProbeResult{}, err
	}
	return store.ProbeResult{OK: true, HTTPStatus: http.StatusOK}, nil
}
