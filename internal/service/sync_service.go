package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"identity-sync/internal/domain"
	"identity-sync/internal/identity"
	"identity-sync/internal/store"
)

// ErrorKind clasifica las fallas del flujo de sincronización para el sobre
// de error unificado.
type ErrorKind string

const (
	KindAuthMissing   ErrorKind = "auth_missing"
	KindConfigMissing ErrorKind = "config_missing"
	KindDownstream    ErrorKind = "downstream"
	KindRateLimited   ErrorKind = "rate_limited"
	KindUnexpected    ErrorKind = "unexpected"
)

// SyncError es un error tipado con la clase de falla y, para fallas del
// almacén, el payload crudo para diagnóstico.
type SyncError struct {
	Kind    ErrorKind
	Message string
	Detail  string
}

func (e *SyncError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

const missingConfigMessage = "missing SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY"

// SyncResult es el resultado de una sincronización exitosa.
type SyncResult struct {
	ProfileID string
	Already   bool
}

// SyncRateLimiter limita sincronizaciones por provider subject.
type SyncRateLimiter interface {
	Allow(key string) bool
}

// SyncService garantiza que exista exactamente un par perfil+cuenta por
// subject del proveedor, creándolo en el primer encuentro.
type SyncService struct {
	logger  *zap.Logger
	store   store.Store
	limiter SyncRateLimiter
}

// NewSyncService crea el servicio. Un store nil significa que el gateway no
// está configurado; cada Sync lo reporta como error de configuración.
func NewSyncService(logger *zap.Logger, st store.Store, limiter SyncRateLimiter) *SyncService {
	return &SyncService{
		logger:  logger,
		store:   st,
		limiter: limiter,
	}
}

// Sync ejecuta la secuencia de aprovisionamiento: lookup de idempotencia,
// resolución de organización, creación de perfil+cuenta y auditoría
// best-effort. Sin reintentos; toda falla del almacén es terminal.
func (s *SyncService) Sync(ctx context.Context, id identity.Identity) (SyncResult, error) {
	if s.store == nil {
		return SyncResult{}, &SyncError{Kind: KindConfigMissing, Message: missingConfigMessage}
	}
	if s.limiter != nil && !s.limiter.Allow(id.Subject) {
		return SyncResult{}, &SyncError{Kind: KindRateLimited, Message: "too many sync requests"}
	}

	userID, found, err := s.store.LookupAccount(ctx, domain.ProviderNetlify, id.Subject)
	if err != nil {
		return SyncResult{}, downstreamError("lookup auth_account", err)
	}
	if found {
		return SyncResult{ProfileID: userID, Already: true}, nil
	}

	orgID, err := s.store.AnyOrganization(ctx)
	if errors.Is(err, store.ErrNoOrganization) {
		return SyncResult{}, &SyncError{Kind: KindConfigMissing, Message: store.ErrNoOrganization.Error()}
	}
	if err != nil {
		return SyncResult{}, downstreamError("resolve org", err)
	}

	profileID, already, err := s.store.CreateUserLink(ctx, store.NewUserLink{
		OrgID:           orgID,
		DisplayName:     id.Email,
		Provider:        domain.ProviderNetlify,
		ProviderSubject: id.Subject,
		Email:           id.Email,
	})
	if err != nil {
		return SyncResult{}, downstreamError("create user link", err)
	}

	// La auditoría nunca afecta la respuesta.
	audit := domain.AuditEvent{
		OrgID:       orgID,
		ActorUserID: profileID,
		EventType:   domain.EventUserSync,
		EntityTable: "user_profile",
		EntityID:    profileID,
		Detail:      map[string]any{"provider": domain.ProviderNetlify, "email": id.Email},
	}
	if err := s.store.AppendAudit(ctx, audit); err != nil {
		s.logger.Warn("audit append failed", zap.Error(err))
	}

	return SyncResult{ProfileID: profileID, Already: already}, nil
}

func downstreamError(op string, err error) *SyncError {
	var de *store.DownstreamError
	if errors.As(err, &de) {
		return &SyncError{Kind: KindDownstream, Message: op + " failed", Detail: de.Body}
	}
	return &SyncError{Kind: KindDownstream, Message: op + " failed: " + err.Error()}
}
