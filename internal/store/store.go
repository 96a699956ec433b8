package store

import (
	"context"
	"errors"
	"fmt"

	"identity-sync/internal/domain"
)

// ErrNoOrganization indica que la tabla org está vacía; el operador debe
// sembrar una fila antes de sincronizar usuarios.
var ErrNoOrganization = errors.New("no org found, please insert one org row first")

// NewUserLink agrupa los datos para crear un user_profile y su
// auth_account vinculada en una sola operación.
type NewUserLink struct {
	OrgID           string
	DisplayName     *string
	Provider        string
	ProviderSubject string
	Email           *string
}

// ProbeResult es el resultado de la sonda de conectividad de whoami.
// HTTPStatus queda en cero cuando no hubo respuesta del almacén.
type ProbeResult struct {
	OK         bool
	HTTPStatus int
}

// Store define el contrato contra el almacén relacional. Las dos
// implementaciones son el gateway REST de Supabase y Postgres directo.
type Store interface {
	// LookupAccount busca el user_id vinculado a (provider, subject).
	LookupAccount(ctx context.Context, provider, subject string) (string, bool, error)
	// AnyOrganization devuelve el id de una organización cualquiera,
	// o ErrNoOrganization si no existe ninguna.
	AnyOrganization(ctx context.Context) (string, error)
	// CreateUserLink crea el perfil y la cuenta vinculada. Devuelve
	// already=true si otro proceso ganó la carrera y el vínculo ya existía.
	CreateUserLink(ctx context.Context, link NewUserLink) (string, bool, error)
	// AppendAudit escribe un evento de auditoría.
	AppendAudit(ctx context.Context, event domain.AuditEvent) error
	// Probe verifica conectividad de solo lectura contra el almacén.
	// Una respuesta del almacén, incluso de rechazo, es un ProbeResult;
	// un fallo de transporte (sin respuesta) es error y el caller lo
	// trata como fatal.
	Probe(ctx context.Context) (ProbeResult, error)
}

// DownstreamError conserva el payload crudo del almacén para diagnóstico
// del operador.
type DownstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("%s failed: status=%d body=%s", e.Op, e.Status, e.Body)
}
