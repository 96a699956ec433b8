package domain

// ProviderNetlify es el único proveedor de identidad soportado hoy.
const ProviderNetlify = "netlify"

// EventUserSync identifica el evento de auditoría de sincronización.
const EventUserSync = "USER_SYNC"

// UserProfile es la fila de user_profile en el almacén.
type UserProfile struct {
	ID          string  `json:"id"`
	OrgID       string  `json:"org_id"`
	DisplayName *string `json:"display_name"`
}

// LinkedAccount vincula un subject externo con un user_profile interno.
// El par (provider, provider_subject) debe ser único.
type LinkedAccount struct {
	ID              string  `json:"id,omitempty"`
	UserID          string  `json:"user_id"`
	Provider        string  `json:"provider"`
	ProviderSubject string  `json:"provider_subject"`
	Email           *string `json:"email"`
}

// Organization es el tenant de primer nivel. El servicio nunca crea
// organizaciones; una debe existir de antemano.
type Organization struct {
	ID string `json:"id"`
}

// AuditEvent es un registro append-only; escribirlo es best-effort.
type AuditEvent struct {
	OrgID       string         `json:"org_id"`
	ActorUserID string         `json:"actor_user_id"`
	EventType   string         `json:"event_type"`
	EntityTable string         `json:"entity_table"`
	EntityID    string         `json:"entity_id"`
	Detail      map[string]any `json:"detail"`
}
