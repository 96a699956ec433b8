package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNoContext indica que el host no inyectó ningún blob de identidad.
	ErrNoContext = errors.New("no identity context")
	// ErrNoSubject indica que el blob decodificó pero no trae user.sub.
	ErrNoSubject = errors.New("no user")
)

// Identity es la identidad ya verificada por el host de identidad externo.
type Identity struct {
	Subject string
	Email   *string
}

// Context es el blob decodificado completo, tal como lo inyecta el host:
// {user: {sub, email}, identity: {...}}.
type Context struct {
	User     *ContextUser   `json:"user"`
	Identity map[string]any `json:"identity"`
}

// ContextUser es la sección user del blob.
type ContextUser struct {
	Sub   string  `json:"sub"`
	Email *string `json:"email"`
}

// Decode decodifica el blob base64 inyectado por el host. Un blob ausente
// devuelve ErrNoContext; base64 o JSON inválidos devuelven el error crudo
// para que cada handler decida si es fatal.
func Decode(raw string) (*Context, error) {
	if raw == "" {
		return nil, ErrNoContext
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode identity context: %w", err)
	}
	var c Context
	if err := json.Unmarshal(decoded, &c); err != nil {
		return nil, fmt.Errorf("parse identity context: %w", err)
	}
	return &c, nil
}

// Verified extrae la identidad verificada del contexto, o ErrNoSubject si
// no hay user.sub.
func (c *Context) Verified() (Identity, error) {
	if c == nil || c.User == nil || c.User.Sub == "" {
		return Identity{}, ErrNoSubject
	}
	return Identity{Subject: c.User.Sub, Email: c.User.Email}, nil
}
