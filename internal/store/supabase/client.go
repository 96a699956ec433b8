package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"identity-sync/internal/domain"
	"identity-sync/internal/store"
)

// Client implementa store.Store contra el dialecto REST de Supabase
// (PostgREST): GET con filtros col=eq.valor y POST con JSON de la fila.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient construye un cliente apuntando a <base>/rest/v1.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) get(ctx context.Context, table string, query url.Values, out any) error {
	endpoint := c.baseURL + "/rest/v1/" + table + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &store.DownstreamError{Op: "get " + table, Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &store.DownstreamError{Op: "get " + table, Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// post inserta una fila. Con representation=true pide la fila creada de
// vuelta vía Prefer: return=representation.
func (c *Client) post(ctx context.Context, table string, row any, representation bool) ([]byte, int, error) {
	bodyBytes, err := json.Marshal(row)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal row: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rest/v1/"+table, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if representation {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("post %s: %w", table, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return respBody, resp.StatusCode, &store.DownstreamError{Op: "create " + table, Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, resp.StatusCode, nil
}

// LookupAccount busca el vínculo existente para (provider, subject).
func (c *Client) LookupAccount(ctx context.Context, provider, subject string) (string, bool, error) {
	query := url.Values{}
	query.Set("select", "user_id")
	query.Set("provider", "eq."+provider)
	query.Set("provider_subject", "eq."+subject)

	var rows []struct {
		UserID string `json:"user_id"`
	}
	if err := c.get(ctx, "auth_account", query, &rows); err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].UserID, true, nil
}

// AnyOrganization toma la primera organización que devuelva el gateway.
func (c *Client) AnyOrganization(ctx context.Context) (string, error) {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "1")

	var rows []struct {
		ID string `json:"id"`
	}
	if err := c.get(ctx, "org", query, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].ID == "" {
		return "", store.ErrNoOrganization
	}
	return rows[0].ID, nil
}

// CreateUserLink hace dos POST secuenciales: user_profile y luego
// auth_account. No hay transacción: si el segundo falla queda un perfil
// huérfano sin rollback.
func (c *Client) CreateUserLink(ctx context.Context, link store.NewUserLink) (string, bool, error) {
	profileBody, status, err := c.post(ctx, "user_profile", map[string]any{
		"org_id":       link.OrgID,
		"display_name": link.DisplayName,
	}, true)
	if err != nil {
		return "", false, err
	}

	var profiles []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(profileBody, &profiles); err != nil || len(profiles) == 0 || profiles[0].ID == "" {
		return "", false, &store.DownstreamError{Op: "create user_profile", Status: status, Body: string(profileBody)}
	}
	profileID := profiles[0].ID

	if _, _, err := c.post(ctx, "auth_account", map[string]any{
		"user_id":          profileID,
		"provider":         link.Provider,
		"provider_subject": link.ProviderSubject,
		"email":            link.Email,
	}, true); err != nil {
		return "", false, err
	}

	return profileID, false, nil
}

// AppendAudit inserta el evento sin pedir representación; el caller decide
// si ignora el error.
func (c *Client) AppendAudit(ctx context.Context, event domain.AuditEvent) error {
	_, _, err := c.post(ctx, "audit_event", event, false)
	return err
}

// Probe hace un GET mínimo sobre org y reporta status sin exponer
// configuración. Un fallo de transporte se devuelve como error.
func (c *Client) Probe(ctx context.Context) (store.ProbeResult, error) {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/org?"+query.Encode(), nil)
	if err != nil {
		return store.ProbeResult{}, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return store.ProbeResult{}, fmt.Errorf("probe org: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return store.ProbeResult{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		HTTPStatus: resp.StatusCode,
	}, nil
}
