package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	kerr "github.com/katya-platform/identity-core/pkg/errors"
)

// defaultRolesPrefix marks provider-internal scaffolding roles that are
// never meaningful to the application and are filtered out of role
// listings.
const defaultRolesPrefix = "default-roles"

// ProviderUser is a user record as represented by the provider's admin
// API.
type ProviderUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// Role is a realm role descriptor from the provider's admin API.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewUser carries the fields for a provider-side user registration.
type NewUser struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  Secret
}

// providerCredential is the credential representation sent on user
// creation.
type providerCredential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// providerUserPayload is the JSON body for the user-creation POST.
type providerUserPayload struct {
	Username    string               `json:"username"`
	Email       string               `json:"email,omitempty"`
	FirstName   string               `json:"firstName,omitempty"`
	LastName    string               `json:"lastName,omitempty"`
	Enabled     bool                 `json:"enabled"`
	Credentials []providerCredential `json:"credentials"`
}

// AdminClient performs administrative operations against the provider's
// REST API. Every call authenticates with a client-credentials token
// obtained from the [Broker]; a failed service-token exchange is fatal to
// the operation and surfaces as [kerr.CodeServiceAuthFailed].
//
// AdminClient is safe for concurrent use by multiple goroutines.
type AdminClient struct {
	broker     *Broker
	config     Config
	httpClient HTTPClient
	tracer     trace.Tracer
}

// NewAdminClient creates an admin directory client sharing the broker's
// provider configuration. If httpClient is nil, the broker's HTTP client
// is used.
func NewAdminClient(broker *Broker, httpClient HTTPClient) *AdminClient {
	if httpClient == nil {
		httpClient = broker.httpClient
	}
	return &AdminClient{
		broker:     broker,
		config:     broker.config,
		httpClient: httpClient,
		tracer:     otel.Tracer(tracerName),
	}
}

// CreateUser registers a new user in the provider directory with the
// given credentials. The user is created enabled, with a permanent
// password.
//
// Returns [kerr.CodeUserExists] when the provider reports a duplicate
// username or email (409), [kerr.CodeRegistrationFailed] for any other
// provider rejection.
func (a *AdminClient) CreateUser(ctx context.Context, user NewUser) error {
	ctx, span := a.startSpan(ctx, "idp.CreateUser",
		attribute.String("idp.username", user.Username))
	defer span.End()

	payload := providerUserPayload{
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Enabled:   true,
		Credentials: []providerCredential{{
			Type:      "password",
			Value:     user.Password.Value(),
			Temporary: false,
		}},
	}

	resp, err := a.doJSON(ctx, http.MethodPost, a.config.UsersURL(), payload)
	if err != nil {
		finishSpan(span, err)
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	drain(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		err := kerr.Newf(kerr.CodeUserExists, "idp: user %q already exists", user.Username)
		finishSpan(span, err)
		return err
	default:
		err := kerr.Newf(kerr.CodeRegistrationFailed, "idp: user creation rejected with status %d", resp.StatusCode)
		finishSpan(span, err)
		return err
	}
}

// FindExactUser looks up a user by exact username equality. Returns
// (nil, nil) when no user matches; absence is an answer, not an error.
//
// The provider's username filter is a prefix match, so the result list
// is re-checked for exact equality.
func (a *AdminClient) FindExactUser(ctx context.Context, username string) (*ProviderUser, error) {
	ctx, span := a.startSpan(ctx, "idp.FindExactUser",
		attribute.String("idp.username", username))
	defer span.End()

	q := url.Values{}
	q.Set("username", username)
	q.Set("exact", "true")

	resp, err := a.doJSON(ctx, http.MethodGet, a.config.UsersURL()+"?"+q.Encode(), nil)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var users []ProviderUser
	if err := a.decode(resp, &users); err != nil {
		finishSpan(span, err)
		return nil, err
	}

	for i := range users {
		if users[i].Username == username {
			return &users[i], nil
		}
	}
	return nil, nil
}

// AssignRealmRole grants the named realm role to the user with the given
// username. It is a three-step sequence: resolve the user id, resolve
// the role descriptor, then POST the role mapping.
//
// It returns an error for each step's failure; the account layer wraps
// the call in a log-and-continue adapter because role assignment is a
// best-effort enhancement to registration, not a precondition for it.
func (a *AdminClient) AssignRealmRole(ctx context.Context, username, roleName string) error {
	ctx, span := a.startSpan(ctx, "idp.AssignRealmRole",
		attribute.String("idp.username", username),
		attribute.String("idp.role", roleName))
	defer span.End()

	user, err := a.FindExactUser(ctx, username)
	if err != nil {
		finishSpan(span, err)
		return err
	}
	if user == nil {
		err := kerr.Newf(kerr.CodeUserNotFound, "idp: user %q not found in provider directory", username)
		finishSpan(span, err)
		return err
	}

	role, err := a.findRealmRole(ctx, roleName)
	if err != nil {
		finishSpan(span, err)
		return err
	}

	mappingURL := a.config.UsersURL() + "/" + url.PathEscape(user.ID) + "/role-mappings/realm"
	resp, err := a.doJSON(ctx, http.MethodPost, mappingURL, []Role{*role})
	if err != nil {
		finishSpan(span, err)
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	drain(resp.Body)

	if resp.StatusCode >= 400 {
		err := kerr.Newf(kerr.CodeProviderUnavailable, "idp: role mapping rejected with status %d", resp.StatusCode)
		finishSpan(span, err)
		return err
	}
	return nil
}

// FetchUserRoles lists the realm roles mapped to the given provider user
// id, excluding provider-internal roles prefixed "default-roles".
func (a *AdminClient) FetchUserRoles(ctx context.Context, userID string) ([]string, error) {
	ctx, span := a.startSpan(ctx, "idp.FetchUserRoles",
		attribute.String("idp.user_id", userID))
	defer span.End()

	mappingURL := a.config.UsersURL() + "/" + url.PathEscape(userID) + "/role-mappings/realm"
	resp, err := a.doJSON(ctx, http.MethodGet, mappingURL, nil)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var roles []Role
	if err := a.decode(resp, &roles); err != nil {
		finishSpan(span, err)
		return nil, err
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		if strings.HasPrefix(r.Name, defaultRolesPrefix) {
			continue
		}
		names = append(names, r.Name)
	}
	return names, nil
}

// findRealmRole fetches the descriptor for a realm role by name.
func (a *AdminClient) findRealmRole(ctx context.Context, roleName string) (*Role, error) {
	resp, err := a.doJSON(ctx, http.MethodGet, a.config.RolesURL()+"/"+url.PathEscape(roleName), nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		drain(resp.Body)
		return nil, kerr.Newf(kerr.CodeNotFound, "idp: realm role %q not found", roleName)
	}

	var role Role
	if err := a.decode(resp, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// doJSON executes an admin API request with a fresh service token and an
// optional JSON body. Transport failures are classified into the
// platform taxonomy before returning.
func (a *AdminClient) doJSON(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	token, err := a.broker.ClientCredentialsToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, kerr.Wrap(err, kerr.CodeInternal, "idp: failed to encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, kerr.Wrap(err, kerr.CodeInternal, "idp: failed to create admin request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, "idp: admin request failed")
	}
	return resp, nil
}

// decode reads and unmarshals a 2xx admin response body into out. Non-2xx
// statuses map to CodeProviderUnavailable.
func (a *AdminClient) decode(resp *http.Response, out any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return kerr.Wrap(err, kerr.CodeProviderUnavailable, "idp: failed to read admin response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return kerr.Newf(kerr.CodeProviderUnavailable, "idp: admin endpoint returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return kerr.Wrap(err, kerr.CodeProviderUnavailable, "idp: malformed admin response")
	}
	return nil
}

// startSpan creates a new span with the given name and attributes.
func (a *AdminClient) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
