package idp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	kerr "github.com/katya-platform/identity-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for idp spans.
const tracerName = "github.com/katya-platform/identity-core/pkg/idp"

// maxResponseSize limits provider response bodies (1 MB) to prevent
// resource exhaustion on a misbehaving endpoint.
const maxResponseSize = 1 << 20

// OAuth2 grant type values, recorded as span attributes.
const (
	grantPassword          = "password"
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
	grantClientCredentials = "client_credentials"
)

// HTTPClient abstracts the HTTP client used for admin REST calls,
// allowing callers to supply custom transports (proxies, recording
// middleware, test doubles). The standard [http.Client] satisfies this
// interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSet is the provider's token endpoint response. It is ephemeral:
// lifetime bounded to a single response, never persisted. The broker
// holds no session state across calls.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Broker performs OAuth2 grant exchanges against the identity provider's
// token endpoint, delegating the grant mechanics to [oauth2.Config] and
// [clientcredentials.Config]. Every grant call is a single round trip
// with no internal retry; retry policy belongs to the caller.
//
// Broker is safe for concurrent use by multiple goroutines.
type Broker struct {
	config     Config
	httpClient *http.Client
	tracer     trace.Tracer

	// svcTokens caches the client-credentials token across admin calls.
	// [oauth2.ReuseTokenSourceWithExpiry] refreshes it once the remaining
	// lifetime drops below the configured skew; the source serializes
	// refreshes internally and is never locked across callers' contexts.
	svcTokens oauth2.TokenSource
}

// NewBroker creates a token broker for the given provider configuration.
// The configuration is validated before use. If httpClient is nil, a
// default [http.Client] bounded by cfg.RequestTimeout is used.
func NewBroker(cfg Config, httpClient *http.Client) (*Broker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret.Value(),
		TokenURL:     cfg.TokenURL(),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// The token source is bound to the broker's HTTP client rather than
	// a per-call context; fetches are bounded by the client timeout.
	svcCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &Broker{
		config:     cfg,
		httpClient: httpClient,
		tracer:     otel.Tracer(tracerName),
		svcTokens:  oauth2.ReuseTokenSourceWithExpiry(nil, cc.TokenSource(svcCtx), cfg.TokenCacheSkew),
	}, nil
}

// Config returns a copy of the broker's provider configuration, for
// callers that need the endpoint URL builders.
func (b *Broker) Config() Config {
	return b.config
}

// ExchangePassword performs the resource-owner-password grant for the
// given end-user credentials.
//
// Returns [kerr.CodeAuthFailed] when the provider rejects the
// credentials (4xx), [kerr.CodeProviderUnavailable] on transport failure
// or provider 5xx, and [kerr.CodeTimeoutProvider] when the call exceeds
// its deadline.
func (b *Broker) ExchangePassword(ctx context.Context, username, password string) (*TokenSet, error) {
	ctx, span := b.startSpan(ctx, "idp.ExchangePassword",
		attribute.String("oauth.grant_type", grantPassword))
	defer span.End()

	tok, err := b.oauthConfig("").PasswordCredentialsToken(b.withHTTPClient(ctx), username, password)
	if err != nil {
		wrapped := classifyExchangeError(err, kerr.CodeAuthFailed, "idp: credentials rejected by provider")
		finishSpan(span, wrapped)
		return nil, wrapped
	}
	return tokenSet(tok), nil
}

// ExchangeAuthorizationCode performs the authorization-code grant for a
// code obtained from the provider's authorization endpoint. redirectURI
// falls back to the configured RedirectURL when empty. Failure mapping
// matches [Broker.ExchangePassword].
func (b *Broker) ExchangeAuthorizationCode(ctx context.Context, code, redirectURI string) (*TokenSet, error) {
	ctx, span := b.startSpan(ctx, "idp.ExchangeAuthorizationCode",
		attribute.String("oauth.grant_type", grantAuthorizationCode))
	defer span.End()

	if redirectURI == "" {
		redirectURI = b.config.RedirectURL
	}

	tok, err := b.oauthConfig(redirectURI).Exchange(b.withHTTPClient(ctx), code)
	if err != nil {
		wrapped := classifyExchangeError(err, kerr.CodeAuthFailed, "idp: authorization code rejected by provider")
		finishSpan(span, wrapped)
		return nil, wrapped
	}
	return tokenSet(tok), nil
}

// Refresh performs the refresh-token grant. Provider rejection maps to
// [kerr.CodeTokenInvalid], distinct from CodeAuthFailed, because the
// caller must re-login rather than retry with corrected credentials.
func (b *Broker) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	ctx, span := b.startSpan(ctx, "idp.Refresh",
		attribute.String("oauth.grant_type", grantRefreshToken))
	defer span.End()

	src := b.oauthConfig("").TokenSource(b.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		wrapped := classifyExchangeError(err, kerr.CodeTokenInvalid, "idp: refresh token rejected by provider")
		finishSpan(span, wrapped)
		return nil, wrapped
	}
	return tokenSet(tok), nil
}

// Revoke posts the refresh token to the provider's logout endpoint,
// invalidating the session. Revocation is a provider-specific endpoint
// outside the OAuth2 token surface, so it stays on a plain form POST. It
// returns an error so the caller can decide its severity; the account
// layer wraps Revoke in a log-and-continue adapter because an
// already-expired token is not a caller-actionable failure.
func (b *Broker) Revoke(ctx context.Context, refreshToken string) error {
	ctx, span := b.startSpan(ctx, "idp.Revoke")
	defer span.End()

	form := url.Values{}
	form.Set("client_id", b.config.ClientID)
	form.Set("client_secret", b.config.ClientSecret.Value())
	form.Set("refresh_token", refreshToken)

	resp, err := b.postForm(ctx, b.config.LogoutURL(), form)
	if err != nil {
		wrapped := classifyTransportError(err, "idp: logout request failed")
		finishSpan(span, wrapped)
		return wrapped
	}
	defer func() { _ = resp.Body.Close() }()
	drain(resp.Body)

	if resp.StatusCode >= 400 {
		err := kerr.Newf(kerr.CodeTokenInvalid, "idp: logout rejected with status %d", resp.StatusCode)
		finishSpan(span, err)
		return err
	}
	return nil
}

// ClientCredentialsToken obtains a service-to-service access token via
// the client-credentials grant. Failure is fatal to the calling admin
// operation and maps to [kerr.CodeServiceAuthFailed].
//
// Tokens are cached by the underlying token source until their remaining
// lifetime drops below the configured skew; a cache hit performs no I/O.
func (b *Broker) ClientCredentialsToken(ctx context.Context) (string, error) {
	_, span := b.startSpan(ctx, "idp.ClientCredentialsToken",
		attribute.String("oauth.grant_type", grantClientCredentials))
	defer span.End()

	tok, err := b.svcTokens.Token()
	if err != nil {
		wrapped := kerr.Wrap(err, kerr.CodeServiceAuthFailed, "idp: service token exchange failed")
		finishSpan(span, wrapped)
		return "", wrapped
	}
	return tok.AccessToken, nil
}

// oauthConfig builds the per-grant OAuth2 configuration. Client
// credentials are sent in the request body (AuthStyleInParams), matching
// the client-credentials source.
func (b *Broker) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     b.config.ClientID,
		ClientSecret: b.config.ClientSecret.Value(),
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   b.config.AuthURL(),
			TokenURL:  b.config.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// withHTTPClient routes the oauth2 exchange through the broker's
// configured HTTP client.
func (b *Broker) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}

// tokenSet converts an [oauth2.Token] to the broker's response shape.
func tokenSet(tok *oauth2.Token) *TokenSet {
	return &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tok.ExpiresIn,
		TokenType:    tok.TokenType,
	}
}

// classifyExchangeError maps a token endpoint failure to the platform
// taxonomy. rejectCode is used for provider 4xx responses; 5xx maps to
// CodeProviderUnavailable and transport failures go through
// [classifyTransportError].
func classifyExchangeError(err error, rejectCode kerr.Code, rejectMsg string) *kerr.Error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := rErr.Response.StatusCode
		if status >= 400 && status < 500 {
			return kerr.Wrap(err, rejectCode, rejectMsg)
		}
		return kerr.Wrapf(err, kerr.CodeProviderUnavailable, "idp: provider returned status %d", status)
	}
	return classifyTransportError(err, "idp: token request failed")
}

// postForm executes a form-encoded POST with the broker's HTTP client.
func (b *Broker) postForm(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.httpClient.Do(req)
}

// classifyTransportError maps an HTTP client error to the platform
// taxonomy: deadline expiry to CodeTimeoutProvider, everything else to
// CodeProviderUnavailable.
func classifyTransportError(err error, msg string) *kerr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return kerr.Wrap(err, kerr.CodeTimeoutProvider, msg)
	}
	// url.Error wraps timeouts reported by the transport itself.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return kerr.Wrap(err, kerr.CodeTimeoutProvider, msg)
	}
	return kerr.Wrap(err, kerr.CodeProviderUnavailable, msg)
}

// drain consumes a response body so the underlying connection can be
// reused.
func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseSize))
}

// startSpan creates a new span with the given name and attributes.
func (b *Broker) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// finishSpan records an error on the span if err is non-nil and sets the
// span status to Error.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
