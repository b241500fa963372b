// Package idp provides the identity-provider boundary for the Katya
// identity platform: the OAuth2 token broker that performs grant
// exchanges against an OpenID-Connect provider's token endpoint, and the
// admin directory client that manages users and realm roles through the
// provider's administrative REST API.
//
// Both clients translate transport and provider errors into the
// platform's error taxonomy at this boundary; callers never see raw
// transport errors.
package idp

import (
	"net/url"
	"time"

	kerr "github.com/katya-platform/identity-core/pkg/errors"
)

// Default configuration values applied by [Config.Validate] when fields
// are zero-valued.
const (
	// DefaultRequestTimeout bounds each HTTP call to the provider.
	// Applied uniformly to broker and admin calls; an unbounded admin
	// hang would stall every authenticated request behind the sync
	// middleware.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultTokenCacheSkew is subtracted from a service token's
	// expires_in when computing its cache deadline, so a token is never
	// used in the final moments of its lifetime.
	DefaultTokenCacheSkew = 10 * time.Second
)

// Secret is a string type that redacts its value in String(), GoString(),
// and MarshalText() to prevent accidental exposure in logs or serialized
// output. The actual value is only accessible via [Secret.Value].
type Secret string

// secretRedacted is the placeholder shown instead of the actual value.
const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder.
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string.
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the redacted
// placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// Config holds the connection settings for the identity provider. It
// supports JSON/YAML serialization and environment variable loading via
// the pkg/config loader.
//
// Example:
//
//	cfg := idp.Config{
//	    BaseURL:      "https://id.example.com",
//	    Realm:        "katya",
//	    ClientID:     "identity-core",
//	    ClientSecret: idp.Secret("..."),
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// BaseURL is the provider's root URL, without a trailing slash
	// (e.g. "https://id.example.com").
	BaseURL string `json:"base_url" yaml:"base_url" env:"IDP_BASE_URL"`

	// Realm is the provider realm all token and admin endpoints are
	// scoped to.
	Realm string `json:"realm" yaml:"realm" env:"IDP_REALM"`

	// ClientID is the OAuth2 client identifier this service
	// authenticates as.
	ClientID string `json:"client_id" yaml:"client_id" env:"IDP_CLIENT_ID"`

	// ClientSecret is the confidential client's secret. The Secret type
	// prevents accidental logging of the value.
	ClientSecret Secret `json:"-" yaml:"client_secret" env:"IDP_CLIENT_SECRET"`

	// RedirectURL is the default redirect URI used when building
	// authorization URLs. Optional; callers may pass an explicit
	// redirect per call.
	RedirectURL string `json:"redirect_url,omitempty" yaml:"redirect_url" env:"IDP_REDIRECT_URL"`

	// RequestTimeout bounds each HTTP call to the provider. Defaults to
	// DefaultRequestTimeout.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" env:"IDP_REQUEST_TIMEOUT" envDefault:"10s"`

	// TokenCacheSkew is the safety margin subtracted from a cached
	// service token's lifetime. Defaults to DefaultTokenCacheSkew.
	TokenCacheSkew time.Duration `json:"token_cache_skew" yaml:"token_cache_skew" env:"IDP_TOKEN_CACHE_SKEW" envDefault:"10s"`
}

// DefaultConfig returns a Config with default timeout values. BaseURL,
// Realm, ClientID, and ClientSecret must still be provided by the caller.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: DefaultRequestTimeout,
		TokenCacheSkew: DefaultTokenCacheSkew,
	}
}

// Validate checks the configuration for logical correctness and applies
// defaults for zero-valued timeout fields. Returns a *[kerr.Error] with
// code [kerr.CodeValidation] if any field is invalid. The error return
// type satisfies the pkg/config Validator hook, so the loader runs this
// validation automatically.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return kerr.New(kerr.CodeValidation, "idp: base URL must not be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return kerr.New(kerr.CodeValidation, "idp: base URL is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return kerr.New(kerr.CodeValidation, "idp: base URL scheme must be http or https")
	}

	if c.Realm == "" {
		return kerr.New(kerr.CodeValidation, "idp: realm must not be empty")
	}
	if c.ClientID == "" {
		return kerr.New(kerr.CodeValidation, "idp: client ID must not be empty")
	}

	if c.RequestTimeout < 0 {
		return kerr.New(kerr.CodeValidation, "idp: request_timeout must not be negative")
	}
	if c.TokenCacheSkew < 0 {
		return kerr.New(kerr.CodeValidation, "idp: token_cache_skew must not be negative")
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.TokenCacheSkew == 0 {
		c.TokenCacheSkew = DefaultTokenCacheSkew
	}

	return nil
}

// realmURL joins the provider base URL with a path under the realm's
// OpenID-Connect namespace.
func (c *Config) realmURL(suffix string) string {
	return c.BaseURL + "/realms/" + url.PathEscape(c.Realm) + suffix
}

// adminURL joins the provider base URL with a path under the realm's
// administrative namespace.
func (c *Config) adminURL(suffix string) string {
	return c.BaseURL + "/admin/realms/" + url.PathEscape(c.Realm) + suffix
}

// TokenURL returns the realm's OAuth2 token endpoint.
func (c *Config) TokenURL() string {
	return c.realmURL("/protocol/openid-connect/token")
}

// LogoutURL returns the realm's logout/revocation endpoint.
func (c *Config) LogoutURL() string {
	return c.realmURL("/protocol/openid-connect/logout")
}

// AuthURL returns the realm's authorization endpoint.
func (c *Config) AuthURL() string {
	return c.realmURL("/protocol/openid-connect/auth")
}

// UsersURL returns the admin API endpoint for user management.
func (c *Config) UsersURL() string {
	return c.adminURL("/users")
}

// RolesURL returns the admin API endpoint for realm role lookup.
func (c *Config) RolesURL() string {
	return c.adminURL("/roles")
}

// AuthCodeURL builds the browser-facing authorization URL for the
// authorization-code flow. redirectURI falls back to the configured
// RedirectURL when empty; state is included when non-empty.
func (c *Config) AuthCodeURL(redirectURI, state string) string {
	return c.authCodeURL(redirectURI, state, "")
}

// GoogleAuthCodeURL builds the authorization URL with the provider's
// identity-provider hint set to Google, sending the user straight to the
// Google login instead of the realm's login form.
func (c *Config) GoogleAuthCodeURL(redirectURI, state string) string {
	return c.authCodeURL(redirectURI, state, "google")
}

func (c *Config) authCodeURL(redirectURI, state, idpHint string) string {
	if redirectURI == "" {
		redirectURI = c.RedirectURL
	}

	q := url.Values{}
	q.Set("client_id", c.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", "openid")
	q.Set("redirect_uri", redirectURI)
	if state != "" {
		q.Set("state", state)
	}
	if idpHint != "" {
		q.Set("kc_idp_hint", idpHint)
	}

	return c.AuthURL() + "?" + q.Encode()
}
