// Package account orchestrates the user-facing identity flows:
// registration against the provider directory, the login and token
// lifecycle through the broker, and the current-user profile that
// combines provider identity with the reconciled local record.
//
// Non-critical steps (role grant after registration, post-login sync,
// token revocation on logout) are wrapped by an explicit
// log-and-continue adapter so that a best-effort path is visible as
// such at the call site instead of silently swallowing errors inline.
package account

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/katya-platform/identity-core/pkg/auth"
	kerr "github.com/katya-platform/identity-core/pkg/errors"
	"github.com/katya-platform/identity-core/pkg/idp"
	"github.com/katya-platform/identity-core/pkg/user"
)

// tracerName is the OpenTelemetry instrumentation scope name for
// account spans.
const tracerName = "github.com/katya-platform/identity-core/pkg/account"

// DefaultRegistrationRole is the realm role granted to freshly
// registered users when the service is not configured with another one.
const DefaultRegistrationRole = "user"

// TokenBroker is the grant-exchange surface the account flows need.
// [*idp.Broker] satisfies it.
type TokenBroker interface {
	ExchangePassword(ctx context.Context, username, password string) (*idp.TokenSet, error)
	ExchangeAuthorizationCode(ctx context.Context, code, redirectURI string) (*idp.TokenSet, error)
	Refresh(ctx context.Context, refreshToken string) (*idp.TokenSet, error)
	Revoke(ctx context.Context, refreshToken string) error
	Config() idp.Config
}

// Directory is the provider administration surface the account flows
// need. [*idp.AdminClient] satisfies it.
type Directory interface {
	CreateUser(ctx context.Context, u idp.NewUser) error
	AssignRealmRole(ctx context.Context, username, roleName string) error
	FetchUserRoles(ctx context.Context, userID string) ([]string, error)
}

// Syncer reconciles a provider identity into the local user store.
// [*user.Reconciler] satisfies it.
type Syncer interface {
	SyncUser(ctx context.Context, identity *auth.CanonicalIdentity) (*user.User, error)
}

// Profile is the current-user view: the identity as the provider sees
// it right now, the provider-side realm roles, and the id of the
// reconciled local record.
type Profile struct {
	SubjectID   string   `json:"subject_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles"`
	LocalUserID int64    `json:"local_user_id"`
}

// Service implements the account flows on top of the token broker, the
// provider directory, and the local reconciler.
type Service struct {
	broker      TokenBroker
	directory   Directory
	syncer      Syncer
	defaultRole string
	tracer      trace.Tracer
}

// NewService creates an account service. An empty defaultRole falls
// back to [DefaultRegistrationRole].
func NewService(broker TokenBroker, directory Directory, syncer Syncer, defaultRole string) *Service {
	if defaultRole == "" {
		defaultRole = DefaultRegistrationRole
	}
	return &Service{
		broker:      broker,
		directory:   directory,
		syncer:      syncer,
		defaultRole: defaultRole,
		tracer:      otel.Tracer(tracerName),
	}
}

// Register creates the user in the provider directory, then grants the
// default realm role best-effort. A failed grant never fails the
// registration: the signup stays idempotent and the user simply holds
// no role until a later grant.
func (s *Service) Register(ctx context.Context, reg idp.NewUser) error {
	ctx, span := s.tracer.Start(ctx, "account.Register",
		trace.WithAttributes(attribute.String("account.username", reg.Username)))
	defer span.End()

	if err := validateRegistration(reg); err != nil {
		return s.fail(span, err)
	}

	if err := s.directory.CreateUser(ctx, reg); err != nil {
		return s.fail(span, err)
	}

	s.bestEffort(ctx, "default role grant", func() error {
		return s.directory.AssignRealmRole(ctx, reg.Username, s.defaultRole)
	})
	return nil
}

// Login exchanges the resource-owner credentials for a token set, then
// reconciles the local user from the fresh token best-effort. A failed
// sync never fails the login; the per-request trigger catches up on the
// next authenticated call.
func (s *Service) Login(ctx context.Context, username, password string) (*idp.TokenSet, error) {
	ctx, span := s.tracer.Start(ctx, "account.Login",
		trace.WithAttributes(attribute.String("account.username", username)))
	defer span.End()

	ts, err := s.broker.ExchangePassword(ctx, username, password)
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.syncFromToken(ctx, "post-login sync", ts.AccessToken)
	return ts, nil
}

// ExchangeCode completes the authorization-code flow and reconciles
// the local user from the fresh token best-effort, mirroring Login.
func (s *Service) ExchangeCode(ctx context.Context, code, redirectURI string) (*idp.TokenSet, error) {
	ctx, span := s.tracer.Start(ctx, "account.ExchangeCode")
	defer span.End()

	ts, err := s.broker.ExchangeAuthorizationCode(ctx, code, redirectURI)
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.syncFromToken(ctx, "post-callback sync", ts.AccessToken)
	return ts, nil
}

// Refresh exchanges a refresh token for a fresh token set.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*idp.TokenSet, error) {
	ctx, span := s.tracer.Start(ctx, "account.Refresh")
	defer span.End()

	ts, err := s.broker.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return ts, nil
}

// Logout revokes the refresh token best-effort. A provider rejection
// leaves the session to expire on its own; the client discards its
// tokens either way, so logout never fails.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	ctx, span := s.tracer.Start(ctx, "account.Logout")
	defer span.End()

	s.bestEffort(ctx, "token revocation", func() error {
		return s.broker.Revoke(ctx, refreshToken)
	})
}

// AuthURL builds the provider authorization URL for the standard
// authorization-code flow.
func (s *Service) AuthURL(redirectURI, state string) string {
	cfg := s.broker.Config()
	return cfg.AuthCodeURL(redirectURI, state)
}

// GoogleAuthURL builds the authorization URL with the Google identity
// provider hint, sending the user straight to the Google login screen.
func (s *Service) GoogleAuthURL(redirectURI, state string) string {
	cfg := s.broker.Config()
	return cfg.GoogleAuthCodeURL(redirectURI, state)
}

// CurrentUser performs the full freshness sync for the calling
// identity and returns the combined profile. Unlike the per-request
// trigger this path always reconciles field drift, and it is the only
// path that does: profile staleness heals when the user lands here.
func (s *Service) CurrentUser(ctx context.Context, identity *auth.CanonicalIdentity) (*Profile, error) {
	ctx, span := s.tracer.Start(ctx, "account.CurrentUser",
		trace.WithAttributes(attribute.String("account.subject_id", identity.SubjectID)))
	defer span.End()

	local, err := s.syncer.SyncUser(ctx, identity)
	if err != nil {
		return nil, s.fail(span, err)
	}

	roles, err := s.directory.FetchUserRoles(ctx, identity.SubjectID)
	if err != nil {
		return nil, s.fail(span, err)
	}

	return &Profile{
		SubjectID:   identity.SubjectID,
		Username:    identity.Username,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Roles:       roles,
		LocalUserID: local.ID,
	}, nil
}

// syncFromToken decodes the canonical identity from a freshly issued
// access token and reconciles the local user, best-effort.
func (s *Service) syncFromToken(ctx context.Context, step, accessToken string) {
	s.bestEffort(ctx, step, func() error {
		identity, err := auth.FromToken(accessToken)
		if err != nil {
			return err
		}
		_, syncErr := s.syncer.SyncUser(ctx, identity)
		return syncErr
	})
}

// bestEffort is the log-and-continue adapter for non-critical steps.
// The wrapped operation still returns its error; this is the one place
// where that error is converted into a log line instead of propagated.
func (s *Service) bestEffort(ctx context.Context, step string, op func() error) {
	if err := op(); err != nil {
		slog.WarnContext(ctx, "account: best-effort step failed, continuing",
			"step", step,
			"error", err,
		)
	}
}

// fail records the error on the span and returns it.
func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// validateRegistration checks the request fields that the provider
// cannot default, collecting every violation before failing.
func validateRegistration(reg idp.NewUser) error {
	var missing []string
	if reg.Username == "" {
		missing = append(missing, "username")
	}
	if reg.Email == "" {
		missing = append(missing, "email")
	}
	if reg.Password.Value() == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return kerr.New(kerr.CodeValidationRequired, "account: registration is missing required fields").
			WithFields(missing...)
	}
	return nil
}
