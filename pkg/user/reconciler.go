package user

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/katya-platform/identity-core/pkg/auth"
	kerr "github.com/katya-platform/identity-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for
// reconciliation spans.
const tracerName = "github.com/katya-platform/identity-core/pkg/user"

// Reconciler merges provider-asserted identity into the local user
// record. Per subject, the state machine is: absent rows are created,
// rows with field drift are updated, unchanged rows get only a
// last-synced timestamp refresh.
//
// Reconciler is safe for concurrent use; concurrency safety for the
// insert race is delegated to the store's unique constraint on the
// subject id, not to in-process locking.
type Reconciler struct {
	store  Store
	tracer trace.Tracer
}

// NewReconciler creates a reconciler over the given user store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{
		store:  store,
		tracer: otel.Tracer(tracerName),
	}
}

// SyncUser upserts the local user row for the given identity and returns
// the resulting row with its local id populated.
//
// On first sighting of a subject id a new row is inserted with
// IsActive=true; this is the only path that allocates a local id. If two
// near-simultaneous requests race on the insert, the loser's unique
// violation is treated as "someone else just created it" and resolved
// through the update path.
func (r *Reconciler) SyncUser(ctx context.Context, identity *auth.CanonicalIdentity) (*User, error) {
	ctx, span := r.tracer.Start(ctx, "user.SyncUser",
		trace.WithAttributes(attribute.String("user.subject_id", identity.SubjectID)))
	defer span.End()

	existing, err := r.store.FindBySubjectID(ctx, identity.SubjectID)
	if err != nil {
		return nil, r.fail(span, err)
	}

	if existing == nil {
		created := &User{
			SubjectID:   identity.SubjectID,
			Username:    identity.Username,
			Email:       normalizeEmail(identity.Email),
			DisplayName: identity.DisplayName,
			IsActive:    true,
		}
		insertErr := r.store.Insert(ctx, created)
		if insertErr == nil {
			span.SetAttributes(attribute.String("user.sync_outcome", "created"))
			return created, nil
		}
		if !IsUniqueViolation(insertErr) {
			return nil, r.fail(span, insertErr)
		}

		// Lost the insert race; the row now exists, take the update path.
		existing, err = r.store.FindBySubjectID(ctx, identity.SubjectID)
		if err != nil {
			return nil, r.fail(span, err)
		}
		if existing == nil {
			return nil, r.fail(span, kerr.Newf(kerr.CodeInternalDatabase,
				"user: subject %q vanished after insert conflict", identity.SubjectID))
		}
	}

	if changed := applyIdentity(existing, identity); changed {
		if err := r.store.Update(ctx, existing); err != nil {
			return nil, r.fail(span, err)
		}
		span.SetAttributes(attribute.String("user.sync_outcome", "updated"))
		return existing, nil
	}

	if err := r.store.TouchLastSynced(ctx, identity.SubjectID); err != nil {
		return nil, r.fail(span, err)
	}
	span.SetAttributes(attribute.String("user.sync_outcome", "unchanged"))
	return existing, nil
}

// EnsureUser is the existence-only gate used per request: when a row for
// the subject already exists it does nothing, otherwise it runs a full
// [Reconciler.SyncUser]. This is deliberately weaker than full sync on
// every call; field freshness is reconciled only by the current-user
// flow.
func (r *Reconciler) EnsureUser(ctx context.Context, identity *auth.CanonicalIdentity) error {
	ctx, span := r.tracer.Start(ctx, "user.EnsureUser",
		trace.WithAttributes(attribute.String("user.subject_id", identity.SubjectID)))
	defer span.End()

	exists, err := r.store.Exists(ctx, identity.SubjectID)
	if err != nil {
		return r.fail(span, err)
	}
	if exists {
		span.SetAttributes(attribute.Bool("user.exists", true))
		return nil
	}

	_, err = r.SyncUser(ctx, identity)
	if err != nil {
		return r.fail(span, err)
	}
	return nil
}

// fail records the error on the span and returns it.
func (r *Reconciler) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// applyIdentity diffs the three provider-owned fields (username, email,
// display name) against the incoming identity, mutating only the fields
// that differ. Returns whether anything changed, keeping the
// timestamp-only branch an explicit path rather than an accidental
// fallthrough.
func applyIdentity(u *User, identity *auth.CanonicalIdentity) bool {
	changed := false

	if u.Username != identity.Username {
		u.Username = identity.Username
		changed = true
	}

	incoming := normalizeEmail(identity.Email)
	if !emailEqual(u.Email, incoming) {
		u.Email = incoming
		changed = true
	}

	if u.DisplayName != identity.DisplayName {
		u.DisplayName = identity.DisplayName
		changed = true
	}

	return changed
}

// emailEqual is null-safe pointer equality: nil == nil, nil != non-nil.
func emailEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// normalizeEmail maps an empty provider claim to nil so absence is
// stored as NULL rather than an empty string.
func normalizeEmail(email string) *string {
	if email == "" {
		return nil
	}
	return &email
}
