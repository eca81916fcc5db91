// Package identity decides who owns a cart: a signed-in user or an
// anonymous session.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/persiamall/storefront/pkg/enums"
)

// Owner identifies the holder of a cart within a store.
type Owner struct {
	Kind         enums.OwnerKind
	UserID       uuid.UUID
	SessionToken string
}

func UserOwner(id uuid.UUID) Owner {
	return Owner{Kind: enums.OwnerKindUser, UserID: id}
}

func SessionOwner(token string) Owner {
	return Owner{Kind: enums.OwnerKindSession, SessionToken: token}
}

// Key is the persisted owner key: "user:<uuid>" or "session:<token>".
func (o Owner) Key() string {
	if o.Kind == enums.OwnerKindUser {
		return "user:" + o.UserID.String()
	}
	return "session:" + o.SessionToken
}

// LogRef is safe to log; session tokens are hashed.
func (o Owner) LogRef() string {
	if o.Kind == enums.OwnerKindUser {
		return o.UserID.String()
	}
	sum := sha256.Sum256([]byte(o.SessionToken))
	return hex.EncodeToString(sum[:6])
}

func (o Owner) IsUser() bool {
	return o.Kind == enums.OwnerKindUser && o.UserID != uuid.Nil
}

func (o Owner) Valid() bool {
	switch o.Kind {
	case enums.OwnerKindUser:
		return o.UserID != uuid.Nil
	case enums.OwnerKindSession:
		return o.SessionToken != ""
	default:
		return false
	}
}

type ctxKey struct{}

// WithOwner stores the resolved owner on the request context.
func WithOwner(ctx context.Context, owner Owner) context.Context {
	return context.WithValue(ctx, ctxKey{}, owner)
}

// FromContext returns the owner placed by the identity middleware.
func FromContext(ctx context.Context) (Owner, bool) {
	if ctx == nil {
		return Owner{}, false
	}
	owner, ok := ctx.Value(ctxKey{}).(Owner)
	return owner, ok && owner.Valid()
}
