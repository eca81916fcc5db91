package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/persiamall/storefront/pkg/auth"
	"github.com/persiamall/storefront/pkg/auth/session"
	"github.com/persiamall/storefront/pkg/config"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
	"github.com/persiamall/storefront/pkg/logger"
)

// Credentials are the raw identity inputs of a request.
type Credentials struct {
	BearerToken  string
	SessionToken string
}

// Resolution is the outcome of Resolve. Issued is set when a new anonymous
// session was created and must be returned to the client.
type Resolution struct {
	Owner  Owner
	Issued bool
}

type sessionManager interface {
	Issue(ctx context.Context) (string, error)
	Touch(ctx context.Context, token string) error
}

// Resolver maps request credentials to a cart owner.
type Resolver struct {
	jwtCfg   config.JWTConfig
	sessions sessionManager
	logg     *logger.Logger
}

func NewResolver(jwtCfg config.JWTConfig, sessions sessionManager, logg *logger.Logger) (*Resolver, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Resolver{jwtCfg: jwtCfg, sessions: sessions, logg: logg}, nil
}

// Resolve prefers a valid bearer token. A bad bearer token degrades to the
// anonymous path. Only session store failures are returned.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (Resolution, error) {
	if bearer := strings.TrimSpace(creds.BearerToken); bearer != "" {
		claims, err := auth.ParseAccessToken(r.jwtCfg, bearer)
		if err == nil {
			return Resolution{Owner: UserOwner(claims.UserID)}, nil
		}
		r.logg.Warn(r.logg.WithField(ctx, "reason", err.Error()), "identity.bearer_rejected")
	}

	if token := strings.TrimSpace(creds.SessionToken); token != "" {
		err := r.sessions.Touch(ctx, token)
		switch {
		case err == nil:
			return Resolution{Owner: SessionOwner(token)}, nil
		case errors.Is(err, session.ErrUnknownSession):
			r.logg.Debug(ctx, "identity.session_unknown")
		default:
			return Resolution{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh session")
		}
	}

	token, err := r.sessions.Issue(ctx)
	if err != nil {
		return Resolution{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue session")
	}
	return Resolution{Owner: SessionOwner(token), Issued: true}, nil
}
