package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nordbooking/nordbooking/shared/models"
	"github.com/nordbooking/nordbooking/shared/utils"
)

// Authenticator turns an access token into a principal. The token must verify, its session
// must still exist, and the account is reloaded so role or status changes apply at once.
type Authenticator struct {
	tokens   *TokenIssuer
	sessions *utils.SessionStore
	users    UserStore
}

func NewAuthenticator(tokens *TokenIssuer, sessions *utils.SessionStore, users UserStore) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions, users: users}
}

func (a *Authenticator) Principal(ctx context.Context, token string) (*models.Principal, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	session, err := a.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, utils.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: session revoked or expired", ErrUnauthenticated)
		}
		return nil, err
	}
	if session.UserProfile.UserID != userID {
		return nil, fmt.Errorf("%w: session does not match token", ErrUnauthenticated)
	}

	user, err := a.users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: account removed", ErrUnauthenticated)
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("%w: account suspended", ErrUnauthenticated)
	}

	return models.PrincipalFromUser(user, session.SessionID), nil
}

// TTL is the lifetime of new sessions
func (a *Authenticator) TTL() time.Duration {
	return a.tokens.TTL()
}

// StartSession issues a token for the account and records its session
func (a *Authenticator) StartSession(ctx context.Context, user *models.User) (string, *models.TokenSession, error) {
	token, _, err := a.tokens.Issue(user)
	if err != nil {
		return "", nil, err
	}

	profile := models.UserProfile{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     string(user.Role),
		TenantID: user.TenantID(),
	}
	session, err := a.sessions.Create(ctx, token, profile, a.tokens.TTL())
	if err != nil {
		return "", nil, err
	}
	return token, session, nil
}

// EndSession revokes the token's session
func (a *Authenticator) EndSession(ctx context.Context, token string) error {
	return a.sessions.Revoke(ctx, token)
}
