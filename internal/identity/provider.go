package identity

import (
	"context"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// TokenVerifier checks a Firebase ID token. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// ProfileEnsurer creates the profile document at first sign-in
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, p models.UserProfile) (*models.UserProfile, error)
}

// Provider signs users in with Google (through Firebase) and manages
// session tokens.
type Provider struct {
	verifier TokenVerifier
	profiles ProfileEnsurer
	tokens   *TokenIssuer
	log      logrus.FieldLogger
}

// NewProvider creates a new Provider
func NewProvider(verifier TokenVerifier, profiles ProfileEnsurer, tokens *TokenIssuer, log logrus.FieldLogger) *Provider {
	return &Provider{verifier: verifier, profiles: profiles, tokens: tokens, log: log}
}

// SignIn exchanges a Firebase ID token for a session token. An empty token
// means the user closed the Google popup.
func (p *Provider) SignIn(ctx context.Context, idToken string) (*Identity, string, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, "", models.ErrAuthCancelled
	}

	token, err := p.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, "", models.Wrap(models.ErrUnauthenticated, err)
	}

	id := &Identity{UID: token.UID}
	if name, ok := token.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		id.PhotoURL = picture
	}

	profile, err := p.profiles.EnsureProfile(ctx, models.UserProfile{
		UID:         id.UID,
		DisplayName: id.DisplayName,
		PhotoURL:    id.PhotoURL,
	})
	if err != nil {
		return nil, "", err
	}
	if id.DisplayName == "" {
		id.DisplayName = profile.DisplayName
	}
	if id.PhotoURL == "" {
		id.PhotoURL = profile.PhotoURL
	}

	session, err := p.tokens.Issue(id)
	if err != nil {
		return nil, "", err
	}
	p.log.WithField("uid", id.UID).Info("user signed in")
	return id, session, nil
}

// Authenticate resolves a session token to an Identity.
func (p *Provider) Authenticate(ctx context.Context, session string) (*Identity, error) {
	claims, err := p.tokens.Parse(session)
	if err != nil {
		return nil, err
	}
	revoked, err := p.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		p.log.WithError(err).Warn("revocation lookup failed")
	}
	if revoked {
		return nil, models.Wrap(models.ErrUnauthenticated, nil)
	}
	return FromClaims(claims), nil
}

// SignOut revokes the session token.
func (p *Provider) SignOut(ctx context.Context, session string) error {
	claims, err := p.tokens.Parse(session)
	if err != nil {
		return err
	}
	if err := p.tokens.Revoke(ctx, claims); err != nil {
		return err
	}
	p.log.WithField("uid", claims.UID).Info("user signed out")
	return nil
}
