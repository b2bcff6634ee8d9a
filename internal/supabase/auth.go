package supabase

import (
	"context"
	"fmt"

	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"poster-generator-backend/internal/models"
)

// AuthProvider adapts Supabase Auth (GoTrue) to the session gate.
type AuthProvider struct {
	auth gotrue.Client
}

func NewAuthProvider(client *Client) *AuthProvider {
	return &AuthProvider{auth: client.Supabase.Auth}
}

// SignUp creates an unconfirmed account. No session is returned until the
// email address is verified.
func (a *AuthProvider) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := a.auth.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}
	return &models.User{ID: resp.User.ID.String(), Email: resp.User.Email}, nil
}

func (a *AuthProvider) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := a.auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    resp.ExpiresAt,
		User: models.User{
			ID:    resp.User.ID.String(),
			Email: resp.User.Email,
		},
	}, nil
}

// GetUser resolves the user behind an access token.
func (a *AuthProvider) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := a.auth.WithToken(accessToken).GetUser()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &models.User{ID: resp.ID.String(), Email: resp.Email}, nil
}

func (a *AuthProvider) SignOut(ctx context.Context, accessToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.auth.WithToken(accessToken).Logout(); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}
