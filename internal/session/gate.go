package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"poster-generator-backend/internal/models"
)

// Provider is the external auth service.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	GetUser(ctx context.Context, accessToken string) (*models.User, error)
	SignOut(ctx context.Context, accessToken string) error
}

var (
	ErrCredentialsRequired = errors.New("Email and password are required.")
	ErrInvalidCredentials  = errors.New("Invalid email or password. If you just registered, please check your email for a verification link.")
	ErrNoSession           = errors.New("no active session")
)

const verificationMessage = "We've sent a verification link to your email address. Please check your inbox to complete the process."

type EventType string

const (
	SignedIn  EventType = "SIGNED_IN"
	SignedOut EventType = "SIGNED_OUT"
)

// Event is an auth-state change.
type Event struct {
	Type EventType
	User models.User
}

type Listener func(Event)

// Registration is the outcome of a successful sign-up: the account exists but
// stays unconfirmed until the email link is followed.
type Registration struct {
	User                models.User
	PendingVerification bool
	Message             string
}

// Gate resolves identities and fans auth-state changes out to listeners.
type Gate struct {
	provider Provider
	log      zerolog.Logger

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

func NewGate(provider Provider, log zerolog.Logger) *Gate {
	return &Gate{
		provider:  provider,
		log:       log.With().Str("component", "session").Logger(),
		listeners: make(map[uint64]Listener),
	}
}

// Subscribe registers l for every future auth-state change. The returned
// func unsubscribes and is safe to call more than once.
func (g *Gate) Subscribe(l Listener) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = l
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.listeners, id)
			g.mu.Unlock()
		})
	}
}

func (g *Gate) notify(evt Event) {
	g.mu.RLock()
	listeners := make([]Listener, 0, len(g.listeners))
	for _, l := range g.listeners {
		listeners = append(listeners, l)
	}
	g.mu.RUnlock()

	for _, l := range listeners {
		l(evt)
	}
}

// Resolve returns the user behind an access token.
func (g *Gate) Resolve(ctx context.Context, accessToken string) (*models.User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrNoSession
	}
	user, err := g.provider.GetUser(ctx, accessToken)
	if err != nil {
		g.log.Debug().Err(err).Msg("session lookup failed")
		return nil, ErrNoSession
	}
	return user, nil
}

func (g *Gate) Login(ctx context.Context, email, password string) (*models.Session, error) {
	if email == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	sess, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		g.log.Warn().Err(err).Str("email", email).Msg("auth error")
		if strings.Contains(err.Error(), "Invalid login credentials") {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if sess == nil || sess.User.ID == "" {
		return nil, ErrInvalidCredentials
	}

	g.notify(Event{Type: SignedIn, User: sess.User})
	return sess, nil
}

// Register signs up a new account. Success means "check your email", not a session.
func (g *Gate) Register(ctx context.Context, email, password string) (*Registration, error) {
	if email == "" || password == "" {
		return nil, ErrCredentialsRequired
	}

	user, err := g.provider.SignUp(ctx, email, password)
	if err != nil {
		g.log.Warn().Err(err).Str("email", email).Msg("registration failed")
		return nil, err
	}

	reg := &Registration{PendingVerification: true, Message: verificationMessage}
	if user != nil {
		reg.User = *user
	}
	if reg.User.Email == "" {
		reg.User.Email = email
	}
	return reg, nil
}

// Logout ends the session. Listeners see SignedOut even when the provider
// call fails, since the caller's credentials are discarded either way.
func (g *Gate) Logout(ctx context.Context, accessToken string, user models.User) error {
	err := g.provider.SignOut(ctx, accessToken)
	if err != nil {
		g.log.Warn().Err(err).Str("user_id", user.ID).Msg("sign out failed")
	}
	g.notify(Event{Type: SignedOut, User: user})
	return err
}
