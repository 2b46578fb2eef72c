// Package session keeps the signed-in user of a client process in sync with
// the auth service.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"voicelog/internal/models"
)

// ErrAuth wraps every rejection from the auth provider.
var ErrAuth = errors.New("auth error")

// Subscription is a cancellable auth-state listener.
type Subscription interface {
	Unsubscribe()
}

// Provider is the auth collaborator.
type Provider interface {
	// GetSession returns the current session or nil when signed out.
	GetSession(ctx context.Context) (*models.AuthSession, error)
	SignUp(ctx context.Context, email, password, redirectTo string) (*models.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn func(event models.AuthEvent, session *models.AuthSession)) Subscription
}

// Facade exposes sign-up, sign-in and sign-out and mirrors the resulting
// user into State.
type Facade struct {
	provider Provider
	state    *State
	urls     SiteURLs

	mu  sync.Mutex
	sub Subscription
}

// NewFacade wires a provider to state. A nil state gets a fresh one.
func NewFacade(provider Provider, state *State, urls SiteURLs) *Facade {
	if state == nil {
		state = NewState()
	}
	return &Facade{provider: provider, state: state, urls: urls}
}

// State returns the observable user state.
func (f *Facade) State() *State {
	return f.state
}

// Init loads the current session and follows auth state changes until Close.
func (f *Facade) Init(ctx context.Context) error {
	f.state.setLoading(true)
	defer f.state.setLoading(false)

	sess, err := f.provider.GetSession(ctx)
	if err != nil {
		log.Printf("auth init: %v", err)
		return fmt.Errorf("%w: get session: %w", ErrAuth, err)
	}
	f.state.setUser(userOf(sess))

	sub := f.provider.OnAuthStateChange(func(_ models.AuthEvent, sess *models.AuthSession) {
		f.state.setUser(userOf(sess))
	})
	f.mu.Lock()
	prev := f.sub
	f.sub = sub
	f.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}
	return nil
}

// SignUp registers a new account whose confirmation link returns to CallbackURL.
func (f *Facade) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	user, err := f.provider.SignUp(ctx, email, password, f.urls.CallbackURL())
	if err != nil {
		log.Printf("auth sign up: %v", err)
		return nil, fmt.Errorf("%w: sign up: %w", ErrAuth, err)
	}
	return user, nil
}

// SignIn authenticates with email and password.
func (f *Facade) SignIn(ctx context.Context, email, password string) (*models.AuthSession, error) {
	sess, err := f.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		log.Printf("auth sign in: %v", err)
		return nil, fmt.Errorf("%w: sign in: %w", ErrAuth, err)
	}
	return sess, nil
}

// SignOut ends the session and clears the current user.
func (f *Facade) SignOut(ctx context.Context) error {
	if err := f.provider.SignOut(ctx); err != nil {
		log.Printf("auth sign out: %v", err)
		return fmt.Errorf("%w: sign out: %w", ErrAuth, err)
	}
	f.state.setUser(nil)
	return nil
}

// Close stops following auth state changes.
func (f *Facade) Close() {
	f.mu.Lock()
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func userOf(sess *models.AuthSession) *models.User {
	if sess == nil {
		return nil
	}
	return sess.User
}
