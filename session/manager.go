package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

// Manager owns the signed-in user and the token pair. It supplies bearer
// tokens to the gateway and applies the refresh-or-logout policy when the
// backend rejects one.
type Manager struct {
	logger  types.Logger
	gateway types.AuthGateway
	store   TokenStore
	now     func() time.Time
	tokens  Tokens
	user    *types.User
	hooks   []func()
	refresh singleflight.Group
	mu      sync.RWMutex
	hooksMu sync.Mutex
}

var (
	_ types.Credentials  = (*Manager)(nil)
	_ types.SessionState = (*Manager)(nil)
)

func NewManager(logger types.Logger, gateway types.AuthGateway, store TokenStore) *Manager {
	if store == nil {
		store = NewMemoryTokenStore()
	}

	return &Manager{
		logger:  logger,
		gateway: gateway,
		store:   store,
		now:     time.Now,
	}
}

// Restore loads stored tokens and signs the user back in when the access
// token is still valid. Expired or unreadable tokens are discarded.
func (m *Manager) Restore() error {
	tokens, err := m.store.Load()
	if err != nil {
		return err
	}

	if tokens.AccessToken == "" {
		return nil
	}

	user, err := UserFromToken(tokens.AccessToken, m.now())
	if err != nil {
		m.logger.Info("Discarding stored session", zap.Error(err))
		return m.store.Clear()
	}

	m.mu.Lock()
	m.tokens = tokens
	m.user = user
	m.mu.Unlock()

	m.logger.Debug("Session restored", zap.String("user_id", user.ID))
	return nil
}

func (m *Manager) Login(ctx context.Context, req *types.LoginRequest) (*types.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	resp, err := m.gateway.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	tokens := Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if err := m.store.Save(tokens); err != nil {
		m.logger.Warn("Failed to persist session", zap.Error(err))
	}

	user := resp.User
	m.mu.Lock()
	m.tokens = tokens
	m.user = &user
	m.mu.Unlock()

	m.logger.Info("User logged in", zap.String("user_id", user.ID))
	return &user, nil
}

func (m *Manager) Register(ctx context.Context, req *types.RegisterRequest) (*types.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	resp, err := m.gateway.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	return &resp.User, nil
}

// HandleGoogleCallback signs in with the token handed back by the OAuth
// redirect. The callback carries no refresh token.
func (m *Manager) HandleGoogleCallback(token string) (*types.User, error) {
	user, err := UserFromToken(token, m.now())
	if err != nil {
		return nil, err
	}

	tokens := Tokens{AccessToken: token}
	if err := m.store.Save(tokens); err != nil {
		m.logger.Warn("Failed to persist session", zap.Error(err))
	}

	m.mu.Lock()
	m.tokens = tokens
	m.user = user
	m.mu.Unlock()

	return user, nil
}

func (m *Manager) GoogleLoginURL() string {
	return m.gateway.GoogleLoginURL()
}

func (m *Manager) Logout() {
	m.invalidate("logout")
}

func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokens.AccessToken
}

// RefreshAccessToken exchanges the refresh token for a new access token.
// Concurrent callers share one exchange. Any failure ends the session.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	result, err, _ := m.refresh.Do("refresh", func() (interface{}, error) {
		m.mu.RLock()
		refreshToken := m.tokens.RefreshToken
		m.mu.RUnlock()

		if refreshToken == "" {
			m.invalidate("no refresh token")
			return "", fmt.Errorf("%w: %w", types.ErrSessionExpired, types.ErrNoRefreshToken)
		}

		resp, err := m.gateway.RefreshToken(ctx, refreshToken)
		if err != nil {
			m.invalidate("refresh failed")
			return "", fmt.Errorf("%w: %w", types.ErrSessionExpired, err)
		}

		m.mu.Lock()
		m.tokens.AccessToken = resp.Token
		tokens := m.tokens
		if user, err := UserFromToken(resp.Token, m.now()); err == nil {
			m.user = user
		}
		m.mu.Unlock()

		if err := m.store.Save(tokens); err != nil {
			m.logger.Warn("Failed to persist refreshed session", zap.Error(err))
		}

		m.logger.Debug("Access token refreshed")
		return resp.Token, nil
	})
	if err != nil {
		return "", err
	}

	return result.(string), nil
}

// RefreshOrLogout runs the 401 policy without a pending request.
func (m *Manager) RefreshOrLogout(ctx context.Context) error {
	_, err := m.RefreshAccessToken(ctx)
	return err
}

func (m *Manager) User() (*types.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user == nil {
		return nil, false
	}
	user := *m.user
	return &user, true
}

func (m *Manager) SetUser(user types.User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.user = &user
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.user != nil
}

// OnInvalidate registers fn to run whenever the session ends.
func (m *Manager) OnInvalidate(fn func()) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()

	m.hooks = append(m.hooks, fn)
}

func (m *Manager) invalidate(reason string) {
	m.mu.Lock()
	m.tokens = Tokens{}
	m.user = nil
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Warn("Failed to clear stored session", zap.Error(err))
	}

	m.hooksMu.Lock()
	hooks := make([]func(), len(m.hooks))
	copy(hooks, m.hooks)
	m.hooksMu.Unlock()

	for _, hook := range hooks {
		hook()
	}

	m.logger.Info("Session ended", zap.String("reason", reason))
}
