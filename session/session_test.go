package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/logger"
	"github.com/saiset-co/sai-feed/types"
)

type fakeAuthGateway struct {
	loginResp   *types.LoginResponse
	loginErr    error
	refreshResp *types.RefreshTokenResponse
	refreshErr  error
	refreshes   int
}

func (f *fakeAuthGateway) Login(ctx context.Context, req *types.LoginRequest) (*types.LoginResponse, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeAuthGateway) Register(ctx context.Context, req *types.RegisterRequest) (*types.RegisterResponse, error) {
	return &types.RegisterResponse{User: types.User{ID: "new", Name: req.Name, Fakultas: req.Fakultas}}, nil
}

func (f *fakeAuthGateway) RefreshToken(ctx context.Context, refreshToken string) (*types.RefreshTokenResponse, error) {
	f.refreshes++
	return f.refreshResp, f.refreshErr
}

func (f *fakeAuthGateway) GoogleLoginURL() string {
	return "http://backend/auth/google"
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func userClaims(exp time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":      "u1",
		"name":     "Budi",
		"email":    "budi@example.com",
		"fakultas": "Fakultas Teknik",
		"role":     "user",
		"exp":      exp.Unix(),
	}
}

func newTestManager(gateway types.AuthGateway, store TokenStore) *Manager {
	return NewManager(logger.NewZapWrapper(zap.NewNop()), gateway, store)
}

func TestUserFromToken(t *testing.T) {
	now := time.Now()
	token := signToken(t, userClaims(now.Add(time.Hour)))

	user, err := UserFromToken(token, now)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Budi", user.Name)
	assert.Equal(t, "Fakultas Teknik", user.Fakultas)

	_, err = UserFromToken(token, now.Add(2*time.Hour))
	assert.ErrorIs(t, err, types.ErrSessionExpired)

	_, err = UserFromToken("not-a-jwt", now)
	assert.ErrorIs(t, err, types.ErrTokenInvalid)
}

func TestManager_LoginStoresTokensAndUser(t *testing.T) {
	gateway := &fakeAuthGateway{loginResp: &types.LoginResponse{
		User:         types.User{ID: "u1", Name: "Budi"},
		AccessToken:  "access",
		RefreshToken: "refresh",
	}}
	store := NewMemoryTokenStore()
	manager := newTestManager(gateway, store)

	user, err := manager.Login(context.Background(), &types.LoginRequest{Email: "budi@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "Budi", user.Name)
	assert.Equal(t, "access", manager.AccessToken())
	assert.True(t, manager.IsAuthenticated())

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Tokens{AccessToken: "access", RefreshToken: "refresh"}, stored)
}

func TestManager_LoginValidatesRequest(t *testing.T) {
	manager := newTestManager(&fakeAuthGateway{}, nil)

	_, err := manager.Login(context.Background(), &types.LoginRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, types.ErrInvalidParameter)
}

func TestManager_RefreshSuccessUpdatesToken(t *testing.T) {
	fresh := signToken(t, userClaims(time.Now().Add(time.Hour)))
	gateway := &fakeAuthGateway{refreshResp: &types.RefreshTokenResponse{Token: fresh}}
	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(Tokens{AccessToken: signToken(t, userClaims(time.Now().Add(time.Minute))), RefreshToken: "refresh"}))

	manager := newTestManager(gateway, store)
	require.NoError(t, manager.Restore())

	token, err := manager.RefreshAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fresh, token)
	assert.Equal(t, fresh, manager.AccessToken())

	stored, _ := store.Load()
	assert.Equal(t, fresh, stored.AccessToken)
	assert.Equal(t, "refresh", stored.RefreshToken)
}

func TestManager_RefreshFailureLogsOutAndRunsHooks(t *testing.T) {
	gateway := &fakeAuthGateway{refreshErr: errors.New("refresh rejected")}
	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(Tokens{AccessToken: signToken(t, userClaims(time.Now().Add(time.Minute))), RefreshToken: "refresh"}))

	manager := newTestManager(gateway, store)
	require.NoError(t, manager.Restore())

	var cleared int
	manager.OnInvalidate(func() { cleared++ })

	err := manager.RefreshOrLogout(context.Background())
	assert.ErrorIs(t, err, types.ErrSessionExpired)
	assert.Equal(t, 1, cleared)
	assert.False(t, manager.IsAuthenticated())
	assert.Empty(t, manager.AccessToken())

	stored, _ := store.Load()
	assert.True(t, stored.IsEmpty())
}

func TestManager_RefreshWithoutRefreshToken(t *testing.T) {
	gateway := &fakeAuthGateway{}
	manager := newTestManager(gateway, nil)

	_, err := manager.HandleGoogleCallback(signToken(t, userClaims(time.Now().Add(time.Hour))))
	require.NoError(t, err)

	_, err = manager.RefreshAccessToken(context.Background())
	assert.ErrorIs(t, err, types.ErrSessionExpired)
	assert.ErrorIs(t, err, types.ErrNoRefreshToken)
	assert.Zero(t, gateway.refreshes)
	assert.False(t, manager.IsAuthenticated())
}

func TestManager_RestoreDiscardsExpiredToken(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFileTokenStore(fs, "/state/session.json")
	require.NoError(t, store.Save(Tokens{AccessToken: signToken(t, userClaims(time.Now().Add(-time.Minute))), RefreshToken: "refresh"}))

	manager := newTestManager(&fakeAuthGateway{}, store)
	require.NoError(t, manager.Restore())

	assert.False(t, manager.IsAuthenticated())
	exists, err := afero.Exists(fs, "/state/session.json")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestManager_SetUserReturnsCopy(t *testing.T) {
	manager := newTestManager(&fakeAuthGateway{}, nil)
	manager.SetUser(types.User{ID: "u1", Name: "Budi"})

	user, ok := manager.User()
	require.True(t, ok)
	user.Name = "Changed"

	again, _ := manager.User()
	assert.Equal(t, "Budi", again.Name)
}

func TestFileTokenStore_LoadMissingFile(t *testing.T) {
	store := NewFileTokenStore(afero.NewMemMapFs(), "/none.json")
	tokens, err := store.Load()
	require.NoError(t, err)
	assert.True(t, tokens.IsEmpty())
	require.NoError(t, store.Clear())
}

func TestFileTokenStore_Sealed(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFileTokenStore(fs, "/state/session.json", WithSecret("correct horse"))
	require.NoError(t, store.Save(Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"}))

	raw, err := afero.ReadFile(fs, "/state/session.json")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "access-1")

	tokens, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)

	_, err = NewFileTokenStore(fs, "/state/session.json", WithSecret("wrong")).Load()
	assert.ErrorIs(t, err, types.ErrSessionUnreadable)

	_, err = NewFileTokenStore(fs, "/state/session.json").Load()
	assert.Error(t, err)
}

func TestNewTokenStore(t *testing.T) {
	store, err := NewTokenStore(&types.SessionConfig{Store: "file", Path: "/s.json"}, afero.NewMemMapFs())
	require.NoError(t, err)
	assert.IsType(t, &FileTokenStore{}, store)

	_, err = NewTokenStore(&types.SessionConfig{Store: "keychain"}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidParameter)
}
