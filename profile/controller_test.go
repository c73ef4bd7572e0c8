package profile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/cache"
	"github.com/saiset-co/sai-feed/feed"
	"github.com/saiset-co/sai-feed/logger"
	"github.com/saiset-co/sai-feed/mutation"
	"github.com/saiset-co/sai-feed/notify"
	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

type fakeGateway struct {
	mu          sync.Mutex
	profile     *types.ProfileResponse
	profileErr  error
	getCalls    int
	updated     *types.Post
	updateErr   error
	deleteErr   error
	user        *types.User
	userErr     error
	duringCall  func()
	feedCalls   int
	feedPages   map[int]*types.PostsResponse
	uploadNames []string
}

func (f *fakeGateway) GetProfile(ctx context.Context) (*types.ProfileResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls++
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	return f.profile, nil
}

func (f *fakeGateway) UpdateProfile(ctx context.Context, req *types.ProfileUpdateRequest) (*types.User, error) {
	f.runDuringCall()
	return f.user, f.userErr
}

func (f *fakeGateway) UpdateAvatar(ctx context.Context, file *types.FileUpload) (*types.User, error) {
	f.mu.Lock()
	f.uploadNames = append(f.uploadNames, file.Name)
	f.mu.Unlock()

	f.runDuringCall()
	return f.user, f.userErr
}

func (f *fakeGateway) UpdatePost(ctx context.Context, postID string, req *types.UpdatePostRequest) (*types.Post, error) {
	f.runDuringCall()
	return f.updated, f.updateErr
}

func (f *fakeGateway) DeletePost(ctx context.Context, postID string) (*types.MessageResponse, error) {
	f.runDuringCall()
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &types.MessageResponse{Message: "deleted"}, nil
}

func (f *fakeGateway) GetPosts(ctx context.Context, page, limit int) (*types.PostsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.feedCalls++
	return f.feedPages[page], nil
}

func (f *fakeGateway) CreatePost(ctx context.Context, req *types.CreatePostRequest) (*types.Post, error) {
	return nil, types.ErrNotSupported
}

func (f *fakeGateway) LikePost(ctx context.Context, postID string) error {
	return types.ErrNotSupported
}

func (f *fakeGateway) UnlikePost(ctx context.Context, postID string) error {
	return types.ErrNotSupported
}

func (f *fakeGateway) runDuringCall() {
	if f.duringCall != nil {
		f.duringCall()
	}
}

type fakeSession struct {
	user *types.User
	sets int
}

func (s *fakeSession) User() (*types.User, bool) {
	if s.user == nil {
		return nil, false
	}
	user := *s.user
	return &user, true
}

func (s *fakeSession) SetUser(user types.User) {
	s.sets++
	s.user = &user
}

type fixture struct {
	controller *Controller
	feed       *feed.Controller
	gateway    *fakeGateway
	session    *fakeSession
	recorder   *notify.Recorder
	previews   *PreviewStore
	fs         afero.Fs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewZapWrapper(zap.NewNop())
	store := cache.NewStore(log)
	recorder := notify.NewRecorder(nil)
	runner := mutation.NewRunner(store, recorder, log)
	fs := afero.NewMemMapFs()
	previews := NewPreviewStore(fs, "/previews", log)

	user := types.User{ID: "u1", Name: "Budi", Email: "budi@ui.ac.id", Fakultas: "Fakultas Teknik", Avatar: "https://cdn/old.png"}
	gw := &fakeGateway{
		profile: &types.ProfileResponse{
			User: user,
			Posts: []types.Post{
				{ID: "x", Title: "Old title", Kategori: types.KategoriTugas},
				{ID: "y", Title: "Other"},
			},
		},
		feedPages: map[int]*types.PostsResponse{
			1: {Data: []types.Post{{ID: "x", Title: "Old title"}}, Meta: types.PostMeta{Page: 1}},
		},
	}
	session := &fakeSession{user: &user}

	return &fixture{
		controller: NewController(store, gw, session, runner, previews, log, nil),
		feed:       feed.NewController(store, gw, runner, log, nil),
		gateway:    gw,
		session:    session,
		recorder:   recorder,
		previews:   previews,
		fs:         fs,
	}
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	entry := f.controller.Load(context.Background())
	require.Equal(t, cache.StatusSuccess, entry.Status)
}

func TestController_LoadServesFreshEntry(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.load(t)

	assert.Equal(t, 1, f.gateway.getCalls)

	user, ok := f.controller.User()
	require.True(t, ok)
	assert.Equal(t, "Budi", user.Name)
}

func TestController_LoadErrorIsStored(t *testing.T) {
	f := newFixture(t)
	f.gateway.profileErr = errors.New("backend down")

	entry := f.controller.Load(context.Background())
	assert.Equal(t, cache.StatusError, entry.Status)
	_, ok := f.controller.Bundle()
	assert.False(t, ok)
}

func TestController_UpdatePostInvalidatesFeed(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	f.feed.Load(context.Background())
	require.Equal(t, 1, f.gateway.feedCalls)

	title := "New title"
	f.gateway.updated = &types.Post{ID: "x", Title: title}
	f.gateway.feedPages[1] = &types.PostsResponse{Data: []types.Post{{ID: "x", Title: title}}, Meta: types.PostMeta{Page: 1}}

	_, err := f.controller.UpdatePost(context.Background(), "x", &types.UpdatePostRequest{Title: &title})
	require.NoError(t, err)

	bundle, ok := f.controller.Bundle()
	require.True(t, ok)
	assert.Equal(t, "New title", bundle.Posts[0].Title)
	assert.Equal(t, types.KategoriTugas, bundle.Posts[0].Kategori)
	assert.Equal(t, "Other", bundle.Posts[1].Title)

	entry, ok := f.controller.store.Get(feed.PostsKey)
	require.True(t, ok)
	assert.True(t, entry.Invalidated)

	f.feed.Load(context.Background())
	assert.Equal(t, 2, f.gateway.feedCalls)
	assert.Equal(t, "New title", f.feed.Posts()[0].Title)

	last, _ := f.recorder.Last()
	assert.Equal(t, notify.Message{Level: notify.LevelSuccess, Text: "Post updated successfully!"}, last)
}

func TestController_UpdatePostFailureRestoresProfile(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	before, _ := f.controller.Bundle()

	title := "New title"
	var during types.ProfileBundle
	f.gateway.duringCall = func() { during, _ = f.controller.Bundle() }
	f.gateway.updateErr = errors.New("timeout")

	_, err := f.controller.UpdatePost(context.Background(), "x", &types.UpdatePostRequest{Title: &title})
	require.Error(t, err)

	assert.Equal(t, "New title", during.Posts[0].Title)
	after, _ := f.controller.Bundle()
	assert.Equal(t, before, after)

	last, _ := f.recorder.Last()
	assert.Equal(t, notify.Message{Level: notify.LevelError, Text: "Failed to update post"}, last)
}

func TestController_DeletePost(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	var during types.ProfileBundle
	f.gateway.duringCall = func() { during, _ = f.controller.Bundle() }

	require.NoError(t, f.controller.DeletePost(context.Background(), "x"))
	require.Len(t, during.Posts, 1)
	assert.Equal(t, "y", during.Posts[0].ID)

	bundle, _ := f.controller.Bundle()
	require.Len(t, bundle.Posts, 1)

	entry, _ := f.controller.store.Get(ProfileKey)
	assert.True(t, entry.Invalidated)
}

func TestController_DeletePostFailureRestoresProfile(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	before, _ := f.controller.Bundle()
	f.gateway.deleteErr = errors.New("forbidden")

	require.Error(t, f.controller.DeletePost(context.Background(), "x"))
	after, _ := f.controller.Bundle()
	assert.Equal(t, before, after)
}

func TestController_UpdateProfileKeepsSessionInSync(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	name := "Budi Santoso"
	var optimistic types.User
	f.gateway.duringCall = func() { optimistic, _ = f.controller.User() }
	f.gateway.user = &types.User{ID: "u1", Name: "Budi Santoso", Email: "budi@ui.ac.id", Fakultas: "Fakultas Teknik", Avatar: "https://cdn/old.png", Role: "student"}

	_, err := f.controller.UpdateProfile(context.Background(), &types.ProfileUpdateRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Budi Santoso", optimistic.Name)
	assert.Empty(t, optimistic.Role)

	cached, ok := f.controller.User()
	require.True(t, ok)
	sessionUser, ok := f.session.User()
	require.True(t, ok)

	cachedJSON, err := utils.Marshal(cached)
	require.NoError(t, err)
	sessionJSON, err := utils.Marshal(*sessionUser)
	require.NoError(t, err)
	assert.Equal(t, cachedJSON, sessionJSON)
	assert.Equal(t, "student", cached.Role)
	assert.False(t, f.controller.IsUpdating())

	last, _ := f.recorder.Last()
	assert.Equal(t, "Profile updated successfully!", last.Text)
}

func TestController_UpdateProfileFailureLeavesSession(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	before, _ := f.controller.User()

	name := "Someone Else"
	f.gateway.userErr = errors.New("boom")

	_, err := f.controller.UpdateProfile(context.Background(), &types.ProfileUpdateRequest{Name: &name})
	require.Error(t, err)

	after, _ := f.controller.User()
	assert.Equal(t, before, after)
	assert.Zero(t, f.session.sets)

	last, _ := f.recorder.Last()
	assert.Equal(t, notify.Message{Level: notify.LevelError, Text: "Failed to update profile"}, last)
}

func TestController_UpdateProfileRejectsInvalidFakultas(t *testing.T) {
	f := newFixture(t)
	fakultas := "Fakultas Sihir"

	_, err := f.controller.UpdateProfile(context.Background(), &types.ProfileUpdateRequest{Fakultas: &fakultas})
	assert.ErrorIs(t, err, types.ErrInvalidParameter)
}

func TestController_UpdateAvatarDiscardsPreview(t *testing.T) {
	f := newFixture(t)
	f.load(t)

	var during types.User
	var uploading bool
	var previewFiles []string
	f.gateway.duringCall = func() {
		during, _ = f.controller.User()
		uploading = f.controller.IsAvatarUploading()
		previewFiles, _ = afero.Glob(f.fs, "/previews/*")
	}
	f.gateway.user = &types.User{ID: "u1", Name: "Budi", Email: "budi@ui.ac.id", Fakultas: "Fakultas Teknik", Avatar: "https://cdn/new.png"}

	file := &types.FileUpload{Name: "Me.PNG", ContentType: "image/png", Data: []byte{1, 2, 3}}
	user, err := f.controller.UpdateAvatar(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/new.png", user.Avatar)

	assert.True(t, strings.HasPrefix(during.Avatar, "file:///previews/"))
	assert.True(t, strings.HasSuffix(during.Avatar, ".png"))
	assert.True(t, uploading)
	assert.Len(t, previewFiles, 1)

	cached, _ := f.controller.User()
	assert.Equal(t, "https://cdn/new.png", cached.Avatar)
	assert.Equal(t, "https://cdn/new.png", f.session.user.Avatar)

	assert.Empty(t, f.previews.Active())
	remaining, _ := afero.Glob(f.fs, "/previews/*")
	assert.Empty(t, remaining)
	assert.False(t, f.controller.IsAvatarUploading())
}

func TestController_UpdateAvatarFailureRestoresAndDiscards(t *testing.T) {
	f := newFixture(t)
	f.load(t)
	before, _ := f.controller.User()
	f.gateway.userErr = errors.New("too large")

	_, err := f.controller.UpdateAvatar(context.Background(), &types.FileUpload{Name: "me.jpg", Data: []byte{9}})
	require.Error(t, err)

	after, _ := f.controller.User()
	assert.Equal(t, before, after)
	assert.Empty(t, f.previews.Active())
	remaining, _ := afero.Glob(f.fs, "/previews/*")
	assert.Empty(t, remaining)

	last, _ := f.recorder.Last()
	assert.Equal(t, notify.Message{Level: notify.LevelError, Text: "Failed to update avatar"}, last)
}

func TestController_UpdateAvatarRejectsEmptyFile(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.UpdateAvatar(context.Background(), &types.FileUpload{Name: "empty.png"})
	assert.ErrorIs(t, err, types.ErrFileIsEmpty)
	assert.Empty(t, f.gateway.uploadNames)
}
