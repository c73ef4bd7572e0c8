package profile

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/cache"
	"github.com/saiset-co/sai-feed/feed"
	"github.com/saiset-co/sai-feed/mutation"
	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

const DefaultStaleTime = 5 * time.Minute

var ProfileKey = cache.NewKey("profile")

const (
	MutationUpdatePost    = "update-post"
	MutationDeletePost    = "delete-post"
	MutationUpdateProfile = "update-profile"
	MutationUpdateAvatar  = "update-avatar"
)

type Gateway interface {
	types.ProfileGateway
	UpdatePost(ctx context.Context, postID string, req *types.UpdatePostRequest) (*types.Post, error)
	DeletePost(ctx context.Context, postID string) (*types.MessageResponse, error)
}

// Controller serves the signed-in user's profile and their posts from the
// cache entry under ProfileKey.
type Controller struct {
	store     *cache.Store
	gateway   Gateway
	session   types.SessionState
	runner    *mutation.Runner
	previews  *PreviewStore
	logger    types.Logger
	staleTime time.Duration
	hold      *cache.Hold
}

func NewController(store *cache.Store, gateway Gateway, session types.SessionState, runner *mutation.Runner, previews *PreviewStore, logger types.Logger, config *types.ProfileConfig) *Controller {
	staleTime := DefaultStaleTime
	if config != nil && config.StaleTime > 0 {
		staleTime = config.StaleTime
	}

	return &Controller{
		store:     store,
		gateway:   gateway,
		session:   session,
		runner:    runner,
		previews:  previews,
		logger:    logger,
		staleTime: staleTime,
		hold:      cache.NewHold(store, ProfileKey),
	}
}

// Load returns the cached profile while it is fresh and fetches it otherwise.
func (c *Controller) Load(ctx context.Context) cache.Entry {
	c.hold.Acquire()
	return c.store.Query(ctx, ProfileKey, c.load, c.staleTime)
}

func (c *Controller) Refetch(ctx context.Context) cache.Entry {
	c.hold.Acquire()
	return c.store.Fetch(ctx, ProfileKey, c.load)
}

// Release stops protecting the profile from eviction until the next Load.
func (c *Controller) Release() {
	c.hold.Release()
}

func (c *Controller) Bundle() (types.ProfileBundle, bool) {
	entry, ok := c.store.Get(ProfileKey)
	if !ok {
		return types.ProfileBundle{}, false
	}
	return cache.Data[types.ProfileBundle](entry)
}

func (c *Controller) User() (types.User, bool) {
	bundle, ok := c.Bundle()
	return bundle.User, ok
}

func (c *Controller) Subscribe(listener cache.Listener) func() {
	return c.store.Subscribe(ProfileKey, listener)
}

func (c *Controller) IsUpdating() bool {
	return c.runner.IsPending(MutationUpdateProfile)
}

func (c *Controller) IsAvatarUploading() bool {
	return c.runner.IsPending(MutationUpdateAvatar)
}

type postUpdate struct {
	id  string
	req *types.UpdatePostRequest
}

// UpdatePost patches the post in the profile right away. On success both the
// profile and the feed are invalidated, since the feed may hold its own copy.
func (c *Controller) UpdatePost(ctx context.Context, postID string, req *types.UpdatePostRequest) (*types.Post, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	return mutation.Run(ctx, c.runner, mutation.Mutation[postUpdate, *types.Post]{
		Name: MutationUpdatePost,
		Keys: []cache.Key{ProfileKey},
		Optimistic: func(tx *cache.Transaction, vars postUpdate) error {
			_, err := tx.Update(ProfileKey, updateBundle(func(bundle types.ProfileBundle) types.ProfileBundle {
				posts := make([]types.Post, len(bundle.Posts))
				for i, post := range bundle.Posts {
					if post.ID == vars.id {
						post = vars.req.Apply(post)
					}
					posts[i] = post
				}
				bundle.Posts = posts
				return bundle
			}))
			return err
		},
		Call: func(ctx context.Context, vars postUpdate) (*types.Post, error) {
			return c.gateway.UpdatePost(ctx, vars.id, vars.req)
		},
		Invalidate:     []cache.Key{ProfileKey, feed.PostsKey},
		SuccessMessage: "Post updated successfully!",
		ErrorMessage:   "Failed to update post",
	}, postUpdate{id: postID, req: req})
}

func (c *Controller) DeletePost(ctx context.Context, postID string) error {
	_, err := mutation.Run(ctx, c.runner, mutation.Mutation[string, *types.MessageResponse]{
		Name: MutationDeletePost,
		Keys: []cache.Key{ProfileKey},
		Optimistic: func(tx *cache.Transaction, id string) error {
			_, err := tx.Update(ProfileKey, updateBundle(func(bundle types.ProfileBundle) types.ProfileBundle {
				posts := make([]types.Post, 0, len(bundle.Posts))
				for _, post := range bundle.Posts {
					if post.ID != id {
						posts = append(posts, post)
					}
				}
				bundle.Posts = posts
				return bundle
			}))
			return err
		},
		Call:           c.gateway.DeletePost,
		Invalidate:     []cache.Key{ProfileKey, feed.PostsKey},
		SuccessMessage: "Post deleted successfully!",
		ErrorMessage:   "Failed to delete post",
	}, postID)
	return err
}

// UpdateProfile merges the submitted fields into the cached user before the
// call. The user returned by the server then replaces it in the cache and in
// the session alike.
func (c *Controller) UpdateProfile(ctx context.Context, req *types.ProfileUpdateRequest) (*types.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	return mutation.Run(ctx, c.runner, mutation.Mutation[*types.ProfileUpdateRequest, *types.User]{
		Name: MutationUpdateProfile,
		Keys: []cache.Key{ProfileKey},
		Optimistic: func(tx *cache.Transaction, req *types.ProfileUpdateRequest) error {
			_, err := tx.Update(ProfileKey, updateBundle(func(bundle types.ProfileBundle) types.ProfileBundle {
				bundle.User = req.Apply(bundle.User)
				return bundle
			}))
			return err
		},
		Call: c.gateway.UpdateProfile,
		OnSuccess: func(req *types.ProfileUpdateRequest, user *types.User) {
			c.commitUser(user)
		},
		SuccessMessage: "Profile updated successfully!",
		ErrorMessage:   "Failed to update profile",
	}, req)
}

// UpdateAvatar shows a local preview of file until the upload finishes. The
// preview is discarded whatever the outcome.
func (c *Controller) UpdateAvatar(ctx context.Context, file *types.FileUpload) (*types.User, error) {
	if file == nil || len(file.Data) == 0 {
		return nil, types.ErrFileIsEmpty
	}

	preview, err := c.previews.Create(file)
	if err != nil {
		c.logger.Warn("Avatar preview unavailable", zap.Error(err))
	}

	return mutation.Run(ctx, c.runner, mutation.Mutation[*types.FileUpload, *types.User]{
		Name: MutationUpdateAvatar,
		Keys: []cache.Key{ProfileKey},
		Optimistic: func(tx *cache.Transaction, file *types.FileUpload) error {
			if preview == "" {
				return nil
			}
			_, err := tx.Update(ProfileKey, updateBundle(func(bundle types.ProfileBundle) types.ProfileBundle {
				bundle.User.Avatar = preview
				return bundle
			}))
			return err
		},
		Call: c.gateway.UpdateAvatar,
		OnSuccess: func(file *types.FileUpload, user *types.User) {
			c.commitUser(user)
		},
		OnSettled: func(file *types.FileUpload) {
			if preview != "" {
				c.previews.Discard(preview)
			}
		},
		SuccessMessage: "Avatar updated successfully!",
		ErrorMessage:   "Failed to update avatar",
	}, file)
}

func (c *Controller) load(ctx context.Context) (interface{}, error) {
	resp, err := c.gateway.GetProfile(ctx)
	if err != nil {
		return nil, err
	}

	return types.ProfileBundle{User: resp.User, Posts: resp.Posts}, nil
}

// commitUser writes the canonical user to the profile entry and the session.
func (c *Controller) commitUser(user *types.User) {
	if user == nil {
		return
	}

	c.store.Cancel(ProfileKey)
	if _, err := c.store.Set(ProfileKey, updateBundle(func(bundle types.ProfileBundle) types.ProfileBundle {
		bundle.User = *user
		return bundle
	})); err != nil {
		c.logger.Warn("Failed to store updated user", zap.Error(err))
	}

	c.session.SetUser(*user)
}

// updateBundle adapts fn to a cache updater. Without a cached profile the
// update is skipped.
func updateBundle(fn func(bundle types.ProfileBundle) types.ProfileBundle) cache.Updater {
	return func(old interface{}, ok bool) interface{} {
		bundle, isBundle := old.(types.ProfileBundle)
		if !ok || !isBundle {
			return nil
		}
		return fn(bundle)
	}
}
