package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/cache"
	"github.com/saiset-co/sai-feed/mutation"
	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

const (
	MutationLike       = "like-post"
	MutationUnlike     = "unlike-post"
	MutationCreatePost = "create-post"
)

// ToggleLike unlikes the post when isLiked is true and likes it otherwise.
// isLiked must be the state the caller currently displays.
func (c *Controller) ToggleLike(ctx context.Context, postID string, isLiked bool) error {
	if isLiked {
		return c.Unlike(ctx, postID)
	}
	return c.Like(ctx, postID)
}

func (c *Controller) Like(ctx context.Context, postID string) error {
	return c.setLiked(ctx, postID, true)
}

func (c *Controller) Unlike(ctx context.Context, postID string) error {
	return c.setLiked(ctx, postID, false)
}

func (c *Controller) IsCreatingPost() bool {
	return c.runner.IsPending(MutationCreatePost)
}

func (c *Controller) setLiked(ctx context.Context, postID string, liked bool) error {
	name, fallback, call := MutationLike, "Failed to like post", c.gateway.LikePost
	if !liked {
		name, fallback, call = MutationUnlike, "Failed to unlike post", c.gateway.UnlikePost
	}

	_, err := mutation.Run(ctx, c.runner, mutation.Mutation[string, struct{}]{
		Name: name,
		Keys: []cache.Key{PostsKey},
		Optimistic: func(tx *cache.Transaction, id string) error {
			_, err := tx.Update(PostsKey, func(old interface{}, ok bool) interface{} {
				data, isPosts := old.(Posts)
				if !ok || !isPosts {
					return nil
				}
				return data.MapItems(func(post types.Post) types.Post {
					if post.ID != id {
						return post
					}
					return withLike(post, liked)
				})
			})
			return err
		},
		Call: func(ctx context.Context, id string) (struct{}, error) {
			return struct{}{}, call(ctx, id)
		},
		ErrorMessage: fallback,
	}, postID)
	if err != nil {
		return err
	}

	if c.config.RevalidateAfterLike {
		c.revalidate()
	}
	return nil
}

// CreatePost sends the draft and, once the server has assigned the post,
// puts it at the head of the first cached page. A next-page load in flight
// keeps running and appends after the prepended post.
func (c *Controller) CreatePost(ctx context.Context, req *types.CreatePostRequest) (*types.Post, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	return mutation.Run(ctx, c.runner, mutation.Mutation[*types.CreatePostRequest, *types.Post]{
		Name: MutationCreatePost,
		Call: c.gateway.CreatePost,
		OnSuccess: func(req *types.CreatePostRequest, post *types.Post) {
			_, err := c.store.Set(PostsKey, func(old interface{}, ok bool) interface{} {
				data, isPosts := old.(Posts)
				if !ok || !isPosts {
					return nil
				}
				next, prepended := data.PrependToFirstPage(*post)
				if !prepended {
					return nil
				}
				return next
			})
			if err != nil {
				c.logger.Warn("Failed to add created post to feed", zap.Error(err))
			}
		},
		SuccessMessage: "Post created successfully!",
		ErrorMessage:   "Failed to create post",
	}, req)
}

// revalidate refetches the feed in the background. The optimistic state
// stays visible until the refetch lands.
func (c *Controller) revalidate() {
	c.store.Invalidate(PostsKey)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		entry := c.Refetch(context.Background())
		if entry.Status == cache.StatusError {
			c.logger.Warn("Feed revalidation failed", zap.Error(entry.Err))
		}
	}()
}

func withLike(post types.Post, liked bool) types.Post {
	if liked {
		post.IsLiked = true
		post.LikesCount++
		return post
	}

	post.IsLiked = false
	if post.LikesCount > 0 {
		post.LikesCount--
	}
	return post
}
