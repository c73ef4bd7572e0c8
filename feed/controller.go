package feed

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-feed/cache"
	"github.com/saiset-co/sai-feed/mutation"
	"github.com/saiset-co/sai-feed/types"
)

const DefaultPageSize = 5

var PostsKey = cache.NewKey("posts")

type Posts = cache.InfiniteData[types.Post]

type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Controller drives the infinite posts feed cached under PostsKey.
type Controller struct {
	store   *cache.Store
	gateway types.PostsGateway
	runner  *mutation.Runner
	logger  types.Logger
	config  *types.FeedConfig
	hold    *cache.Hold
	wg      sync.WaitGroup
}

func NewController(store *cache.Store, gateway types.PostsGateway, runner *mutation.Runner, logger types.Logger, config *types.FeedConfig) *Controller {
	if config == nil {
		config = &types.FeedConfig{}
	}
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}

	return &Controller{
		store:   store,
		gateway: gateway,
		runner:  runner,
		logger:  logger,
		config:  config,
		hold:    cache.NewHold(store, PostsKey),
	}
}

// Load fetches the first page when nothing is cached and refetches every
// loaded page when the cached feed was invalidated.
func (c *Controller) Load(ctx context.Context) cache.Entry {
	c.hold.Acquire()

	entry, ok := c.store.Get(PostsKey)
	if ok && entry.HasData() {
		if entry.Invalidated {
			return c.Refetch(ctx)
		}
		return entry
	}

	return c.store.Fetch(ctx, PostsKey, func(ctx context.Context) (interface{}, error) {
		page, err := c.fetchPage(ctx, cache.FirstPageParam)
		if err != nil {
			return nil, err
		}
		return Posts{}.Append(page, cache.FirstPageParam), nil
	})
}

// FetchNextPage loads the page after the last one. It does nothing unless
// the feed is ready, reports a next page and has no fetch in flight.
func (c *Controller) FetchNextPage(ctx context.Context) (cache.Entry, bool) {
	entry, ok := c.store.Get(PostsKey)
	if !ok || !entry.HasData() || entry.IsFetching {
		return entry, false
	}

	current, ok := cache.Data[Posts](entry)
	if !ok || !current.HasNextPage() {
		return entry, false
	}

	entry = c.store.Fetch(ctx, PostsKey, func(ctx context.Context) (interface{}, error) {
		start, _ := c.data()
		param, hasNext := start.NextPageParam()
		if !hasNext {
			return start, nil
		}

		page, err := c.fetchPage(ctx, param)
		if err != nil {
			return nil, err
		}

		// Writes made while the page was loading, such as a created post,
		// are kept.
		latest, _ := c.data()
		if next, ok := latest.NextPageParam(); !ok || next != param {
			return latest, nil
		}
		return latest.Append(page, param), nil
	})

	return entry, true
}

// Refetch reloads pages 1..n where n is the number of pages loaded so far,
// stopping early once a page reports no next page.
func (c *Controller) Refetch(ctx context.Context) cache.Entry {
	return c.store.Fetch(ctx, PostsKey, func(ctx context.Context) (interface{}, error) {
		current, _ := c.data()
		count := len(current.Pages)
		if count == 0 {
			count = 1
		}

		var next Posts
		param := cache.FirstPageParam
		for i := 0; i < count; i++ {
			page, err := c.fetchPage(ctx, param)
			if err != nil {
				return nil, err
			}
			next = next.Append(page, param)

			nextParam, hasNext := next.NextPageParam()
			if !hasNext {
				break
			}
			param = nextParam
		}

		c.logger.Debug("Feed refetched", zap.Int("pages", len(next.Pages)))
		return next, nil
	})
}

func (c *Controller) Posts() []types.Post {
	data, _ := c.data()
	return data.Flatten()
}

func (c *Controller) Data() (Posts, bool) {
	return c.data()
}

func (c *Controller) HasNextPage() bool {
	data, _ := c.data()
	return data.HasNextPage()
}

func (c *Controller) IsFetchingNextPage() bool {
	entry, ok := c.store.Get(PostsKey)
	return ok && entry.IsFetching && entry.HasData()
}

func (c *Controller) State() State {
	entry, ok := c.store.Get(PostsKey)
	switch {
	case !ok:
		return StateEmpty
	case entry.HasData():
		return StateReady
	case entry.IsFetching:
		return StateLoading
	case entry.Status == cache.StatusError:
		return StateError
	default:
		return StateEmpty
	}
}

// Err returns the error of the last failed fetch, if the feed is in error.
func (c *Controller) Err() error {
	entry, ok := c.store.Get(PostsKey)
	if !ok || entry.Status != cache.StatusError {
		return nil
	}
	return entry.Err
}

// Release stops protecting the feed from eviction until the next Load.
func (c *Controller) Release() {
	c.hold.Release()
}

func (c *Controller) Subscribe(listener cache.Listener) func() {
	return c.store.Subscribe(PostsKey, listener)
}

// Wait blocks until background revalidations have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) data() (Posts, bool) {
	entry, ok := c.store.Get(PostsKey)
	if !ok {
		return Posts{}, false
	}
	return cache.Data[Posts](entry)
}

func (c *Controller) fetchPage(ctx context.Context, param int) (cache.Page[types.Post], error) {
	resp, err := c.gateway.GetPosts(ctx, param, c.config.PageSize)
	if err != nil {
		return cache.Page[types.Post]{}, err
	}

	number := resp.Meta.Page
	if number == 0 {
		number = param
	}

	return cache.Page[types.Post]{
		Items:       resp.Data,
		Number:      number,
		HasNextPage: resp.Meta.HasNextPage,
	}, nil
}
