package gateway

import (
	"context"
	"net/url"
	"strconv"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-feed/types"
	"github.com/saiset-co/sai-feed/utils"
)

// Client is the typed backend API used by the feed, profile and session
// layers.
type Client struct {
	http   *HTTPClient
	logger types.Logger
}

var _ types.Gateway = (*Client)(nil)

func NewClient(logger types.Logger, config *types.GatewayConfig, opts ...Option) *Client {
	return &Client{
		http:   NewHTTPClient(logger, config, opts...),
		logger: logger,
	}
}

func (c *Client) SetCredentials(credentials types.Credentials) {
	c.http.SetCredentials(credentials)
}

func (c *Client) HTTP() *HTTPClient {
	return c.http
}

func (c *Client) GetPosts(ctx context.Context, page, limit int) (*types.PostsResponse, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var resp types.PostsResponse
	respBody, err := c.send(ctx, fasthttp.MethodGet, "/posts?"+query.Encode(), nil, nil)
	if err != nil {
		return nil, withFallback(err, "Failed to fetch posts")
	}
	if err := decode(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CreatePost(ctx context.Context, req *types.CreatePostRequest) (*types.Post, error) {
	fields := []multipartField{
		{name: "title", value: req.Title},
		{name: "content", value: req.Content},
		{name: "fakultas", value: req.Fakultas},
		{name: "kategori", value: req.Kategori},
		{name: "isAnonymous", value: strconv.FormatBool(req.IsAnonymous)},
	}

	body, contentType, err := encodeMultipart(fields, "image", req.Image)
	if err != nil {
		return nil, err
	}

	respBody, err := c.http.Call(ctx, fasthttp.MethodPost, "/posts", body, contentType, nil)
	if err != nil {
		return nil, withFallback(err, "Failed to create post")
	}

	var post types.Post
	if err := decode(respBody, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) UpdatePost(ctx context.Context, postID string, req *types.UpdatePostRequest) (*types.Post, error) {
	var post types.Post
	respBody, err := c.send(ctx, fasthttp.MethodPatch, "/posts/"+url.PathEscape(postID), req, nil)
	if err != nil {
		return nil, withFallback(err, "Failed to update post")
	}
	if err := decode(respBody, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, postID string) (*types.MessageResponse, error) {
	var resp types.MessageResponse
	respBody, err := c.send(ctx, fasthttp.MethodDelete, "/posts/"+url.PathEscape(postID), nil, nil)
	if err != nil {
		return nil, withFallback(err, "Failed to delete post")
	}
	if err := decode(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) LikePost(ctx context.Context, postID string) error {
	body := map[string]string{"postId": postID}
	if _, err := c.send(ctx, fasthttp.MethodPost, "/likes", body, nil); err != nil {
		return withFallback(err, "Failed to like post")
	}
	return nil
}

func (c *Client) UnlikePost(ctx context.Context, postID string) error {
	if _, err := c.send(ctx, fasthttp.MethodDelete, "/likes/"+url.PathEscape(postID), nil, nil); err != nil {
		return withFallback(err, "Failed to unlike post")
	}
	return nil
}

func (c *Client) GetProfile(ctx context.Context) (*types.ProfileResponse, error) {
	var resp types.ProfileResponse
	respBody, err := c.send(ctx, fasthttp.MethodGet, "/auth/profile", nil, nil)
	if err != nil {
		return nil, withFallback(err, "Failed to fetch profile")
	}
	if err := decode(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req *types.ProfileUpdateRequest) (*types.User, error) {
	var user types.User
	respBody, err := c.send(ctx, fasthttp.MethodPatch, "/auth/profile", req, nil)
	if err != nil {
		return nil, withFallback(err, "Failed to update profile")
	}
	if err := decode(respBody, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateAvatar(ctx context.Context, file *types.FileUpload) (*types.User, error) {
	if file == nil {
		return nil, types.Errorf(types.ErrFileIsEmpty, "avatar")
	}

	body, contentType, err := encodeMultipart(nil, "avatar", file)
	if err != nil {
		return nil, err
	}

	respBody, err := c.http.Call(ctx, fasthttp.MethodPatch, "/auth/avatar", body, contentType, nil)
	if err != nil {
		return nil, withFallback(err, "Failed to update avatar")
	}

	var user types.User
	if err := decode(respBody, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Login(ctx context.Context, req *types.LoginRequest) (*types.LoginResponse, error) {
	var resp types.LoginResponse
	respBody, err := c.send(ctx, fasthttp.MethodPost, "/auth/login", req, &types.CallOptions{SkipAuthRetry: true})
	if err == nil {
		err = decode(respBody, &resp)
	}
	if err != nil {
		if apiErr, ok := AsAPIError(err); ok && apiErr.Status == fasthttp.StatusUnauthorized {
			apiErr.Message = "Invalid credentials"
			return nil, apiErr
		}
		return nil, withFallback(err, "Login failed")
	}
	return &resp, nil
}

func (c *Client) Register(ctx context.Context, req *types.RegisterRequest) (*types.RegisterResponse, error) {
	var resp types.RegisterResponse
	respBody, err := c.send(ctx, fasthttp.MethodPost, "/auth/register", req, &types.CallOptions{SkipAuthRetry: true})
	if err == nil {
		err = decode(respBody, &resp)
	}
	if err != nil {
		return nil, withFallback(err, "Registration failed")
	}
	return &resp, nil
}

func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*types.RefreshTokenResponse, error) {
	var resp types.RefreshTokenResponse
	req := &types.RefreshTokenRequest{RefreshToken: refreshToken}
	respBody, err := c.send(ctx, fasthttp.MethodPost, "/auth/refresh-token", req, &types.CallOptions{SkipAuthRetry: true})
	if err == nil {
		err = decode(respBody, &resp)
	}
	if err != nil {
		return nil, withFallback(err, "Session expired")
	}

	if resp.Token == "" {
		return nil, types.Errorf(types.ErrClientResponseInvalid, "refresh response has no token")
	}
	return &resp, nil
}

func (c *Client) GoogleLoginURL() string {
	return c.http.BaseURL() + "/auth/google"
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}, opts *types.CallOptions) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = utils.Marshal(payload)
		if err != nil {
			return nil, types.WrapError(err, "failed to marshal request body")
		}
	}

	return c.http.Call(ctx, method, path, body, contentTypeJSON, opts)
}

func decode[T any](body []byte, target *T) error {
	if len(body) == 0 {
		return types.Errorf(types.ErrClientResponseInvalid, "empty response body")
	}
	if err := utils.Unmarshal(body, target); err != nil {
		return types.Errorf(types.ErrClientResponseInvalid, "%v", err)
	}
	return nil
}
