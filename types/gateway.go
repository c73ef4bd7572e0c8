package types

import (
	"context"
)

type PostsGateway interface {
	GetPosts(ctx context.Context, page, limit int) (*PostsResponse, error)
	CreatePost(ctx context.Context, req *CreatePostRequest) (*Post, error)
	UpdatePost(ctx context.Context, postID string, req *UpdatePostRequest) (*Post, error)
	DeletePost(ctx context.Context, postID string) (*MessageResponse, error)
	LikePost(ctx context.Context, postID string) error
	UnlikePost(ctx context.Context, postID string) error
}

type ProfileGateway interface {
	GetProfile(ctx context.Context) (*ProfileResponse, error)
	UpdateProfile(ctx context.Context, req *ProfileUpdateRequest) (*User, error)
	UpdateAvatar(ctx context.Context, file *FileUpload) (*User, error)
}

type AuthGateway interface {
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*RefreshTokenResponse, error)
	GoogleLoginURL() string
}

type Gateway interface {
	PostsGateway
	ProfileGateway
	AuthGateway
}

// Credentials supplies the bearer token for outgoing calls and owns the
// refresh-or-logout policy applied after a 401.
type Credentials interface {
	AccessToken() string
	RefreshAccessToken(ctx context.Context) (string, error)
}

type CallOptions struct {
	Retry         int
	Headers       map[string]string
	SkipAuthRetry bool
}
