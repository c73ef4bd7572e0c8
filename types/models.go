package types

import (
	"time"
)

const (
	KategoriTugas  = "TUGAS"
	KategoriCurhat = "CURHAT"
	KategoriMeme   = "MEME"

	FakultasNotSpecified = "Not specified"
)

var Faculties = []string{
	"Fakultas Ilmu Komputer",
	"Fakultas Matematika dan Ilmu Pengetahuan Alam",
	"Fakultas Teknik",
	"Fakultas Ekonomi dan Bisnis",
	"Fakultas Ilmu Budaya",
	"Fakultas Hukum",
	"Fakultas Ilmu Sosial dan Politik",
	"Fakultas Psikologi",
	"Fakultas Kesehatan Masyarakat",
	"Fakultas Kedokteran",
	"Fakultas Kedokteran Gigi",
}

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Fakultas string `json:"fakultas"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role"`
}

type PostAuthor struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Fakultas string  `json:"fakultas"`
	Avatar   *string `json:"avatar"`
	Role     string  `json:"role"`
}

type Post struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Image         *string    `json:"image"`
	IsAnonymous   bool       `json:"isAnonymous"`
	Kategori      string     `json:"kategori"`
	Fakultas      string     `json:"fakultas"`
	AuthorID      string     `json:"authorId"`
	CreatedAt     time.Time  `json:"createdAt"`
	Author        PostAuthor `json:"author"`
	LikesCount    int        `json:"likesCount"`
	CommentsCount int        `json:"commentsCount"`
	IsLiked       bool       `json:"isLiked"`
}

type PostMeta struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalItems      int  `json:"totalItems"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

type PostsResponse struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Data       []Post   `json:"data"`
	Meta       PostMeta `json:"meta"`
}

type FileUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

type CreatePostRequest struct {
	Title       string      `json:"title" validate:"required,max=255"`
	Content     string      `json:"content" validate:"required"`
	Fakultas    string      `json:"fakultas" validate:"required,fakultas"`
	Kategori    string      `json:"kategori" validate:"required,oneof=TUGAS CURHAT MEME"`
	IsAnonymous bool        `json:"isAnonymous"`
	Image       *FileUpload `json:"-"`
}

// NewCreatePostRequest returns a draft carrying the form defaults for user.
func NewCreatePostRequest(user *User) *CreatePostRequest {
	req := &CreatePostRequest{Kategori: KategoriTugas}
	if user != nil && user.Fakultas != FakultasNotSpecified {
		req.Fakultas = user.Fakultas
	}
	return req
}

type UpdatePostRequest struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Content  *string `json:"content,omitempty" validate:"omitempty,min=1"`
	Kategori *string `json:"kategori,omitempty" validate:"omitempty,oneof=TUGAS CURHAT MEME"`
}

func (r *UpdatePostRequest) Apply(post Post) Post {
	if r.Title != nil {
		post.Title = *r.Title
	}
	if r.Content != nil {
		post.Content = *r.Content
	}
	if r.Kategori != nil {
		post.Kategori = *r.Kategori
	}
	return post
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ProfileResponse struct {
	User        User   `json:"user"`
	Posts       []Post `json:"posts"`
	AccessToken string `json:"access_token"`
}

type ProfileBundle struct {
	User  User   `json:"user"`
	Posts []Post `json:"posts"`
}

type ProfileUpdateRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Fakultas *string `json:"fakultas,omitempty" validate:"omitempty,fakultas"`
}

func (r *ProfileUpdateRequest) Apply(user User) User {
	if r.Name != nil {
		user.Name = *r.Name
	}
	if r.Email != nil {
		user.Email = *r.Email
	}
	if r.Fakultas != nil {
		user.Fakultas = *r.Fakultas
	}
	return user
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Fakultas string `json:"fakultas" validate:"required,fakultas"`
}

type RegisterResponse struct {
	User User `json:"user"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type RefreshTokenResponse struct {
	Token string `json:"token"`
}
