package auth

import (
	"context"
	"time"

	userDatamodel "github.com/frahmantamala/receiptlens/internal/core/datamodel/user"
)

type ServiceAPI interface {
	Register(ctx context.Context, dto RegisterDTO) (*User, error)
	Login(ctx context.Context, dto LoginDTO) (*LoginResult, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	Me(ctx context.Context, userID int64) (*User, error)
}

type RepositoryAPI interface {
	Create(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
}

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type LoginResult struct {
	User  *User
	Token string
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func FromDataModel(m *userDatamodel.User) *User {
	return &User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}
