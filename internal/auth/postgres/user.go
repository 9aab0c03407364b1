package auth

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/receiptlens/internal/auth"
	userDatamodel "github.com/frahmantamala/receiptlens/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(ctx context.Context, user *auth.User) error {
	model := auth.ToDataModel(user)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return auth.ErrUsernameTaken
		}
		return err
	}
	user.ID = model.ID
	user.CreatedAt = model.CreatedAt
	return nil
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) first(ctx context.Context, query string, arg interface{}) (*auth.User, error) {
	var model userDatamodel.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return auth.FromDataModel(&model), nil
}
