package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/receiptlens/internal"
)

// Service is the main auth service with dependencies
type Service struct {
	userRepo       RepositoryAPI
	tokenGenerator TokenGenerator
	validate       *validator.Validate
	bcryptCost     int
	logger         *slog.Logger
}

// NewService creates a new auth service
func NewService(userRepo RepositoryAPI, tokenGen TokenGenerator, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:       userRepo,
		tokenGenerator: tokenGen,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		bcryptCost:     bcryptCost,
		logger:         logger,
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, dto RegisterDTO) (*User, error) {
	dto.Username = strings.TrimSpace(dto.Username)
	if err := s.validate.Struct(dto); err != nil {
		return nil, validationError(err)
	}

	if _, err := s.userRepo.GetByUsername(ctx, dto.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		s.logger.Error("failed to look up username", "error", err)
		return nil, internal.NewInternalError("Failed to register user", err)
	}

	hash, err := s.HashPassword(dto.Password)
	if err != nil {
		return nil, internal.NewInternalError("Failed to register user", err)
	}

	user := &User{Username: dto.Username, PasswordHash: hash}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		s.logger.Error("failed to create user", "error", err)
		return nil, internal.NewInternalError("Failed to register user", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login validates credentials and returns an access token
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*LoginResult, error) {
	dto.Username = strings.TrimSpace(dto.Username)
	if err := s.validate.Struct(dto); err != nil {
		return nil, validationError(err)
	}

	user, err := s.userRepo.GetByUsername(ctx, dto.Username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error("failed to load user for login", "error", err)
		return nil, internal.NewInternalError("Failed to log in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(dto.Password)); err != nil {
		s.logger.Warn("login rejected", "username", dto.Username)
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokenGenerator.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, internal.NewInternalError("Failed to log in", err)
	}

	return &LoginResult{User: user, Token: token}, nil
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}

func (s *Service) Me(ctx context.Context, userID int64) (*User, error) {
	if userID <= 0 {
		return nil, internal.ErrUnauthenticated
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, internal.ErrUnauthenticated
	}
	if err != nil {
		return nil, internal.NewInternalError("Failed to load user", err)
	}
	return user, nil
}

// EnsureUser returns the user with username, creating it with password when
// missing. The boolean reports whether a user was created.
func (s *Service) EnsureUser(ctx context.Context, username, password string) (*User, bool, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = s.Register(ctx, RegisterDTO{Username: username, Password: password})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// HashPassword creates a bcrypt hash of the password
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
