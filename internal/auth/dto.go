package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/frahmantamala/receiptlens/internal"
)

// RegisterDTO is the request body of /api/register.
type RegisterDTO struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginDTO is the request body of /api/login.
type LoginDTO struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type LoginResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username}
}

func ToLoginResponse(r *LoginResult) LoginResponse {
	return LoginResponse{ID: r.User.ID, Username: r.User.Username, Token: r.Token}
}

// validationError turns the first failed rule into a client-facing message.
func validationError(err error) *internal.AppError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return internal.NewValidationError("Invalid request body", internal.ErrCodeValidationFailed)
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return internal.NewValidationError(msg, internal.ErrCodeValidationFailed)
}
