package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/receiptlens/internal"
)

// Claims represents JWT token claims. The subject carries the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return id, nil
}

// TokenGenerator creates and validates access tokens.
type TokenGenerator interface {
	GenerateAccessToken(userID int64, username string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type JWTTokenGenerator struct {
	Secret         []byte
	AccessTokenTTL time.Duration
	now            func() time.Time
}

func NewJWTTokenGenerator(secret string, ttl time.Duration) *JWTTokenGenerator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTTokenGenerator{
		Secret:         []byte(secret),
		AccessTokenTTL: ttl,
		now:            time.Now,
	}
}

// GenerateAccessToken creates a new access token
func (j *JWTTokenGenerator) GenerateAccessToken(userID int64, username string) (string, error) {
	now := j.now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// ValidateToken validates a JWT token and returns claims
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(j.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken.WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken.WithCause(err)
	}
	return claims, nil
}

var (
	ErrInvalidCredentials = internal.NewUnauthorizedError("Invalid username or password", internal.ErrCodeInvalidCredential)
	ErrInvalidToken       = internal.NewUnauthorizedError("Invalid token", internal.ErrCodeInvalidToken)
	ErrTokenExpired       = internal.NewUnauthorizedError("Token expired", internal.ErrCodeTokenExpired)
	ErrUsernameTaken      = internal.NewConflictError("Username already exists", internal.ErrCodeUsernameTaken)
	ErrUserNotFound       = &internal.AppError{
		Type:       internal.ErrorTypeNotFound,
		Code:       internal.ErrCodeUserNotFound,
		Message:    "User not found",
		StatusCode: http.StatusNotFound,
	}
)
