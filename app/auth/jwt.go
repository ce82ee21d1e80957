package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-mobile-payments/app/types"
)

const userContextKey = "auth.user"

var ErrInvalidToken = errors.New("invalid token")

// Claims is the bearer token issued by the identity provider. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type User struct {
	ID    string
	Email string
	Name  string
}

type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) ParseToken(tokenString string) (*User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return nil, ErrInvalidToken
	}

	return &User{ID: userID, Email: claims.Email, Name: claims.Name}, nil
}

// RequireUser rejects requests without a valid bearer token and stores the caller on the context.
func (a *Authenticator) RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderAuthorization))
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Message: "missing bearer token"})
			}

			user, err := a.ParseToken(strings.TrimSpace(parts[1]))
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Message: "invalid token"})
			}

			ctx.Set(userContextKey, user)
			return next(ctx)
		}
	}
}

func UserFromContext(ctx echo.Context) *User {
	user, _ := ctx.Get(userContextKey).(*User)
	return user
}

// WithUser is used by handlers mounted behind other authentication and by tests.
func WithUser(ctx echo.Context, user *User) {
	ctx.Set(userContextKey, user)
}
