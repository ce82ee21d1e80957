package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func validClaims(subject string) Claims {
	return Claims{
		Email: "user@example.com",
		Name:  "User",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestParseToken(t *testing.T) {
	a := NewAuthenticator("secret")

	user, err := a.ParseToken(signToken(t, "secret", jwt.SigningMethodHS256, validClaims("user-1")))
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if user.ID != "user-1" || user.Email != "user@example.com" || user.Name != "User" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := a.ParseToken(signToken(t, "other", jwt.SigningMethodHS256, validClaims("user-1"))); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	expired := validClaims("user-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	if _, err := a.ParseToken(signToken(t, "secret", jwt.SigningMethodHS256, expired)); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	if _, err := a.ParseToken(signToken(t, "secret", jwt.SigningMethodHS256, validClaims(""))); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken without subject, got %v", err)
	}
}

func TestRequireUser(t *testing.T) {
	a := NewAuthenticator("secret")
	handler := a.RequireUser()(func(ctx echo.Context) error {
		user := UserFromContext(ctx)
		if user == nil {
			return ctx.NoContent(http.StatusInternalServerError)
		}
		return ctx.String(http.StatusOK, user.ID)
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer not-a-jwt", status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + signToken(t, "secret", jwt.SigningMethodHS256, validClaims("user-7")), status: http.StatusOK},
	}

	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/payments/verify/KAM-1", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			rec := httptest.NewRecorder()
			if err := handler(e.NewContext(req, rec)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if tc.status == http.StatusOK && rec.Body.String() != "user-7" {
				t.Fatalf("unexpected body: %s", rec.Body.String())
			}
		})
	}
}
