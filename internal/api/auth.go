package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenCookieKey = "token"
	defaultJwtExp  = 24 * time.Hour
)

type contextKey string

const identityKey contextKey = "identity"

// Identity returns the authenticated email stored by authMiddleware.
func Identity(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey).(string)
	return identity, ok
}

// authMiddleware validates the session JWT and stores the subject email
// in the request context. The token is read from the session cookie or,
// failing that, an Authorization bearer header.
func (a *App) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := tokenFromRequest(r)
		if err != nil {
			errResp := NewUnauthorizedError()
			a.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		identity, err := a.verifyToken(tokenString)
		if err != nil {
			a.log.Printf("token verification failed: %v", err)
			errResp := NewUnauthorizedError()
			a.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}

func tokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(tokenCookieKey); err == nil {
		return cookie.Value, nil
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer "), nil
	}

	return "", fmt.Errorf("no credentials in request")
}

func (a *App) createToken(identity string, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": identity,
		"exp": jwt.NewNumericDate(time.Now().Add(exp)),
	})

	return token.SignedString(a.signingKey)
}

func (a *App) verifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return a.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	identity, err := token.Claims.GetSubject()
	if err != nil || identity == "" {
		return "", fmt.Errorf("missing subject claim")
	}

	return identity, nil
}

func createJwtCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd)) == nil
}
