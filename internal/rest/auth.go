package rest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Auth modes.
const (
	AuthModeNone     = "none"
	AuthModeOptional = "optional"
	AuthModeRequired = "required"
)

// User is the authenticated identity surfaced in the envelope.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// AuthVerifier validates a bearer token and extracts the identity.
type AuthVerifier interface {
	Verify(token string) (*User, error)
}

// AuthOptions configures the auth layer.
type AuthOptions struct {
	Mode            string
	TrustSnippets   bool
	TrustUnverified bool
	Verifier        AuthVerifier
}

// authenticator resolves the request identity from snippet headers or a
// bearer token. It is shared across requests.
type authenticator struct {
	opts   AuthOptions
	logger *slog.Logger
	warned sync.Map // token hash -> struct{}, one warning per token
}

func newAuthenticator(opts AuthOptions, logger *slog.Logger) *authenticator {
	if opts.Mode == "" {
		opts.Mode = AuthModeNone
	}
	return &authenticator{opts: opts, logger: logger}
}

// authenticate returns the request's user, or an APIError when the auth mode
// demands one and none could be established. Snippet headers take precedence
// over the bearer token.
func (a *authenticator) authenticate(r *http.Request) (*User, *APIError) {
	if a.opts.Mode == AuthModeNone {
		return nil, nil
	}

	if a.opts.TrustSnippets && r.Header.Get("x-snippet-auth-valid") == "true" {
		if id := r.Header.Get("x-snippet-user-id"); id != "" {
			return &User{
				ID:    id,
				Email: r.Header.Get("x-snippet-user-email"),
				Name:  r.Header.Get("x-snippet-user-name"),
			}, nil
		}
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		if token != "" {
			user, err := a.resolveToken(token)
			if err != nil {
				return nil, NewAPIError(CodeInvalidToken, err.Error())
			}
			if user != nil {
				return user, nil
			}
		}
	}

	if a.opts.Mode == AuthModeRequired {
		return nil, NewAPIError(CodeAuthRequired, "Authentication required")
	}
	return nil, nil
}

func (a *authenticator) resolveToken(token string) (*User, error) {
	if a.opts.Verifier != nil {
		return a.opts.Verifier.Verify(token)
	}
	if a.opts.TrustUnverified {
		a.warnUnverified(token)
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("malformed token: %w", err)
		}
		return userFromClaims(claims), nil
	}
	// No verifier configured and unverified tokens are not trusted.
	return nil, nil
}

// warnUnverified logs once per distinct token.
func (a *authenticator) warnUnverified(token string) {
	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:8])
	if _, seen := a.warned.LoadOrStore(key, struct{}{}); seen {
		return
	}
	a.logger.Warn("SECURITY WARNING: trustUnverified is enabled, accepting JWT claims without signature verification",
		"token_hash", key)
}

func userFromClaims(claims jwt.MapClaims) *User {
	u := &User{}
	if sub, ok := claims["sub"].(string); ok {
		u.ID = sub
	}
	if email, ok := claims["email"].(string); ok {
		u.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		u.Name = name
	}
	if u.ID == "" && u.Email != "" {
		u.ID = u.Email
	}
	return u
}

// HMACVerifier validates HS256-family tokens against a shared secret.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier for HMAC-signed tokens.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token, returning the claimed identity.
func (v *HMACVerifier) Verify(token string) (*User, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}
	return userFromClaims(claims), nil
}
