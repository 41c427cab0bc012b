// Package token issues and verifies execution tokens: short-lived HS256
// JWTs naming the governed actions their bearer may perform.
package token

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultLeeway is the clock skew tolerated on expiry and not-before checks.
const DefaultLeeway = 5 * time.Second

// Verification failure codes.
const (
	CodeExpired = "TOKEN_EXPIRED"
	CodeInvalid = "INVALID"
)

// Claims is the payload of an execution token.
type Claims struct {
	jwt.RegisteredClaims
	AllowedActions []string `json:"allowed_actions"`
	OrgID          string   `json:"org_id,omitempty"`
}

// Allows reports whether action is in the token's allowed actions.
func (c *Claims) Allows(action string) bool {
	return c != nil && slices.Contains(c.AllowedActions, action)
}

// VerifyError describes why a token was rejected.
type VerifyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Verification is the outcome of Verify. Exactly one of Payload and Error
// is set.
type Verification struct {
	Valid   bool         `json:"valid"`
	Payload *Claims      `json:"payload,omitempty"`
	Error   *VerifyError `json:"error,omitempty"`
}

// Verifier checks execution token signatures and expiry. It holds no state
// beyond its key and is safe for concurrent use.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// Option configures a Verifier or an Issuer.
type Option func(*settings)

type settings struct {
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// WithIssuer pins the expected (or stamped) iss claim.
func WithIssuer(iss string) Option { return func(s *settings) { s.issuer = iss } }

// WithLeeway overrides DefaultLeeway.
func WithLeeway(d time.Duration) Option { return func(s *settings) { s.leeway = d } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

func apply(opts []Option) settings {
	s := settings{leeway: DefaultLeeway, now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewVerifier creates a Verifier for tokens signed with secret.
func NewVerifier(secret []byte, opts ...Option) *Verifier {
	s := apply(opts)
	return &Verifier{secret: secret, issuer: s.issuer, leeway: s.leeway, now: s.now}
}

// Verify validates a token string.
func (v *Verifier) Verify(tokenString string) Verification {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return rejected(CodeInvalid, "execution token is empty")
	}
	if len(v.secret) == 0 {
		return rejected(CodeInvalid, "execution tokens are not configured")
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return rejected(CodeExpired, "execution token has expired")
		}
		return rejected(CodeInvalid, err.Error())
	}
	return Verification{Valid: true, Payload: &claims}
}

func rejected(code, msg string) Verification {
	return Verification{Error: &VerifyError{Code: code, Message: msg}}
}

// Issuer mints execution tokens. Tokens are normally issued by the session
// service; the Issuer backs operator tooling and tests.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewIssuer creates an Issuer signing with secret.
func NewIssuer(secret []byte, opts ...Option) *Issuer {
	s := apply(opts)
	return &Issuer{secret: secret, issuer: s.issuer, now: s.now}
}

// Issue signs a token for subject allowing actions until ttl from now.
func (i *Issuer) Issue(subject, orgID string, actions []string, ttl time.Duration) (string, *Claims, error) {
	if len(i.secret) == 0 {
		return "", nil, errors.New("token secret is not configured")
	}
	if ttl <= 0 {
		return "", nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	if len(actions) == 0 {
		return "", nil, errors.New("at least one allowed action is required")
	}

	now := i.now().UTC().Truncate(time.Second)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AllowedActions: slices.Clone(actions),
		OrgID:          orgID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign execution token: %w", err)
	}
	return signed, claims, nil
}
