package auth

import (
	"strings"
	"time"

	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/errutil"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// Claims mirrors the access tokens issued by Supabase auth. The marketplace
// role lives in app_metadata so users cannot change it themselves.
type Claims struct {
	jwt.Claims
	Email       string `json:"email"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
}

type Verifier struct {
	key    []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

func NewVerifier(cfg *config.Config) *Verifier {
	return &Verifier{
		key:    []byte(cfg.Auth.JWTSecret),
		issuer: cfg.Auth.Issuer,
		leeway: cfg.Auth.Leeway,
		now:    time.Now,
	}
}

// Verify parses an HS256 bearer token and returns the principal it names.
// Tokens without a marketplace role are treated as customers.
func (v *Verifier) Verify(raw string) (*Principal, error) {
	if len(v.key) == 0 {
		return nil, errutil.ConfigError("authentication is not configured", nil)
	}

	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return nil, errutil.Unauthorized("missing bearer token", nil)
	}

	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, errutil.Unauthorized("malformed token", err)
	}

	var claims Claims
	if err := tok.Claims(v.key, &claims); err != nil {
		return nil, errutil.Unauthorized("invalid token signature", err)
	}

	if err := claims.ValidateWithLeeway(jwt.Expected{
		Issuer: v.issuer,
		Time:   v.now(),
	}, v.leeway); err != nil {
		return nil, errutil.Unauthorized("token expired or not yet valid", err)
	}

	if claims.Subject == "" {
		return nil, errutil.Unauthorized("token has no subject", nil)
	}

	role := Role(claims.AppMetadata.Role)
	if role == "" {
		role = RoleCustomer
	}
	if !role.Valid() || role == RoleSystem {
		return nil, errutil.Forbidden("unknown role", nil)
	}

	return &Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   role,
	}, nil
}
