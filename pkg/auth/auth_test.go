package auth

import (
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"delivery-marketplace/pkg/config"
	"delivery-marketplace/pkg/errutil"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func sign(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)

	raw, err := jwt.Signed(signer).Claims(claims).Serialize()
	require.NoError(t, err)
	return raw
}

func newTestVerifier() *Verifier {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.Leeway = time.Second
	return NewVerifier(cfg)
}

func TestVerifyValidToken(t *testing.T) {
	claims := Claims{Email: "owner@example.ch"}
	claims.Subject = "7f1c2a9e-0000-4000-8000-000000000001"
	claims.Expiry = jwt.NewNumericDate(time.Now().Add(time.Hour))
	claims.AppMetadata.Role = "restaurant_owner"

	p, err := newTestVerifier().Verify("Bearer " + sign(t, testSecret, claims))
	require.NoError(t, err)
	require.Equal(t, claims.Subject, p.UserID)
	require.Equal(t, RoleRestaurantOwner, p.Role)
	require.Equal(t, "owner@example.ch", p.Email)
}

func TestVerifyDefaultsToCustomer(t *testing.T) {
	claims := Claims{}
	claims.Subject = "user-1"

	p, err := newTestVerifier().Verify(sign(t, testSecret, claims))
	require.NoError(t, err)
	require.Equal(t, RoleCustomer, p.Role)
}

func TestVerifyRejects(t *testing.T) {
	expired := Claims{}
	expired.Subject = "user-1"
	expired.Expiry = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	valid := Claims{}
	valid.Subject = "user-1"

	system := Claims{}
	system.Subject = "user-1"
	system.AppMetadata.Role = "system"

	cases := []struct {
		name  string
		token string
		code  errutil.CoreStatus
	}{
		{"empty", "", errutil.StatusUnauthorized},
		{"garbage", "not-a-jwt", errutil.StatusUnauthorized},
		{"wrong secret", sign(t, "another-secret-another-secret-another", valid), errutil.StatusUnauthorized},
		{"expired", sign(t, testSecret, expired), errutil.StatusUnauthorized},
		{"system role", sign(t, testSecret, system), errutil.StatusForbidden},
	}

	v := newTestVerifier()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(tc.token)
			require.Error(t, err)
			require.Equal(t, tc.code, errutil.StatusOf(err))
		})
	}
}

func TestVerifyWithoutSecret(t *testing.T) {
	_, err := NewVerifier(&config.Config{}).Verify("token")
	require.Equal(t, errutil.StatusConfigError, errutil.StatusOf(err))
}

func TestEnforcerDefaultPolicy(t *testing.T) {
	e, err := NewEnforcer(&config.Config{})
	require.NoError(t, err)

	require.True(t, e.Allow(RoleCustomer, "/api/orders", "POST"))
	require.True(t, e.Allow(RoleDriver, "/api/orders/abc/events", "POST"))
	require.True(t, e.Allow(RoleAdmin, "/api/admin/restaurants/r1/approve", "PATCH"))
	require.True(t, e.Allow(RoleAdmin, "/api/notifications/n1", "DELETE"))

	require.False(t, e.Allow(RoleDriver, "/api/orders", "POST"))
	require.False(t, e.Allow(RoleCustomer, "/api/admin/restaurants/r1/approve", "PATCH"))
	require.False(t, e.Allow(RoleRestaurantOwner, "/api/checkout/create-payment-intent", "POST"))
}
