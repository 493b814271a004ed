package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var tokenCfg = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 15}

func mint(t *testing.T, cfg config.JWTConfig, at time.Time) string {
	t.Helper()
	token, err := MintAccessToken(cfg, at, AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	require.NoError(t, err)
	return token
}

func TestMintAndParse(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	userID := uuid.New()

	token, err := MintAccessToken(tokenCfg, now, AccessTokenPayload{
		UserID:   userID,
		Email:    "ana@example.com",
		Role:     enums.UserRoleAdmin,
		IsVerify: true,
		JTI:      "access-1",
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(tokenCfg, token)
	require.NoError(t, err)

	gotID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Equal(t, enums.UserRoleAdmin, claims.Role)
	assert.True(t, claims.IsVerify)
	assert.Equal(t, "access-1", claims.ID)
	assert.WithinDuration(t, now.Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestParseRejects(t *testing.T) {
	valid := mint(t, tokenCfg, time.Now())

	otherSecret := tokenCfg
	otherSecret.Secret = "another"
	otherIssuer := tokenCfg
	otherIssuer.Issuer = "someone-else"

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: "storefront"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct {
		cfg   config.JWTConfig
		token string
	}{
		"tampered":     {tokenCfg, valid + "x"},
		"wrong secret": {otherSecret, valid},
		"wrong issuer": {otherIssuer, valid},
		"alg none":     {tokenCfg, none},
		"no secret":    {config.JWTConfig{Issuer: "storefront"}, valid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(tc.cfg, tc.token)
			assert.Error(t, err)
		})
	}
}

func TestExpiredTokens(t *testing.T) {
	expired := mint(t, tokenCfg, time.Now().Add(-time.Hour))

	_, err := ParseAccessToken(tokenCfg, expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := ParseAccessTokenAllowExpired(tokenCfg, expired)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	otherIssuer := tokenCfg
	otherIssuer.Issuer = "someone-else"
	_, err = ParseAccessTokenAllowExpired(otherIssuer, expired)
	assert.Error(t, err)
}

func TestLeewayCoversSmallSkew(t *testing.T) {
	// expired 10s ago, inside the leeway
	token := mint(t, tokenCfg, time.Now().Add(-15*time.Minute-10*time.Second))
	_, err := ParseAccessToken(tokenCfg, token)
	assert.NoError(t, err)
}

func TestMintValidation(t *testing.T) {
	_, err := MintAccessToken(tokenCfg, time.Now(), AccessTokenPayload{UserID: uuid.New()})
	assert.Error(t, err)

	_, err = MintAccessToken(tokenCfg, time.Now(), AccessTokenPayload{Role: enums.UserRoleUser})
	assert.Error(t, err)

	_, err = MintAccessToken(config.JWTConfig{Secret: "s"}, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	assert.ErrorIs(t, err, ErrIssuerMissing)
}
