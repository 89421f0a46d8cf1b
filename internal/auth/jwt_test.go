package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken(testSecret, "user-1", time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestGenerateToken_Validation(t *testing.T) {
	_, err := GenerateToken("", "user-1", time.Minute)
	assert.Error(t, err)

	_, err = GenerateToken(testSecret, "", time.Minute)
	assert.Error(t, err)
}

func TestParseToken_Rejects(t *testing.T) {
	sign := func(method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:    "expired",
			token:   sign(jwt.SigningMethodHS256, []byte(testSecret), &Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: past}}),
			wantErr: ErrTokenExpired,
		},
		{
			name:    "wrong secret",
			token:   sign(jwt.SigningMethodHS256, []byte("other"), &Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future}}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "missing uid",
			token:   sign(jwt.SigningMethodHS256, []byte(testSecret), &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future}}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "missing expiry",
			token:   sign(jwt.SigningMethodHS256, []byte(testSecret), &Claims{UserID: "u"}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "none algorithm",
			token:   sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, &Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future}}),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			token:   "not-a-token",
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(testSecret, tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
