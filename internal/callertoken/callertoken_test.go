package callertoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgercontracts "attest/contracts/ledger"
	"attest/pkg/faults"
)

var tokenService = NewService("test-signing-key", time.Hour)

func Test_Issue_RoundTrip(t *testing.T) {
	token, err := tokenService.Issue("0xuni", string(ledgercontracts.RoleInstitution))
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tokenService.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "0xuni", claims.Address)
	assert.Equal(t, "institution", claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_Issue_RejectsEmptyIdentity(t *testing.T) {
	_, err := tokenService.Issue("", "student")
	require.Error(t, err)
	assert.True(t, faults.HasCode(err, faults.CodeInvalidInput))

	_, err = tokenService.Issue("0xstu", "")
	require.Error(t, err)
	assert.True(t, faults.HasCode(err, faults.CodeInvalidInput))
}

func Test_Validate_InvalidToken(t *testing.T) {
	_, err := tokenService.Validate("invalid-token-string")
	require.Error(t, err)
	assert.True(t, faults.HasCode(err, faults.CodePermissionDenied))
}

func Test_Validate_EmptyToken(t *testing.T) {
	_, err := tokenService.Validate("")
	require.Error(t, err)
	assert.True(t, faults.HasCode(err, faults.CodeInvalidInput))
}

func Test_Validate_ExpiredToken(t *testing.T) {
	expired := NewService("test-signing-key", -time.Minute)
	token, err := expired.Issue("0xstu", "student")
	require.NoError(t, err)

	_, err = tokenService.Validate(token)
	require.ErrorContains(t, err, "token expired")
}

func Test_Validate_WrongKey(t *testing.T) {
	other := NewService("other-key", time.Hour)
	token, err := other.Issue("0xstu", "student")
	require.NoError(t, err)

	_, err = tokenService.Validate(token)
	require.Error(t, err)
	assert.True(t, faults.HasCode(err, faults.CodePermissionDenied))
}

func Test_Validate_RejectsAlgorithmConfusion(t *testing.T) {
	claims := Claims{
		Address: "0xstu",
		Role:    "student",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
			ID:        uuid.NewString(),
		},
	}

	cases := []struct {
		name       string
		signMethod jwt.SigningMethod
		signKey    any
	}{
		{
			name:       "hs512 header rejected",
			signMethod: jwt.SigningMethodHS512,
			signKey:    []byte("test-signing-key"),
		},
		{
			name:       "alg none rejected",
			signMethod: jwt.SigningMethodNone,
			signKey:    jwt.UnsafeAllowNoneSignatureType,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			token := jwt.NewWithClaims(tt.signMethod, claims)
			tokenString, err := token.SignedString(tt.signKey)
			require.NoError(t, err)

			_, err = tokenService.Validate(tokenString)
			require.Error(t, err)
			assert.True(t, faults.HasCode(err, faults.CodePermissionDenied))
		})
	}
}

func Test_Validate_RejectsForeignIssuer(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Address: "0xstu",
		Role:    "student",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			Issuer:    "someone-else",
		},
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = tokenService.Validate(signed)
	require.Error(t, err)
	assert.True(t, faults.HasCode(err, faults.CodePermissionDenied))
}

func Test_Adapter_MapsClaims(t *testing.T) {
	token, err := tokenService.Issue("0xadmin", "admin")
	require.NoError(t, err)

	claims, err := NewAdapter(tokenService).Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "0xadmin", claims.Address)
	assert.Equal(t, "admin", claims.Role)
}
