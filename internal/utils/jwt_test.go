package utils

import (
    "testing"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    at, err := NewAccessToken("secret", 42, "CUSTOMER", "jane@example.com", 15)
    require.NoError(t, err)
    require.NotEmpty(t, at.Token)

    tok, err := jwt.Parse(at.Token, func(t *jwt.Token) (interface{}, error) {
        return []byte("secret"), nil
    })
    require.NoError(t, err)
    require.True(t, tok.Valid)

    claims, ok := tok.Claims.(jwt.MapClaims)
    require.True(t, ok)
    assert.EqualValues(t, 42, claims["sub"])
    assert.Equal(t, "CUSTOMER", claims["role"])
    assert.Equal(t, "jane@example.com", claims["email"])
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
    at, err := NewAccessToken("secret", 1, "ADMIN", "admin@example.com", 15)
    require.NoError(t, err)

    _, err = jwt.Parse(at.Token, func(t *jwt.Token) (interface{}, error) {
        return []byte("other"), nil
    })
    assert.Error(t, err)
}

func TestRefreshTokenHashing(t *testing.T) {
    rt, err := NewRefreshToken(30)
    require.NoError(t, err)
    assert.Len(t, rt.Raw, 96)

    assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
    assert.NotEqual(t, rt.Raw, HashRefreshRaw(rt.Raw))

    rt2, err := NewRefreshToken(30)
    require.NoError(t, err)
    assert.NotEqual(t, rt.Raw, rt2.Raw)
}

func TestPasswordHashAndVerify(t *testing.T) {
    h, err := HashPassword("s3cret", bcrypt.MinCost)
    require.NoError(t, err)
    assert.True(t, VerifyPassword(h, "s3cret"))
    assert.False(t, VerifyPassword(h, "wrong"))
}
