package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("supersafe", bcrypt.MinCost)
	require.NoError(t, err)
	require.NotEqual(t, "supersafe", hash)

	require.NoError(t, VerifyPassword(hash, "supersafe"))
	require.ErrorIs(t, VerifyPassword(hash, "wrong"), ErrPasswordMismatch)
	require.Error(t, VerifyPassword("not-a-hash", "supersafe"))
}

func TestHashPasswordClampsCost(t *testing.T) {
	hash, err := HashPassword("pw", 99)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	require.Equal(t, bcrypt.DefaultCost, cost)
}
