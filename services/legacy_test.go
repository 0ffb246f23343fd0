package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func legacyHash(t *testing.T, input string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(input), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}
