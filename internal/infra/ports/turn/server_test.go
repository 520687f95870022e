package turn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEphemeralCredential_Deterministic(t *testing.T) {
	a := EphemeralCredential("secret", "1700000000")
	b := EphemeralCredential("secret", "1700000000")
	require.Equal(t, a, b, "same secret and username must derive the same credential")
}

func TestEphemeralCredential_VariesWithInputs(t *testing.T) {
	base := EphemeralCredential("secret", "1700000000")

	require.NotEqual(t, base, EphemeralCredential("other", "1700000000"))
	require.NotEqual(t, base, EphemeralCredential("secret", "1700000060"))
}
