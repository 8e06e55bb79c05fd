package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	t.Run("produces unique url-safe tokens", func(t *testing.T) {
		a, err := GenerateToken(TokenSize256)
		require.NoError(t, err)
		b, err := GenerateToken(TokenSize256)
		require.NoError(t, err)

		require.Len(t, a, 43) // 32 bytes base64url, no padding
		require.NotEqual(t, a, b)
		require.NotContains(t, a, "=")
	})

	t.Run("rejects non-positive sizes", func(t *testing.T) {
		_, err := GenerateToken(0)
		require.Error(t, err)
	})
}

func TestFingerprintToken(t *testing.T) {
	t.Parallel()

	fp := FingerprintToken("opaque-token-value")

	require.Len(t, fp, 43)
	require.Equal(t, fp, FingerprintToken("opaque-token-value"), "fingerprint must be deterministic")
	require.NotEqual(t, fp, FingerprintToken("other-token"))

	require.True(t, FingerprintsEqual(fp, FingerprintToken("opaque-token-value")))
	require.False(t, FingerprintsEqual(fp, FingerprintToken("other-token")))
}
