package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"128-bit token", TokenSize128, 22},
		{"256-bit token", TokenSize256, 43},
		{"512-bit token", TokenSize512, 86},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, token, tt.wantLen)

			token2, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, token2, "tokens should be unique")
		})
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestFingerprintToken(t *testing.T) {
	fp1 := FingerprintToken("0b9f5a52-6f55-4c43-9a39-2d5d8f1c1e11")
	fp2 := FingerprintToken("0b9f5a52-6f55-4c43-9a39-2d5d8f1c1e11")
	fp3 := FingerprintToken("another-token")

	require.Equal(t, fp1, fp2, "fingerprint should be deterministic")
	require.NotEqual(t, fp1, fp3)
	require.Len(t, fp1, 43)
	require.NotContains(t, fp1, "0b9f5a52")
}
