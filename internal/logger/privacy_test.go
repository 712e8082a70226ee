package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashParticipantID(t *testing.T) {
	InitHashSalt()

	h1 := HashParticipantID(12345)
	h2 := HashParticipantID(12345)
	h3 := HashParticipantID(54321)

	require.Len(t, h1, 8)
	require.Equal(t, h1, h2, "same ID must hash identically")
	require.NotEqual(t, h1, h3, "different IDs must hash differently")
}

func TestSanitizeReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"empty", "", "<empty>"},
		{"short", "abc", "<3 chars>"},
		{"typical reference", "0012345678", "0012******"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, SanitizeReference(tt.ref))
		})
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "<empty>", SanitizeText(""))
	require.Equal(t, "<5 chars>", SanitizeText("hello"))
	require.Equal(t, "Tra...<24 chars>", SanitizeText("Transfer to account 1234"))
}
