package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiblet/clipvault/internal/store"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		kind    store.Kind
		input   string
		want    string
		wantErr bool
	}{
		{"trims and collapses", store.KindText, "  hello \t\n world  ", "hello world", false},
		{"composes to NFC", store.KindText, "café", "café", false},
		{"rtf markup collapses too", store.KindRtf, "{\\rtf1  hi }", "{\\rtf1 hi }", false},
		{"image bytes untouched", store.KindImage, "  raw  ", "  raw  ", false},
		{"invalid utf8", store.KindText, "\xff\xfe", "", true},
		{"unknown kind", store.Kind(9), "x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.kind, []byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, store.ErrInvalidContent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestFingerprint(t *testing.T) {
	a, err := FingerprintContent(store.KindText, []byte("hello  world"))
	require.NoError(t, err)
	b, err := FingerprintContent(store.KindText, []byte(" hello world\n"))
	require.NoError(t, err)
	assert.Equal(t, a, b, "whitespace differences should not change identity")
	assert.Len(t, a, 64)

	asFile, err := FingerprintContent(store.KindFile, []byte("hello world"))
	require.NoError(t, err)
	assert.NotEqual(t, a, asFile, "kind takes part in the fingerprint")

	upper, err := FingerprintContent(store.KindText, []byte("Hello world"))
	require.NoError(t, err)
	assert.NotEqual(t, a, upper, "case is significant")
}
