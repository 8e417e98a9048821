package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Woolworths Foods", "woolworths foods"},
		{"  WOOLWORTHS   FOODS  ", "woolworths foods"},
		{"engen\tfuel\nstation", "engen fuel station"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in))
	}
}

func TestFingerprint(t *testing.T) {
	// Normalization-equal inputs share a fingerprint.
	assert.Equal(t, Fingerprint("Woolworths Foods"), Fingerprint("  woolworths   FOODS "))
	assert.NotEqual(t, Fingerprint("woolworths foods"), Fingerprint("woolworths food"))
	assert.Len(t, Fingerprint("x"), 64)
}
