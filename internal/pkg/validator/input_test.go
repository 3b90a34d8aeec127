package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeFileComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pixel-8", "pixel_8"},
		{"abc123", "abc123"},
		{"a b/c.d", "a_b_c_d"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeFileComponent(tt.in), tt.in)
	}
}

func TestStripDataURL(t *testing.T) {
	assert.Equal(t, "QUJD", StripDataURL("data:image/png;base64,QUJD"))
	assert.Equal(t, "QUJD", StripDataURL("QUJD"))
	assert.Equal(t, "a,b", StripDataURL("a,b"))
}

func TestBase64DecodedSize(t *testing.T) {
	assert.Equal(t, 3, Base64DecodedSize("QUJD"))
	assert.Equal(t, 0, Base64DecodedSize(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 40))
	assert.Equal(t, "", Truncate("hi", 0))
}
