package randx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := PublicID()
		assert.True(t, IsValidPublicID(id), id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestIsValidPublicID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", true},
		{"6BA7B810-9DAD-11D1-80B4-00C04FD430C8", true},
		{"urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
		{"{6ba7b810-9dad-11d1-80b4-00c04fd430c8}", false},
		{"6ba7b8109dad11d180b400c04fd430c8", false},
		{"not-a-uuid", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidPublicID(tt.id), tt.id)
	}
}
