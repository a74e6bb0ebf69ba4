package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"203.0.113.57:5555", "203.0.113.0"},
		{"203.0.113.57", "203.0.113.0"},
		{"127.0.0.1:8080", "127.0.0.1"},
		{"[2001:db8:abcd:12:1:2:3:4]:443", "2001:db8:abcd:12::"},
		{"not-an-ip", "unknown_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, anonymizeIP(tt.in))
		})
	}
}
