package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginChecker(t *testing.T) {
	check := OriginChecker([]string{"http://allowed.test/", "https://Other.test"})

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "example.com", true},
		{"same host", "http://localhost:4316", "localhost:4316", true},
		{"listed", "http://allowed.test", "localhost:4316", true},
		{"listed case-insensitive", "https://other.test", "localhost:4316", true},
		{"unlisted", "http://evil.test", "localhost:4316", false},
		{"garbage", "::not a url", "localhost:4316", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/state", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, check(r))
		})
	}
}

func TestOriginChecker_Wildcard(t *testing.T) {
	check := OriginChecker([]string{"*"})
	r := httptest.NewRequest("GET", "/api/state", nil)
	r.Header.Set("Origin", "http://anything.test")
	assert.True(t, check(r))
}
