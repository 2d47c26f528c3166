package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeRequestedPath(t *testing.T) {
	tests := map[string]string{
		"":                         "",
		"   ":                      "",
		"/reports":                 "/reports",
		"/reports/?week=2":         "/reports?week=2",
		"/a/../b":                  "/b",
		"reports":                  "",
		"//evil.example.com/x":     "",
		"https://evil.example.com": "",
		"/\\evil.example.com":      "",
		"/%5Cevil":                 "",
		"/login":                   "",
		"/login/":                  "",
		"/login?next=/x":           "",
	}
	for raw, want := range tests {
		assert.Equal(t, want, SanitizeRequestedPath(raw, "/login"), "raw=%q", raw)
	}
}

func TestSanitizeRequestedPathWithoutLoginPath(t *testing.T) {
	assert.Equal(t, "/login", SanitizeRequestedPath("/login", ""))
}
