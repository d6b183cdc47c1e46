package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectServerURL(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantOK   bool
		wantPort int
		wantURL  string
	}{
		{"vite", "  ➜  Local:   http://localhost:5173/", true, 5173, "http://localhost:5173/"},
		{"vite with ansi", "  \x1b[32m➜\x1b[39m  \x1b[1mLocal\x1b[22m:   \x1b[36mhttp://localhost:\x1b[1m5173\x1b[22m/\x1b[39m", true, 5173, "http://localhost:5173/"},
		{"next", "- Local:        http://localhost:3000", true, 3000, "http://localhost:3000"},
		{"express loopback", "Server listening on http://127.0.0.1:8080", true, 8080, "http://127.0.0.1:8080"},
		{"wildcard host", "listening at http://0.0.0.0:4000/", true, 4000, "http://localhost:4000/"},
		{"ipv6 loopback", "ready on http://[::1]:3001", true, 3001, "http://localhost:3001"},
		{"default port", "open http://localhost/", true, 80, "http://localhost/"},
		{"remote host ignored", "see https://vitejs.dev/config/", false, 0, ""},
		{"no url", "compiled successfully", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, url, ok := detectServerURL(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPort, port)
			assert.Equal(t, tt.wantURL, url)
		})
	}
}
