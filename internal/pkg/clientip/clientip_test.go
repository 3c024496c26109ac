package clientip_test

import (
	"net"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitorstats/internal/pkg/clientip"
)

// resolveIP runs FromRequest inside a fiber handler with the given headers.
func resolveIP(t *testing.T, headers map[string]string) string {
	t.Helper()

	app := fiber.New()
	var resolved string
	app.Get("/", func(c *fiber.Ctx) error {
		resolved = clientip.FromRequest(c)
		return c.SendString("ok")
	})

	req := httptest.NewRequest("GET", "/", nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	return resolved
}

func TestFromRequest(t *testing.T) {
	t.Run("prefers CF-Connecting-IP", func(t *testing.T) {
		ip := resolveIP(t, map[string]string{
			"CF-Connecting-IP": "203.0.113.10",
			"X-Forwarded-For":  "198.51.100.5",
		})
		assert.Equal(t, "203.0.113.10", ip)
	})

	t.Run("takes first hop of X-Forwarded-For", func(t *testing.T) {
		ip := resolveIP(t, map[string]string{
			"X-Forwarded-For": "198.51.100.5, 203.0.113.10, 10.0.0.1",
		})
		assert.Equal(t, "198.51.100.5", ip)
	})

	t.Run("skips private addresses in headers", func(t *testing.T) {
		ip := resolveIP(t, map[string]string{
			"X-Forwarded-For": "10.0.0.1, 198.51.100.5",
		})
		assert.Equal(t, "198.51.100.5", ip)
	})

	t.Run("parses Forwarded header", func(t *testing.T) {
		ip := resolveIP(t, map[string]string{
			"Forwarded": `for="203.0.113.43";proto=https`,
		})
		assert.Equal(t, "203.0.113.43", ip)
	})

	t.Run("strips port from candidates", func(t *testing.T) {
		ip := resolveIP(t, map[string]string{
			"Client-IP": "203.0.113.43:8443",
		})
		assert.Equal(t, "203.0.113.43", ip)
	})

	t.Run("falls back to loopback without usable headers", func(t *testing.T) {
		ip := resolveIP(t, nil)
		assert.Equal(t, "127.0.0.1", ip)
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"203.0.113.1", "203.0.113.1"},
		{" 203.0.113.1 ", "203.0.113.1"},
		{`"203.0.113.1"`, "203.0.113.1"},
		{"203.0.113.1:8080", "203.0.113.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"2001:db8::1", "2001:db8::1"},
		{"fe80::1%eth0", "fe80::1"},
		{"::ffff:203.0.113.1", "203.0.113.1"},
		{"garbage", ""},
		{"", ""},
	}

	for _, tt := range tests {
		clean, _ := clientip.Normalize(tt.raw)
		assert.Equal(t, tt.want, clean, "input %q", tt.raw)
	}
}

func TestIsPrivate(t *testing.T) {
	assert.True(t, clientip.IsPrivate(net.ParseIP("10.1.2.3")))
	assert.True(t, clientip.IsPrivate(net.ParseIP("172.16.0.1")))
	assert.True(t, clientip.IsPrivate(net.ParseIP("192.168.1.1")))
	assert.True(t, clientip.IsPrivate(net.ParseIP("127.0.0.1")))
	assert.True(t, clientip.IsPrivate(net.ParseIP("::1")))
	assert.True(t, clientip.IsPrivate(net.ParseIP("fe80::1")))
	assert.False(t, clientip.IsPrivate(net.ParseIP("8.8.8.8")))
	assert.False(t, clientip.IsPrivate(net.ParseIP("2001:4860:4860::8888")))
	assert.False(t, clientip.IsPrivate(nil))
}
