package useragent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"visitorstats/internal/pkg/useragent"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		browser string
		device  string
	}{
		{
			name:    "desktop chrome",
			ua:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			browser: "Chrome",
			device:  useragent.DeviceDesktop,
		},
		{
			name:    "desktop firefox",
			ua:      "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0",
			browser: "Firefox",
			device:  useragent.DeviceDesktop,
		},
		{
			name:    "iphone safari",
			ua:      "Mozilla/5.0 (iPhone; CPU iPhone OS 16_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Mobile/15E148 Safari/604.1",
			browser: "Safari",
			device:  useragent.DeviceMobile,
		},
		{
			name:    "ipad is tablet",
			ua:      "Mozilla/5.0 (iPad; CPU OS 16_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Mobile/15E148 Safari/604.1",
			browser: "Safari",
			device:  useragent.DeviceTablet,
		},
		{
			name:    "android chrome is mobile",
			ua:      "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			browser: "Chrome",
			device:  useragent.DeviceMobile,
		},
		{
			name:    "internet explorer 11",
			ua:      "Mozilla/5.0 (Windows NT 6.1; Trident/7.0; rv:11.0) like Gecko",
			browser: "Internet Explorer",
			device:  useragent.DeviceDesktop,
		},
		{
			name:    "old opera",
			ua:      "Opera/9.80 (Windows NT 6.0) Presto/2.12.388 Version/12.14",
			browser: "Opera",
			device:  useragent.DeviceDesktop,
		},
		{
			name:    "windows phone",
			ua:      "Mozilla/5.0 (Windows Phone 10.0; Android 6.0.1) AppleWebKit/537.36 (KHTML, like Gecko) Gecko-like Mobile",
			browser: useragent.UnknownBrowser,
			device:  useragent.DeviceMobile,
		},
		{
			name:    "empty string",
			ua:      "",
			browser: useragent.UnknownBrowser,
			device:  useragent.DeviceDesktop,
		},
		{
			name:    "curl",
			ua:      "curl/8.4.0",
			browser: useragent.UnknownBrowser,
			device:  useragent.DeviceDesktop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := useragent.Parse(tt.ua)
			assert.Equal(t, tt.browser, result.Browser)
			assert.Equal(t, tt.device, result.Device)
			assert.Equal(t, tt.ua, result.UserAgent)
		})
	}
}

func TestParseChromeBeatsEdge(t *testing.T) {
	// Chromium Edge carries both tokens; the first match in the ordered
	// list wins.
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edge/120.0.0.0"
	assert.Equal(t, "Chrome", useragent.Parse(ua).Browser)
}
