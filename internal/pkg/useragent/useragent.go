// Package useragent classifies raw User-Agent strings into browser and
// device type buckets for reporting.
package useragent

import (
	"strings"
	"sync"

	"go.elara.ws/pcre"
)

// Device type buckets
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
)

// UnknownBrowser is reported when no known browser token matches.
const UnknownBrowser = "Unknown"

// UserAgent holds the classification result for a raw user agent string.
type UserAgent struct {
	UserAgent string
	Browser   string
	Device    string
}

var (
	mobilePattern *pcre.Regexp
	tabletPattern *pcre.Regexp
	patternOnce   sync.Once
)

func compilePatterns() {
	mobilePattern = pcre.MustCompile(`(?i)(android|iphone|ipad|ipod|blackberry|windows phone)`)
	tabletPattern = pcre.MustCompile(`(?i)ipad`)
}

// Parse classifies a raw User-Agent header value.
func Parse(raw string) UserAgent {
	return UserAgent{
		UserAgent: raw,
		Browser:   detectBrowser(raw),
		Device:    detectDevice(raw),
	}
}

// detectBrowser returns the browser family. The token order is significant:
// first match wins, so Chrome absorbs Chromium-based UAs that also carry
// "Safari".
func detectBrowser(raw string) string {
	switch {
	case strings.Contains(raw, "Chrome"):
		return "Chrome"
	case strings.Contains(raw, "Firefox"):
		return "Firefox"
	case strings.Contains(raw, "Safari"):
		return "Safari"
	case strings.Contains(raw, "Edge"):
		return "Edge"
	case strings.Contains(raw, "MSIE") || strings.Contains(raw, "Trident"):
		return "Internet Explorer"
	case strings.Contains(raw, "Opera"):
		return "Opera"
	default:
		return UnknownBrowser
	}
}

// detectDevice buckets the UA into Desktop, Mobile, or Tablet. The tablet
// check runs first since iPad UAs also match the mobile pattern.
func detectDevice(raw string) string {
	patternOnce.Do(compilePatterns)

	if tabletPattern.MatchString(raw) {
		return DeviceTablet
	}
	if mobilePattern.MatchString(raw) {
		return DeviceMobile
	}
	return DeviceDesktop
}
