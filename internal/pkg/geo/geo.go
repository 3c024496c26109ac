// Package geo resolves visitor IPs to country and city through an ordered
// chain of pluggable providers.
package geo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"visitorstats/internal/pkg/clientip"
)

// Sentinel country labels for addresses that cannot be resolved.
const (
	LocalCountry   = "Local"
	UnknownCountry = "Unknown"
)

// ErrNotFound is returned by a provider when it has no data for the IP.
var ErrNotFound = errors.New("geo: no location data")

// Location is the result of a successful lookup.
type Location struct {
	Country string
	City    string
}

// Provider resolves a single IP address to a location.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ip string) (Location, error)
}

// Chain tries each provider in order until one succeeds.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewChain builds a provider chain. Each provider gets its own timeout.
func NewChain(logger *slog.Logger, timeout time.Duration, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		timeout:   timeout,
		logger:    logger,
	}
}

// Lookup resolves ip through the chain. Private addresses short-circuit to
// LocalCountry; when every provider fails the country is UnknownCountry.
// Lookup never returns an error: enrichment failures must not block the
// caller's write path.
func (c *Chain) Lookup(ctx context.Context, ip string) Location {
	if clientip.IsPrivateAddr(ip) {
		return Location{Country: LocalCountry}
	}

	for _, provider := range c.providers {
		providerCtx, cancel := context.WithTimeout(ctx, c.timeout)
		loc, err := provider.Resolve(providerCtx, ip)
		cancel()

		if err == nil && loc.Country != "" {
			return loc
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			c.logger.Debug("geo provider lookup failed",
				slog.String("provider", provider.Name()),
				slog.String("ip", ip),
				slog.Any("error", err))
		}
	}

	return Location{Country: UnknownCountry}
}

var upperCaser = cases.Upper(language.AmericanEnglish)

// CountryName converts an ISO alpha-2/alpha-3 code to its common English
// name. Unrecognized codes are returned uppercased.
func CountryName(code string) string {
	country, err := gountries.New().FindCountryByAlpha(code)
	if err != nil {
		return upperCaser.String(code)
	}
	return country.Name.Common
}
