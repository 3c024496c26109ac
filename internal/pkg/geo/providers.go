package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindProvider resolves IPs against a local GeoLite2 database file.
// It never touches the network, so it runs first in the chain.
type MaxMindProvider struct {
	reader *geoip2.Reader
}

// OpenMaxMind opens the GeoLite2 database at path. An empty path disables
// the provider (nil, nil): the database file is optional.
func OpenMaxMind(path string) (*MaxMindProvider, error) {
	if path == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoLite2 database: %w", err)
	}
	return &MaxMindProvider{reader: reader}, nil
}

func (p *MaxMindProvider) Name() string { return "maxmind" }

func (p *MaxMindProvider) Resolve(_ context.Context, ip string) (Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, fmt.Errorf("invalid IP address: %s", ip)
	}

	record, err := p.reader.City(parsed)
	if err != nil {
		return Location{}, err
	}
	if record.Country.IsoCode == "" {
		return Location{}, ErrNotFound
	}

	return Location{
		Country: CountryName(record.Country.IsoCode),
		City:    record.City.Names["en"],
	}, nil
}

// Close releases the database reader.
func (p *MaxMindProvider) Close() error {
	return p.reader.Close()
}

// IPAPIProvider queries ip-api.com. The free tier serves plain HTTP; the
// TLS endpoint is used as a separate chain entry.
type IPAPIProvider struct {
	client  *http.Client
	baseURL string
	name    string
}

// NewIPAPI returns the plain-HTTP ip-api.com provider.
func NewIPAPI(client *http.Client) *IPAPIProvider {
	return &IPAPIProvider{client: client, baseURL: "http://ip-api.com/json", name: "ip-api"}
}

// NewIPAPITLS returns the HTTPS ip-api.com provider, used as the last
// fallback in the chain.
func NewIPAPITLS(client *http.Client) *IPAPIProvider {
	return &IPAPIProvider{client: client, baseURL: "https://ip-api.com/json", name: "ip-api-tls"}
}

func (p *IPAPIProvider) Name() string { return p.name }

func (p *IPAPIProvider) Resolve(ctx context.Context, ip string) (Location, error) {
	var payload struct {
		Status  string `json:"status"`
		Country string `json:"country"`
		City    string `json:"city"`
	}
	if err := getJSON(ctx, p.client, fmt.Sprintf("%s/%s?fields=status,country,city", p.baseURL, ip), &payload); err != nil {
		return Location{}, err
	}
	if payload.Status != "success" || payload.Country == "" {
		return Location{}, ErrNotFound
	}
	return Location{Country: payload.Country, City: payload.City}, nil
}

// IPInfoProvider queries ipinfo.io, which reports ISO country codes.
type IPInfoProvider struct {
	client *http.Client
}

func NewIPInfo(client *http.Client) *IPInfoProvider {
	return &IPInfoProvider{client: client}
}

func (p *IPInfoProvider) Name() string { return "ipinfo" }

func (p *IPInfoProvider) Resolve(ctx context.Context, ip string) (Location, error) {
	var payload struct {
		Country string `json:"country"`
		City    string `json:"city"`
	}
	if err := getJSON(ctx, p.client, fmt.Sprintf("https://ipinfo.io/%s/json", ip), &payload); err != nil {
		return Location{}, err
	}
	if payload.Country == "" {
		return Location{}, ErrNotFound
	}
	return Location{Country: CountryName(payload.Country), City: payload.City}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
