package geo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
	loc  Location
	err  error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Resolve(_ context.Context, _ string) (Location, error) {
	return p.loc, p.err
}

func TestChainLookup(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("private address short-circuits to Local", func(t *testing.T) {
		chain := NewChain(logger, time.Second, &stubProvider{name: "stub", loc: Location{Country: "Germany"}})
		loc := chain.Lookup(context.Background(), "192.168.1.10")
		assert.Equal(t, LocalCountry, loc.Country)
		assert.Empty(t, loc.City)
	})

	t.Run("first successful provider wins", func(t *testing.T) {
		chain := NewChain(logger, time.Second,
			&stubProvider{name: "a", err: ErrNotFound},
			&stubProvider{name: "b", loc: Location{Country: "Spain", City: "Madrid"}},
			&stubProvider{name: "c", loc: Location{Country: "France"}},
		)
		loc := chain.Lookup(context.Background(), "93.184.216.34")
		assert.Equal(t, "Spain", loc.Country)
		assert.Equal(t, "Madrid", loc.City)
	})

	t.Run("provider errors fall through", func(t *testing.T) {
		chain := NewChain(logger, time.Second,
			&stubProvider{name: "a", err: errors.New("timeout")},
			&stubProvider{name: "b", loc: Location{Country: "Japan"}},
		)
		loc := chain.Lookup(context.Background(), "93.184.216.34")
		assert.Equal(t, "Japan", loc.Country)
	})

	t.Run("all providers failing yields Unknown", func(t *testing.T) {
		chain := NewChain(logger, time.Second,
			&stubProvider{name: "a", err: ErrNotFound},
			&stubProvider{name: "b", err: errors.New("unreachable")},
		)
		loc := chain.Lookup(context.Background(), "93.184.216.34")
		assert.Equal(t, UnknownCountry, loc.Country)
	})

	t.Run("empty chain yields Unknown", func(t *testing.T) {
		chain := NewChain(logger, time.Second)
		loc := chain.Lookup(context.Background(), "93.184.216.34")
		assert.Equal(t, UnknownCountry, loc.Country)
	})
}

func TestIPAPIProvider(t *testing.T) {
	t.Run("success response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"success","country":"Germany","city":"Berlin"}`))
		}))
		defer server.Close()

		provider := &IPAPIProvider{client: server.Client(), baseURL: server.URL, name: "ip-api"}
		loc, err := provider.Resolve(context.Background(), "93.184.216.34")
		require.NoError(t, err)
		assert.Equal(t, "Germany", loc.Country)
		assert.Equal(t, "Berlin", loc.City)
	})

	t.Run("fail status maps to ErrNotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"fail"}`))
		}))
		defer server.Close()

		provider := &IPAPIProvider{client: server.Client(), baseURL: server.URL, name: "ip-api"}
		_, err := provider.Resolve(context.Background(), "93.184.216.34")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("non-200 response errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		provider := &IPAPIProvider{client: server.Client(), baseURL: server.URL, name: "ip-api"}
		_, err := provider.Resolve(context.Background(), "93.184.216.34")
		assert.Error(t, err)
	})
}

func TestOpenMaxMindOptional(t *testing.T) {
	provider, err := OpenMaxMind("")
	require.NoError(t, err)
	assert.Nil(t, provider)
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "Germany", CountryName("DE"))
	assert.Equal(t, "United States", CountryName("US"))
	assert.Equal(t, "Spain", CountryName("ESP"))
	assert.Equal(t, "ZZ", CountryName("zz"))
}
