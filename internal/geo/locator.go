// Package geo resolves a client IP to a coarse location.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"fruition-api/internal/model"
)

// ErrLookupFailed is returned when the provider reports an error.
var ErrLookupFailed = errors.New("location lookup failed")

// Locator resolves an IP address to a coarse location.
type Locator interface {
	Lookup(ctx context.Context, ip string) (*model.Location, error)
}

// ipapiResponse is the subset of the ipapi.co JSON body we use.
type ipapiResponse struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	RegionCode  string `json:"region_code"`
	CountryName string `json:"country_name"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

// HTTPLocator queries an ipapi.co compatible endpoint.
type HTTPLocator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLocator creates a locator against baseURL (e.g. "https://ipapi.co").
func NewHTTPLocator(baseURL string, timeout time.Duration) *HTTPLocator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPLocator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Lookup resolves ip. Loopback, private and empty addresses resolve the
// caller of the provider instead.
func (l *HTTPLocator) Lookup(ctx context.Context, ip string) (*model.Location, error) {
	url := l.baseURL + "/json/"
	if parsed := net.ParseIP(ip); parsed != nil && !parsed.IsLoopback() && !parsed.IsPrivate() {
		url = fmt.Sprintf("%s/%s/json/", l.baseURL, parsed.String())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build location request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query location: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode location: %w", err)
	}
	if body.Error {
		return nil, fmt.Errorf("%w: %s", ErrLookupFailed, body.Reason)
	}

	return toLocation(body), nil
}

// toLocation builds the "City, RC" label, falling back to the country
// name when the provider has no region code.
func toLocation(r ipapiResponse) *model.Location {
	suffix := r.RegionCode
	if suffix == "" {
		suffix = r.CountryName
	}
	return &model.Location{
		City:    r.City,
		Region:  r.Region,
		Country: r.CountryName,
		Label:   fmt.Sprintf("%s, %s", r.City, suffix),
	}
}

// Nop never resolves a location.
type Nop struct{}

// Lookup always fails with ErrLookupFailed.
func (Nop) Lookup(ctx context.Context, ip string) (*model.Location, error) {
	return nil, ErrLookupFailed
}
