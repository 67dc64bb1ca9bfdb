// Package geo resolves coordinate pairs into human-readable addresses via
// the LocationIQ reverse geocoding API. Results are cached in Redis keyed by
// rounded coordinates; the cache is optional and failures are ignored.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/civiclens/routing-server/internal/apperrors"
	"github.com/civiclens/routing-server/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheTTL = 24 * time.Hour

// Resolver performs reverse geocoding with a degradation policy: the
// pipeline must never block on geocoding when coordinates alone are enough.
type Resolver struct {
	client *http.Client
	cache  *redis.Client // nil disables caching
	apiKey string
	base   string
	logger *zap.SugaredLogger
}

// NewResolver creates a resolver. cache may be nil.
func NewResolver(client *http.Client, cache *redis.Client, apiKey, baseURL string, logger *zap.SugaredLogger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{client: client, cache: cache, apiKey: apiKey, base: baseURL, logger: logger}
}

// FallbackAddress renders the literal coordinate string used when no
// human-readable name is available. Coordinates are printed in plain
// decimal, never exponent notation.
func FallbackAddress(lat, lon float64) string {
	return "Lat: " + formatCoord(lat) + ", Lon: " + formatCoord(lon)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Resolve reverse-geocodes a coordinate pair. On upstream failure it returns
// an UpstreamError; callers decide whether to proceed with FallbackAddress.
// An HTTP 200 with no display name degrades to the coordinate string here.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) (models.ResolvedAddress, error) {
	addr := models.ResolvedAddress{Raw: models.Coordinates{Lat: lat, Lon: lon}}

	if lat < -90 || lat > 90 {
		return addr, apperrors.NewInvalidInput("lat", "latitude out of range")
	}
	if lon < -180 || lon > 180 {
		return addr, apperrors.NewInvalidInput("lon", "longitude out of range")
	}

	key := cacheKey(lat, lon)
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, key).Result(); err == nil && cached != "" {
			addr.Formatted = cached
			return addr, nil
		}
	}

	name, err := r.lookup(ctx, lat, lon)
	if err != nil {
		return addr, err
	}
	if name == "" {
		name = FallbackAddress(lat, lon)
	}
	addr.Formatted = name

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, name, cacheTTL).Err(); err != nil {
			r.logger.Debugw("Geocode cache write failed", "error", err)
		}
	}
	return addr, nil
}

func (r *Resolver) lookup(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("key", r.apiKey)
	q.Set("lat", formatCoord(lat))
	q.Set("lon", formatCoord(lon))
	q.Set("format", "json")
	endpoint := r.base + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", apperrors.NewUpstream("geocoding", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", apperrors.NewUpstream("geocoding", resp.StatusCode, nil)
	}

	var data struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", apperrors.NewUpstream("geocoding", resp.StatusCode, err)
	}
	return data.DisplayName, nil
}

// cacheKey rounds to 5 decimal places (~1m) so nearby fixes share an entry.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("revgeo:%.5f,%.5f", lat, lon)
}
