package region

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/serjvanilla/go-overpass"
)

// DefaultOverpassEndpoint is the public Overpass API interpreter.
const DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// ErrBoundaryNotFound is returned when the query matched no geometry.
var ErrBoundaryNotFound = errors.New("boundary not found")

// OverpassFetcher resolves administrative boundaries through the Overpass
// API.
type OverpassFetcher struct {
	client  overpass.Client
	timeout time.Duration
}

// NewOverpassFetcher creates a fetcher for the given interpreter endpoint.
func NewOverpassFetcher(endpoint string, timeout time.Duration) *OverpassFetcher {
	if endpoint == "" {
		endpoint = DefaultOverpassEndpoint
	}
	if timeout == 0 {
		timeout = 25 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	return &OverpassFetcher{
		client:  overpass.NewWithSettings(endpoint, 1, httpClient),
		timeout: timeout,
	}
}

// FetchBounds implements BoundaryFetcher. The bound covers every node of the
// administrative relation named name.
func (f *OverpassFetcher) FetchBounds(ctx context.Context, name string) (orb.Bound, error) {
	query := fmt.Sprintf(`
		[out:json][timeout:%d];
		relation["boundary"="administrative"]["name"="%s"];
		out body;
		>;
		out skel qt;
	`, int(f.timeout.Seconds()), escapeQuery(name))

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	type outcome struct {
		result overpass.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := f.client.Query(query)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return orb.Bound{}, fmt.Errorf("overpass query: %w", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return orb.Bound{}, fmt.Errorf("overpass query: %w", out.err)
		}
		return boundsOf(&out.result)
	}
}

func boundsOf(result *overpass.Result) (orb.Bound, error) {
	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	found := false

	for _, node := range result.Nodes {
		minLon = math.Min(minLon, node.Lon)
		maxLon = math.Max(maxLon, node.Lon)
		minLat = math.Min(minLat, node.Lat)
		maxLat = math.Max(maxLat, node.Lat)
		found = true
	}
	if !found || minLon == maxLon || minLat == maxLat {
		return orb.Bound{}, ErrBoundaryNotFound
	}

	return orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{maxLon, maxLat},
	}, nil
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
