package region

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
)

// BoundaryFetcher resolves the bounding box of an administrative area from a
// remote source.
type BoundaryFetcher interface {
	FetchBounds(ctx context.Context, name string) (orb.Bound, error)
}

// Boundaries serves region outlines as GeoJSON.
type Boundaries struct {
	catalog *Catalog
	fetcher BoundaryFetcher
	logger  zerolog.Logger
}

// NewBoundaries creates a boundary lookup. fetcher may be nil.
func NewBoundaries(catalog *Catalog, fetcher BoundaryFetcher, logger zerolog.Logger) *Boundaries {
	return &Boundaries{
		catalog: catalog,
		fetcher: fetcher,
		logger:  logger.With().Str("component", "region_boundaries").Logger(),
	}
}

// Lookup returns the boundary of the named region as a feature collection
// with one polygon feature, or nil when no boundary is known. Catalog
// boundaries take precedence over the remote fetcher.
func (b *Boundaries) Lookup(ctx context.Context, name string) *geojson.FeatureCollection {
	if r, ok := b.catalog.Lookup(name); ok && len(r.Boundary) >= 4 {
		ring := make(orb.Ring, len(r.Boundary))
		for i, p := range r.Boundary {
			ring[i] = orb.Point{p[0], p[1]}
		}
		return featureCollection(r.Name, orb.Polygon{ring})
	}

	if b.fetcher == nil || name == "" {
		return nil
	}

	bound, err := b.fetcher.FetchBounds(ctx, name)
	if err != nil {
		b.logger.Warn().Err(err).Str("region", name).Msg("boundary lookup failed")
		return nil
	}
	return featureCollection(name, bound.ToPolygon())
}

func featureCollection(name string, polygon orb.Polygon) *geojson.FeatureCollection {
	feature := geojson.NewFeature(polygon)
	feature.Properties["name"] = name

	fc := geojson.NewFeatureCollection()
	fc.Append(feature)
	return fc
}
