package vectorize

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"
)

// CRS84 is the legacy GeoJSON CRS member naming WGS84 lon/lat. RFC 7946
// made this the implicit default; writing it keeps the collections
// self-describing for consumers that still look for it.
var CRS84 = map[string]interface{}{
	"type": "name",
	"properties": map[string]interface{}{
		"name": "urn:ogc:def:crs:OGC:1.3:CRS84",
	},
}

// ToFeatureCollection wraps a multipolygon in a single-feature GeoJSON
// collection. An empty multipolygon produces a collection with zero
// features: the explicit "nothing qualified" result.
func ToFeatureCollection(mp orb.MultiPolygon, props map[string]interface{}) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{"crs": CRS84}
	if len(mp) == 0 {
		return fc
	}

	f := geojson.NewFeature(mp)
	for k, v := range props {
		f.Properties[k] = v
	}
	fc.Append(f)
	return fc
}

// Encode serialises a feature collection as GeoJSON.
func Encode(fc *geojson.FeatureCollection) ([]byte, error) {
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}
	return data, nil
}

// Decode parses a GeoJSON feature collection.
func Decode(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}
	return fc, nil
}

// ClipCollection clips every feature to the bounding box, keeping the
// source CRS. Features falling entirely outside the box are dropped;
// clipping to an empty result is valid.
func ClipCollection(fc *geojson.FeatureCollection, b orb.Bound) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	out.ExtraMembers = fc.ExtraMembers
	for _, f := range fc.Features {
		clipped := clip.Geometry(b, f.Geometry)
		if clipped == nil {
			continue
		}
		nf := geojson.NewFeature(clipped)
		nf.Properties = f.Properties.Clone()
		out.Append(nf)
	}
	return out
}

// CollectPolygons flattens a feature collection's polygonal geometries
// into one multipolygon, for rendering overlays.
func CollectPolygons(fc *geojson.FeatureCollection) orb.MultiPolygon {
	var mp orb.MultiPolygon
	if fc == nil {
		return mp
	}
	for _, f := range fc.Features {
		switch geom := f.Geometry.(type) {
		case orb.Polygon:
			mp = append(mp, geom)
		case orb.MultiPolygon:
			mp = append(mp, geom...)
		}
	}
	return mp
}
