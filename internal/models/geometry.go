package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/hex"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// SRIDWGS84 is the only spatial reference accepted for area geometries.
const SRIDWGS84 = 4326

// Geometry wraps a go-geom Polygon or MultiPolygon.
// JSON uses GeoJSON, the database side uses EWKT for writes and WKB/EWKB for reads.
type Geometry struct {
	geom.T
}

func NewGeometry(g geom.T) Geometry {
	return Geometry{T: g}
}

// IsEmpty reports whether no geometry has been set.
func (g Geometry) IsEmpty() bool {
	return g.T == nil
}

// IsPolygonal reports whether the geometry is a Polygon or MultiPolygon.
func (g Geometry) IsPolygonal() bool {
	switch g.T.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return true
	default:
		return false
	}
}

// Polygons flattens the geometry into its member polygons.
func (g Geometry) Polygons() []*geom.Polygon {
	switch t := g.T.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}
	case *geom.MultiPolygon:
		polygons := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			polygons = append(polygons, t.Polygon(i))
		}
		return polygons
	default:
		return nil
	}
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.T == nil {
		return []byte("null"), nil
	}
	return geojson.Marshal(g.T)
}

func (g *Geometry) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		g.T = nil
		return nil
	}

	var t geom.T
	if err := geojson.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("failed to unmarshal GeoJSON: %w", err)
	}
	g.T = t
	return nil
}

// EWKT renders the geometry as "SRID=4326;POLYGON((...))" for ST_GeomFromEWKT.
func (g Geometry) EWKT() (string, error) {
	if g.T == nil {
		return "", fmt.Errorf("geometry is empty")
	}
	wktString, err := wkt.Marshal(g.T)
	if err != nil {
		return "", fmt.Errorf("failed to marshal to WKT: %w", err)
	}
	return fmt.Sprintf("SRID=%d;%s", SRIDWGS84, wktString), nil
}

// Value implements driver.Valuer. The column placeholder must be wrapped in ST_GeomFromEWKT.
func (g Geometry) Value() (driver.Value, error) {
	if g.T == nil {
		return nil, nil
	}
	return g.EWKT()
}

// Scan accepts ST_AsBinary output (WKB) or the raw hex EWKB PostGIS returns for a bare geometry column.
func (g *Geometry) Scan(value any) error {
	if value == nil {
		g.T = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan Geometry: expected []byte, got %T", value)
	}

	if t, err := wkb.Unmarshal(raw); err == nil {
		g.T = t
		return nil
	}

	decoded := make([]byte, hex.DecodedLen(len(raw)))
	if _, err := hex.Decode(decoded, raw); err != nil {
		return fmt.Errorf("failed to decode geometry bytes: %w", err)
	}
	t, err := ewkb.Unmarshal(decoded)
	if err != nil {
		return fmt.Errorf("failed to unmarshal EWKB: %w", err)
	}
	g.T = t
	return nil
}

// PolygonFromRing builds a single-ring polygon from lon/lat pairs. The ring is closed when it is not already.
func PolygonFromRing(lonLat [][2]float64) (Geometry, error) {
	coords := make([]geom.Coord, 0, len(lonLat)+1)
	for _, p := range lonLat {
		coords = append(coords, geom.Coord{p[0], p[1]})
	}
	if len(coords) > 0 {
		first, last := coords[0], coords[len(coords)-1]
		if first[0] != last[0] || first[1] != last[1] {
			coords = append(coords, geom.Coord{first[0], first[1]})
		}
	}

	polygon, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{coords})
	if err != nil {
		return Geometry{}, fmt.Errorf("failed to build polygon: %w", err)
	}
	return NewGeometry(polygon), nil
}
