package services

import (
	"fmt"
	"math"

	"monitoring-service/internal/models"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/twpayne/go-geom"
)

const (
	MinAreaHectares = 0.01
	MaxAreaHectares = 1_000_000.0

	squareMetersPerHectare = 10_000.0
)

// AreaProperties are the values derived from an area geometry on every write.
type AreaProperties struct {
	AreaHectares float64
	CentroidLat  float64
	CentroidLon  float64
}

// GeometryService validates area geometries and derives their area and centroid.
// It holds no state and is safe for concurrent use.
type GeometryService struct{}

func NewGeometryService() *GeometryService {
	return &GeometryService{}
}

func (s *GeometryService) IsValid(g models.Geometry) bool {
	return s.Validate(g) == nil
}

// Validate returns a *models.ValidationError describing the first problem found.
func (s *GeometryService) Validate(g models.Geometry) error {
	if g.IsEmpty() {
		return models.NewValidationError("geometry", "geometry is required")
	}
	if !g.IsPolygonal() {
		return models.NewValidationError("geometry", "geometry must be a Polygon or MultiPolygon, got %T", g.T)
	}
	if srid := g.SRID(); srid != 0 && srid != models.SRIDWGS84 {
		return models.NewValidationError("geometry", "unsupported SRID %d, expected %d", srid, models.SRIDWGS84)
	}

	mp, err := toOrb(g)
	if err != nil {
		return err
	}
	if len(mp) == 0 {
		return models.NewValidationError("geometry", "geometry has no polygons")
	}

	for i, polygon := range mp {
		if err := validatePolygon(polygon); err != nil {
			if len(mp) > 1 {
				err.Reason = fmt.Sprintf("polygon %d: %s", i, err.Reason)
			}
			return err
		}
	}
	if err := validateMembersDisjoint(mp); err != nil {
		return err
	}

	hectares := geo.Area(mp) / squareMetersPerHectare
	if hectares < MinAreaHectares {
		return models.NewValidationError("geometry", "area %.6f ha is below the minimum of %.2f ha", hectares, MinAreaHectares)
	}
	if hectares > MaxAreaHectares {
		return models.NewValidationError("geometry", "area %.0f ha exceeds the maximum of %.0f ha", hectares, MaxAreaHectares)
	}
	return nil
}

// DeriveProperties computes geodesic area in hectares and the planar centroid of a valid geometry.
func (s *GeometryService) DeriveProperties(g models.Geometry) (AreaProperties, error) {
	if err := s.Validate(g); err != nil {
		return AreaProperties{}, err
	}

	mp, err := toOrb(g)
	if err != nil {
		return AreaProperties{}, err
	}

	centroid, _ := planar.CentroidArea(mp)
	return AreaProperties{
		AreaHectares: geo.Area(mp) / squareMetersPerHectare,
		CentroidLat:  centroid.Lat(),
		CentroidLon:  centroid.Lon(),
	}, nil
}

// ===== conversion =====

func toOrb(g models.Geometry) (orb.MultiPolygon, *models.ValidationError) {
	polygons := g.Polygons()
	mp := make(orb.MultiPolygon, 0, len(polygons))
	for _, p := range polygons {
		if p.Layout().Stride() < 2 {
			return nil, models.NewValidationError("geometry", "coordinates need at least two dimensions")
		}
		polygon := make(orb.Polygon, 0, p.NumLinearRings())
		for r := 0; r < p.NumLinearRings(); r++ {
			polygon = append(polygon, ringToOrb(p.LinearRing(r)))
		}
		mp = append(mp, polygon)
	}
	return mp, nil
}

func ringToOrb(lr *geom.LinearRing) orb.Ring {
	coords := lr.Coords()
	ring := make(orb.Ring, 0, len(coords))
	for _, c := range coords {
		ring = append(ring, orb.Point{c.X(), c.Y()})
	}
	return ring
}

// ===== topology checks =====

func validatePolygon(p orb.Polygon) *models.ValidationError {
	if len(p) == 0 {
		return models.NewValidationError("geometry", "polygon has no rings")
	}

	for r, ring := range p {
		if err := validateRing(ring); err != nil {
			if r > 0 {
				err.Reason = fmt.Sprintf("hole %d: %s", r, err.Reason)
			}
			return err
		}
	}

	shell := p[0]
	for h, hole := range p[1:] {
		if ringsCross(shell, hole) {
			return models.NewValidationError("geometry", "hole %d crosses the outer ring", h+1)
		}
		if !planar.RingContains(shell, hole[0]) {
			return models.NewValidationError("geometry", "hole %d lies outside the outer ring", h+1)
		}
	}
	return nil
}

func validateRing(ring orb.Ring) *models.ValidationError {
	if len(ring) < 4 {
		return models.NewValidationError("geometry", "ring has %d positions, at least 4 are required", len(ring))
	}
	for _, pt := range ring {
		lon, lat := pt[0], pt[1]
		if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
			return models.NewValidationError("geometry", "coordinates must be finite numbers")
		}
		if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			return models.NewValidationError("geometry", "coordinate (%g, %g) is outside WGS84 bounds", lon, lat)
		}
	}
	if !ring.Closed() {
		return models.NewValidationError("geometry", "ring is not closed")
	}
	if planar.Area(ring) == 0 {
		return models.NewValidationError("geometry", "ring is degenerate")
	}
	if ringSelfIntersects(ring) {
		return models.NewValidationError("geometry", "ring self-intersects")
	}
	return nil
}

// validateMembersDisjoint rejects multipolygon members sharing interior. A member may sit inside
// another member's hole.
func validateMembersDisjoint(mp orb.MultiPolygon) *models.ValidationError {
	for i := 0; i < len(mp); i++ {
		for j := i + 1; j < len(mp); j++ {
			if polygonsOverlap(mp[i], mp[j]) {
				return models.NewValidationError("geometry", "polygons %d and %d overlap", i, j)
			}
		}
	}
	return nil
}

func polygonsOverlap(a, b orb.Polygon) bool {
	for _, ringA := range a {
		for _, ringB := range b {
			if ringsCross(ringA, ringB) {
				return true
			}
		}
	}
	return planar.PolygonContains(a, b[0][0]) || planar.PolygonContains(b, a[0][0])
}

// ringSelfIntersects checks every pair of non-adjacent edges of a closed ring.
func ringSelfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

// ringsCross reports a proper crossing between edges of two rings. Touching at a vertex is allowed.
func ringsCross(a, b orb.Ring) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsCross(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

func orientation(p, q, r orb.Point) int {
	v := (q[1]-p[1])*(r[0]-q[0]) - (q[0]-p[0])*(r[1]-q[1])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func onSegment(p, q, r orb.Point) bool {
	return q[0] <= math.Max(p[0], r[0]) && q[0] >= math.Min(p[0], r[0]) &&
		q[1] <= math.Max(p[1], r[1]) && q[1] >= math.Min(p[1], r[1])
}

func segmentsIntersect(p1, q1, p2, q2 orb.Point) bool {
	o1 := orientation(p1, q1, p2)
	o2 := orientation(p1, q1, q2)
	o3 := orientation(p2, q2, p1)
	o4 := orientation(p2, q2, q1)

	if o1 != o2 && o3 != o4 {
		return true
	}
	return (o1 == 0 && onSegment(p1, p2, q1)) ||
		(o2 == 0 && onSegment(p1, q2, q1)) ||
		(o3 == 0 && onSegment(p2, p1, q2)) ||
		(o4 == 0 && onSegment(p2, q1, q2))
}

func segmentsCross(p1, q1, p2, q2 orb.Point) bool {
	o1 := orientation(p1, q1, p2)
	o2 := orientation(p1, q1, q2)
	o3 := orientation(p2, q2, p1)
	o4 := orientation(p2, q2, q1)
	return o1*o2 < 0 && o3*o4 < 0
}
