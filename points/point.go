// Package points defines the per-sweep point record and the preprocessing
// steps applied to it before association: deterministic voxel subsampling
// and slerp-based initial motion de-skew (spec section 4.3).
package points

import (
	"sort"

	"github.com/golang/geo/r3"
)

// Point is a single LiDAR return. Raw is immutable after ingest; World is
// recomputed whenever the trajectory estimate changes.
type Point struct {
	Raw       r3.Vector // sensor-frame position
	World     r3.Vector // world-frame position, derived
	Timestamp float64   // absolute time, seconds
	Alpha     float64   // in-sweep fraction, [0,1]
	Beam      int       // beam id
	Intensity float64   // optional per-point scalar (intensity or radial velocity)
}

// voxelKey buckets a raw point by its integer voxel coordinate.
type voxelKey struct {
	I, J, K int64
}

func keyOf(p r3.Vector, size float64) voxelKey {
	return voxelKey{
		I: ifloor(p.X / size),
		J: ifloor(p.Y / size),
		K: ifloor(p.Z / size),
	}
}

func ifloor(v float64) int64 {
	i := int64(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return i
}

// VoxelSubsample partitions points by integer raw-frame voxel key and emits
// one point per non-empty voxel: the first point encountered in input order.
// This is the one fixed selection rule the spec leaves open (design notes,
// open question (a)) -- first-point-wins keeps the operation a single linear
// pass with no auxiliary statistics.
func VoxelSubsample(pts []Point, size float64) []Point {
	seen := make(map[voxelKey]bool, len(pts))
	out := make([]Point, 0, len(pts))
	for _, p := range pts {
		k := keyOf(p.Raw, size)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}

// SortByBeamThenTime establishes the pinned reduction order the concurrency
// model requires when aggregating per-point cost terms deterministically
// (spec section 5): sort by beam id, then by timestamp.
func SortByBeamThenTime(pts []Point) {
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].Beam != pts[j].Beam {
			return pts[i].Beam < pts[j].Beam
		}
		return pts[i].Timestamp < pts[j].Timestamp
	})
}
