// Package voxelmap implements the hashed 3D voxel grid that backs the
// persistent world map of the odometry engine (spec section 4.2). Unlike a
// generic point cloud container, each voxel keeps a small, spatially
// de-duplicated sample of the points that have ever landed inside it: a
// bounded capacity K_max and a minimum intra-voxel spacing d_min.
package voxelmap

import (
	"math"
	"sort"
	"sync"

	"github.com/golang/geo/r3"
)

// Coords is an integer voxel key, kx,ky,kz = floor(world/voxel_size).
type Coords struct {
	I, J, K int64
}

// KeyOf computes the voxel key containing world point p at the given
// voxel size.
func KeyOf(p r3.Vector, voxelSize float64) Coords {
	return Coords{
		I: int64(math.Floor(p.X / voxelSize)),
		J: int64(math.Floor(p.Y / voxelSize)),
		K: int64(math.Floor(p.Z / voxelSize)),
	}
}

// voxel stores a bounded, ordered sequence of world-frame points.
type voxel struct {
	points []r3.Vector
}

// Map is the hashed voxel grid. Reads (SearchNeighbors) may run concurrently;
// writes (Add, Remove) take an exclusive lock, matching the concurrency
// contract of spec section 5: writes are serialized with respect to reads,
// and the map is mutated only between ICP loops.
type Map struct {
	mu        sync.RWMutex
	voxelSize float64
	kMax      int
	dMin      float64
	voxels    map[Coords]*voxel
}

// New creates an empty voxel map with the given voxel size, per-voxel point
// capacity K_max, and minimum intra-voxel spacing d_min.
func New(voxelSize float64, kMax int, dMin float64) *Map {
	return &Map{
		voxelSize: voxelSize,
		kMax:      kMax,
		dMin:      dMin,
		voxels:    make(map[Coords]*voxel),
	}
}

// Size returns the number of occupied voxels.
func (m *Map) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.voxels)
}

// Add inserts candidate points into the map in input order (deterministic for
// a given batch). A candidate is appended to its voxel only if that voxel has
// fewer than K_max points and it is farther than d_min from every point
// already stored there; otherwise it is silently rejected. Empty voxels are
// never created by a rejected insert.
func (m *Map) Add(points []r3.Vector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		key := KeyOf(p, m.voxelSize)
		v, ok := m.voxels[key]
		if !ok {
			m.voxels[key] = &voxel{points: []r3.Vector{p}}
			continue
		}
		if len(v.points) >= m.kMax {
			continue
		}
		if m.tooClose(v, p) {
			continue
		}
		v.points = append(v.points, p)
	}
}

func (m *Map) tooClose(v *voxel, p r3.Vector) bool {
	for _, q := range v.points {
		if p.Sub(q).Norm() <= m.dMin {
			return true
		}
	}
	return false
}

// Remove drops every voxel whose reference point -- by convention the first
// point ever inserted into that voxel (see design notes: centroid vs.
// first-point is an open question, first-point is cheaper and stable under
// later insertions) -- lies farther than rMax from center.
func (m *Map) Remove(center r3.Vector, rMax float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range m.voxels {
		if len(v.points) == 0 {
			delete(m.voxels, key)
			continue
		}
		if v.points[0].Sub(center).Norm() > rMax {
			delete(m.voxels, key)
		}
	}
}

type candidate struct {
	pt   r3.Vector
	dist float64
}

// SearchNeighbors returns the kReq nearest points to q, sorted by ascending
// Euclidean distance, searching the (2*nbVoxels+1)^3 voxels centered on q's
// key. It never panics on an empty or sparse map; it simply returns as many
// points as were found, which may be fewer than kReq.
func (m *Map) SearchNeighbors(q r3.Vector, nbVoxels int, kReq int) []r3.Vector {
	m.mu.RLock()
	defer m.mu.RUnlock()

	center := KeyOf(q, m.voxelSize)
	var candidates []candidate
	for di := -int64(nbVoxels); di <= int64(nbVoxels); di++ {
		for dj := -int64(nbVoxels); dj <= int64(nbVoxels); dj++ {
			for dk := -int64(nbVoxels); dk <= int64(nbVoxels); dk++ {
				key := Coords{I: center.I + di, J: center.J + dj, K: center.K + dk}
				v, ok := m.voxels[key]
				if !ok {
					continue
				}
				for _, p := range v.points {
					candidates = append(candidates, candidate{pt: p, dist: p.Sub(q).Norm()})
				}
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	if len(candidates) > kReq {
		candidates = candidates[:kReq]
	}
	out := make([]r3.Vector, len(candidates))
	for i, c := range candidates {
		out[i] = c.pt
	}
	return out
}

// VoxelCount returns, for testing invariants, the count of points stored in
// each occupied voxel.
func (m *Map) VoxelCount() map[Coords]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Coords]int, len(m.voxels))
	for k, v := range m.voxels {
		out[k] = len(v.points)
	}
	return out
}

// MinIntraVoxelDistance returns the minimum pairwise distance observed across
// all voxels that hold more than one point; used by invariant tests. Returns
// +Inf if no voxel holds more than one point.
func (m *Map) MinIntraVoxelDistance() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	min := math.Inf(1)
	for _, v := range m.voxels {
		for i := 0; i < len(v.points); i++ {
			for j := i + 1; j < len(v.points); j++ {
				d := v.points[i].Sub(v.points[j]).Norm()
				if d < min {
					min = d
				}
			}
		}
	}
	return min
}
