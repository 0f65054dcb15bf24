package voxelmap

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestAddRespectsCapacityAndSpacing(t *testing.T) {
	m := New(1.0, 3, 0.2)
	pts := []r3.Vector{
		{X: 0.1, Y: 0.1, Z: 0.1},
		{X: 0.11, Y: 0.1, Z: 0.1}, // too close, rejected
		{X: 0.5, Y: 0.1, Z: 0.1},
		{X: 0.9, Y: 0.9, Z: 0.9},
		{X: 0.05, Y: 0.05, Z: 0.9}, // 4th point, rejected: voxel already at K_max
	}
	m.Add(pts)

	counts := m.VoxelCount()
	test.That(t, len(counts), test.ShouldEqual, 1)
	for _, c := range counts {
		test.That(t, c, test.ShouldEqual, 3)
	}
	test.That(t, m.MinIntraVoxelDistance() >= 0.2, test.ShouldBeTrue)
}

func TestAddIsIdempotent(t *testing.T) {
	m := New(1.0, 10, 0.1)
	pts := []r3.Vector{{X: 1, Y: 1, Z: 1}}
	m.Add(pts)
	first := m.VoxelCount()
	m.Add(pts)
	second := m.VoxelCount()
	test.That(t, second, test.ShouldResemble, first)
}

func TestRemoveDropsFarVoxels(t *testing.T) {
	m := New(1.0, 10, 0.01)
	m.Add([]r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 50, Y: 0, Z: 0}})
	test.That(t, m.Size(), test.ShouldEqual, 2)

	m.Remove(r3.Vector{}, 10)
	test.That(t, m.Size(), test.ShouldEqual, 1)

	// idempotent
	m.Remove(r3.Vector{}, 10)
	test.That(t, m.Size(), test.ShouldEqual, 1)
}

func TestSearchNeighborsEmptyMap(t *testing.T) {
	m := New(1.0, 10, 0.01)
	got := m.SearchNeighbors(r3.Vector{}, 2, 5)
	test.That(t, len(got), test.ShouldEqual, 0)
}

func TestSearchNeighborsReturnsNearestSorted(t *testing.T) {
	m := New(1.0, 10, 0.01)
	m.Add([]r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 0.5, Y: 0, Z: 0},
		{X: 3, Y: 0, Z: 0},
		{X: -3, Y: 0, Z: 0},
	})
	got := m.SearchNeighbors(r3.Vector{X: 0.2}, 1, 2)
	test.That(t, len(got), test.ShouldEqual, 2)
	test.That(t, got[0].X, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, got[1].X, test.ShouldAlmostEqual, 0.5, 1e-9)
}
