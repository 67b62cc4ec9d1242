package skeleton

import (
	"testing"

	"github.com/golang/geo/r3"

	"github.com/ChenxrC/vessel-tool/internal/models"
)

func TestComponentsSingle(t *testing.T) {
	voxels := lineVoxels(8)
	comps := Components(voxels, Connectivity26)
	if len(comps) != 1 {
		t.Fatalf("Expected 1 component, got %d", len(comps))
	}
	if len(comps[0]) != 8 {
		t.Errorf("Expected 8 voxels in the component, got %d", len(comps[0]))
	}
}

func TestComponentsTwoClusters(t *testing.T) {
	voxels := lineVoxels(6)
	for i := 0; i < 3; i++ {
		voxels = append(voxels, models.Voxel{X: 30 + i, Y: 0, Z: 0})
	}

	comps := Components(voxels, Connectivity26)
	if len(comps) != 2 {
		t.Fatalf("Expected 2 components, got %d", len(comps))
	}
	if len(comps[0]) != 6 || len(comps[1]) != 3 {
		t.Errorf("Expected sizes [6 3], got [%d %d]", len(comps[0]), len(comps[1]))
	}

	largest := LargestComponent(voxels, Connectivity26)
	if len(largest) != 6 {
		t.Errorf("Expected the largest component to hold 6 voxels, got %d", len(largest))
	}
}

func TestComponentsConnectivityMatters(t *testing.T) {
	// Two voxels touching only at a corner are one component under 26
	// connectivity and two under 6
	voxels := []models.Voxel{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 1, Z: 1},
	}
	if got := len(Components(voxels, Connectivity26)); got != 1 {
		t.Errorf("Expected 1 component under 26-connectivity, got %d", got)
	}
	if got := len(Components(voxels, Connectivity6)); got != 2 {
		t.Errorf("Expected 2 components under 6-connectivity, got %d", got)
	}
}

func TestComponentsEmpty(t *testing.T) {
	if comps := Components(nil, Connectivity26); comps != nil {
		t.Errorf("Expected nil components for empty input, got %v", comps)
	}
	if largest := LargestComponent(nil, Connectivity26); largest != nil {
		t.Errorf("Expected nil largest component for empty input, got %v", largest)
	}
}

func TestNearestVoxel(t *testing.T) {
	voxels := lineVoxels(10)

	got, err := NearestVoxel(voxels, r3.Vector{X: 7.2, Y: 0.3, Z: 0})
	if err != nil {
		t.Fatalf("NearestVoxel failed: %v", err)
	}
	if got != (models.Voxel{X: 7, Y: 0, Z: 0}) {
		t.Errorf("Expected (7,0,0), got %v", got)
	}

	// Equidistant candidates resolve to the lexicographically smallest
	got, err = NearestVoxel(voxels, r3.Vector{X: 4.5, Y: 0, Z: 0})
	if err != nil {
		t.Fatalf("NearestVoxel failed: %v", err)
	}
	if got != (models.Voxel{X: 4, Y: 0, Z: 0}) {
		t.Errorf("Expected the tie to resolve to (4,0,0), got %v", got)
	}

	if _, err := NearestVoxel(nil, r3.Vector{}); err == nil {
		t.Error("Expected an error for an empty candidate set")
	}
}

func TestCentroid(t *testing.T) {
	voxels := []models.Voxel{
		{X: 0, Y: 0, Z: 0},
		{X: 2, Y: 4, Z: 6},
	}
	got := Centroid(voxels)
	want := r3.Vector{X: 1, Y: 2, Z: 3}
	if got.Sub(want).Norm() > 1e-12 {
		t.Errorf("Expected centroid %v, got %v", want, got)
	}

	if got := Centroid(nil); got != (r3.Vector{}) {
		t.Errorf("Expected zero centroid for empty input, got %v", got)
	}
}
