package skeleton

import (
	"sort"

	"github.com/ChenxrC/vessel-tool/internal/models"
)

// Components groups the voxels into connected components under the given
// connectivity, largest component first. Seeds are visited in lexicographic
// order, so equally sized components come out in a stable order.
func Components(voxels []models.Voxel, conn Connectivity) [][]models.Voxel {
	if !conn.Valid() {
		conn = Connectivity26
	}
	members := make(map[models.Voxel]struct{}, len(voxels))
	for _, v := range voxels {
		members[v] = struct{}{}
	}

	seeds := make([]models.Voxel, 0, len(members))
	for v := range members {
		seeds = append(seeds, v)
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].Less(seeds[j]) })

	offsets := conn.Offsets()
	visited := make(map[models.Voxel]struct{}, len(members))
	var comps [][]models.Voxel
	for _, seed := range seeds {
		if _, ok := visited[seed]; ok {
			continue
		}
		visited[seed] = struct{}{}
		comp := []models.Voxel{seed}
		queue := []models.Voxel{seed}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, off := range offsets {
				next := models.Voxel{X: cur.X + off.X, Y: cur.Y + off.Y, Z: cur.Z + off.Z}
				if _, ok := members[next]; !ok {
					continue
				}
				if _, ok := visited[next]; ok {
					continue
				}
				visited[next] = struct{}{}
				comp = append(comp, next)
				queue = append(queue, next)
			}
		}
		comps = append(comps, comp)
	}

	sort.SliceStable(comps, func(i, j int) bool { return len(comps[i]) > len(comps[j]) })
	return comps
}

// LargestComponent returns the biggest connected component of the voxel set.
func LargestComponent(voxels []models.Voxel, conn Connectivity) []models.Voxel {
	comps := Components(voxels, conn)
	if len(comps) == 0 {
		return nil
	}
	return comps[0]
}
