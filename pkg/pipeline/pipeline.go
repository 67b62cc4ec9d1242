// Package pipeline wires the vessel reconstruction stages together: it loads
// a segmentation mask and its centerline skeleton, labels the skeleton from a
// root voxel, traces and optimizes the branch tree, sweeps a radius-tapered
// tube mesh along the fitted branch curves and saves the result as binary STL.
package pipeline

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r3"

	"github.com/ChenxrC/vessel-tool/internal/models"
	"github.com/ChenxrC/vessel-tool/pkg/curve"
	"github.com/ChenxrC/vessel-tool/pkg/skeleton"
	"github.com/ChenxrC/vessel-tool/pkg/stl"
	"github.com/ChenxrC/vessel-tool/pkg/tree"
	"github.com/ChenxrC/vessel-tool/pkg/tubemesh"
	"github.com/ChenxrC/vessel-tool/pkg/visualization"
)

// ProgressCallback is a function that reports progress during mesh generation
type ProgressCallback func(completed, total int, message string)

// Params holds the pipeline configuration.
type Params struct {
	// MaskDir is the directory containing segmentation mask slices in JPEG
	// format, ordered by the numeric part of their filenames. Optional: the
	// pipeline can run from a skeleton alone.
	MaskDir string

	// SkeletonPath is a text file with one centerline voxel per line as
	// whitespace-separated x y z integers; # starts a comment.
	SkeletonPath string

	// OutputFile is the path where the tube mesh is saved in STL format.
	OutputFile string

	// TreeJSONFile optionally saves the optimized branch tree as JSON.
	TreeJSONFile string

	// MergeSTLFiles are extra STL files whose triangles are appended to the
	// output mesh.
	MergeSTLFiles []string

	// RootAnchor is a voxel-space hint for picking the root: the skeleton
	// voxel nearest to it becomes the root. Nil means the skeleton centroid.
	RootAnchor *r3.Vector

	// NumCores specifies how many CPU cores to use for parallel processing.
	NumCores int

	// Connectivity is the voxel neighborhood used when walking the
	// skeleton: 6, 18 or 26.
	Connectivity int

	// RetainLargestComponent keeps only the biggest connected piece of the
	// skeleton and drops stray voxels.
	RetainLargestComponent bool

	// MinBranchPoints and MinBranchLength are the tree optimization
	// thresholds; side branches below either one are merged away.
	MinBranchPoints int
	MinBranchLength float64

	// MaxRadius, MinRadius and RadiusDecay shape the tube taper.
	MaxRadius   float64
	MinRadius   float64
	RadiusDecay float64

	// Sides is the vertex count of each tube ring.
	Sides int

	// SmoothSigma, DensifyPasses and ResampleFactor control branch curve
	// fitting.
	SmoothSigma    float64
	DensifyPasses  int
	ResampleFactor float64

	// Spacing is the physical voxel size per axis; zero means unit voxels.
	Spacing [3]float64

	// Origin is the physical position of voxel (0, 0, 0).
	Origin [3]float64

	// SaveIntermediaryResults determines whether to save intermediary
	// processing results.
	SaveIntermediaryResults bool

	// IntermediaryDir is the directory where intermediary results will be
	// saved. Only used when SaveIntermediaryResults is true.
	IntermediaryDir string
}

// Pipeline turns a segmented vessel mask and its centerline skeleton into a
// tapered tube mesh.
type Pipeline struct {
	// params stores the pipeline configuration
	params *Params

	// mask is the loaded segmentation volume, nil when MaskDir is empty
	mask *models.Mask

	// voxels holds the skeleton centerline voxels
	voxels []models.Voxel

	// root is the selected root voxel
	root models.Voxel

	// branches is the traced and optimized branch tree
	branches *tree.Branch

	// stats summarizes the optimized tree
	stats tree.Stats

	// mesh is the generated tube mesh
	mesh *tubemesh.Mesh

	// skipped records branches left out of the mesh
	skipped []tubemesh.SkippedBranch

	progressCallback ProgressCallback
	startTime        time.Time
}

// NewPipeline creates a pipeline with the provided parameters.
func NewPipeline(params *Params) *Pipeline {
	return &Pipeline{params: params}
}

// Tree returns the optimized branch tree once Process has run.
func (p *Pipeline) Tree() *tree.Branch { return p.branches }

// Stats returns the tree summary once Process has run.
func (p *Pipeline) Stats() tree.Stats { return p.stats }

// Mesh returns the generated tube mesh once Process has run.
func (p *Pipeline) Mesh() *tubemesh.Mesh { return p.mesh }

// Skipped returns the branches left out of the mesh.
func (p *Pipeline) Skipped() []tubemesh.SkippedBranch { return p.skipped }

// Skeleton returns the loaded centerline voxels.
func (p *Pipeline) Skeleton() []models.Voxel { return p.voxels }

// Mask returns the loaded segmentation mask, or nil without one.
func (p *Pipeline) Mask() *models.Mask { return p.mask }

// Root returns the selected root voxel.
func (p *Pipeline) Root() models.Voxel { return p.root }

// Process runs the complete skeleton-to-mesh pipeline
func (p *Pipeline) Process() error {
	p.startTime = time.Now()

	// An unusable radius policy fails the run before any work starts.
	if err := p.radiusPolicy().Validate(); err != nil {
		return err
	}

	// Create intermediary directory if needed
	if p.params.SaveIntermediaryResults {
		if err := os.MkdirAll(p.params.IntermediaryDir, 0755); err != nil {
			return fmt.Errorf("failed to create intermediary directory: %v", err)
		}
	}

	// Step 1: Load the segmentation mask
	fmt.Println("Step 1: Loading mask slices...")
	if p.params.MaskDir == "" {
		fmt.Println("No mask directory provided, skipping mask load")
	} else if err := p.loadMask(); err != nil {
		return fmt.Errorf("failed to load mask: %v", err)
	}

	// Step 2: Load the skeleton voxels
	fmt.Println("Step 2: Loading skeleton voxels...")
	if err := p.loadSkeleton(); err != nil {
		return fmt.Errorf("failed to load skeleton: %v", err)
	}

	// Save the skeleton drawn over the mask
	if p.params.SaveIntermediaryResults && p.mask != nil {
		fmt.Println("Saving skeleton overlay slices...")
		viewer := visualization.NewViewer(p.mask, p.voxels)
		overlayDir := filepath.Join(p.params.IntermediaryDir, "01_skeleton_overlay")
		if err := viewer.SaveSliceSequence("z", overlayDir); err != nil {
			fmt.Printf("Warning: Failed to save skeleton overlay: %v\n", err)
		}
	}

	// Step 3: Label every skeleton voxel with its distance from the root
	fmt.Println("Step 3: Labeling skeleton grades from the root...")
	grades, err := p.labelGrades()
	if err != nil {
		return fmt.Errorf("failed to label skeleton: %v", err)
	}

	// Step 4: Trace the branch tree along ascending grades
	fmt.Println("Step 4: Tracing the branch tree...")
	p.branches, err = tree.Build(grades)
	if err != nil {
		return fmt.Errorf("failed to build tree: %v", err)
	}
	fmt.Printf("Traced %d branches covering %d voxels\n",
		p.branches.BranchCount(), p.branches.PointCount())

	if p.params.SaveIntermediaryResults {
		rawPath := filepath.Join(p.params.IntermediaryDir, "02_raw_tree.json")
		if err := tree.SaveJSON(rawPath, p.branches); err != nil {
			fmt.Printf("Warning: Failed to save raw tree: %v\n", err)
		}
	}

	// Step 5: Merge insignificant side branches and relabel the tree
	fmt.Println("Step 5: Optimizing the tree...")
	p.branches = tree.Optimize(p.branches, tree.OptimizeOptions{
		MinPoints: p.params.MinBranchPoints,
		MinLength: p.params.MinBranchLength,
	})
	p.stats = tree.Summarize(p.branches)
	fmt.Printf("Optimized tree: %d branches, max depth %d, max length %.1f\n",
		p.stats.TotalBranches, p.stats.MaxDepth, p.stats.MaxLength)

	if p.params.SaveIntermediaryResults {
		optPath := filepath.Join(p.params.IntermediaryDir, "03_optimized_tree.json")
		if err := tree.SaveJSON(optPath, p.branches); err != nil {
			fmt.Printf("Warning: Failed to save optimized tree: %v\n", err)
		}
	}

	// Step 6: Fit branch curves and sweep the tube mesh
	fmt.Println("Step 6: Generating the tube mesh...")
	if err := p.buildMesh(); err != nil {
		return fmt.Errorf("failed to generate mesh: %v", err)
	}
	for _, s := range p.skipped {
		fmt.Printf("Warning: skipped branch of %d points from (%d, %d, %d): %s\n",
			s.Points, s.First.X, s.First.Y, s.First.Z, s.Reason)
	}

	// Step 7: Map the mesh into physical space and save it
	fmt.Println("Step 7: Saving the mesh...")
	if err := p.saveMesh(); err != nil {
		return fmt.Errorf("failed to save mesh: %v", err)
	}

	return nil
}

func (p *Pipeline) radiusPolicy() tubemesh.RadiusPolicy {
	return tubemesh.RadiusPolicy{
		MaxRadius: p.params.MaxRadius,
		MinRadius: p.params.MinRadius,
		Decay:     p.params.RadiusDecay,
	}
}

// loadMask loads and sorts the mask slices from the configured directory.
// Files are ordered by the numeric part of their filenames so slice 7 sorts
// before slice 10, and every pixel brighter than half scale becomes a mask
// voxel.
func (p *Pipeline) loadMask() error {
	entries, err := os.ReadDir(p.params.MaskDir)
	if err != nil {
		return err
	}

	// Filter and sort JPG files
	var imageFiles []string
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".jpg" || ext == ".jpeg" {
			imageFiles = append(imageFiles, entry.Name())
		}
	}
	if len(imageFiles) == 0 {
		return fmt.Errorf("no JPG images found in mask directory")
	}
	sort.Slice(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	var width, height int
	var mask *models.Mask
	for z, filename := range imageFiles {
		img, err := loadImage(filepath.Join(p.params.MaskDir, filename))
		if err != nil {
			return fmt.Errorf("failed to load image %s: %v", filename, err)
		}

		bounds := img.Bounds()
		if mask == nil {
			width = bounds.Dx()
			height = bounds.Dy()
			mask = models.NewMask(width, height, len(imageFiles))
		} else if bounds.Dx() != width || bounds.Dy() != height {
			return fmt.Errorf("slice %s is %dx%d, expected %dx%d",
				filename, bounds.Dx(), bounds.Dy(), width, height)
		}

		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				if r > 0x7fff {
					mask.Set(models.Voxel{X: x, Y: y, Z: z}, true)
				}
			}
		}
	}

	mask.Spacing = p.spacing()
	mask.Origin = p.params.Origin
	p.mask = mask

	fmt.Printf("Loaded %d mask slices with dimensions %dx%d\n",
		mask.Depth, mask.Width, mask.Height)
	return nil
}

// loadSkeleton reads the centerline voxels, drops duplicates, checks them
// against the mask and optionally keeps only the largest connected
// component.
func (p *Pipeline) loadSkeleton() error {
	data, err := os.ReadFile(p.params.SkeletonPath)
	if err != nil {
		return err
	}

	seen := make(map[models.Voxel]bool)
	var voxels []models.Voxel
	outsideMask := 0
	for lineNo, line := range strings.Split(string(data), "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return fmt.Errorf("skeleton line %d: expected 3 coordinates, got %d", lineNo+1, len(fields))
		}
		var coords [3]int
		for i, field := range fields {
			v, err := strconv.Atoi(field)
			if err != nil {
				return fmt.Errorf("skeleton line %d: %v", lineNo+1, err)
			}
			coords[i] = v
		}
		vox := models.Voxel{X: coords[0], Y: coords[1], Z: coords[2]}
		if seen[vox] {
			continue
		}
		seen[vox] = true

		if p.mask != nil {
			if !p.mask.InBounds(vox) {
				return fmt.Errorf("skeleton line %d: voxel (%d, %d, %d) outside the %dx%dx%d mask",
					lineNo+1, vox.X, vox.Y, vox.Z, p.mask.Width, p.mask.Height, p.mask.Depth)
			}
			if !p.mask.At(vox) {
				outsideMask++
			}
		}
		voxels = append(voxels, vox)
	}
	if len(voxels) == 0 {
		return fmt.Errorf("no voxels in skeleton file")
	}
	if outsideMask > 0 {
		fmt.Printf("Warning: %d skeleton voxels lie outside the segmentation\n", outsideMask)
	}

	if p.params.RetainLargestComponent {
		kept := skeleton.LargestComponent(voxels, p.connectivity())
		if len(kept) < len(voxels) {
			fmt.Printf("Kept largest connected component with %d of %d voxels\n",
				len(kept), len(voxels))
		}
		voxels = kept
	}

	p.voxels = voxels
	fmt.Printf("Loaded %d skeleton voxels\n", len(p.voxels))
	return nil
}

// labelGrades picks the root voxel and labels every skeleton voxel with its
// hop distance from it.
func (p *Pipeline) labelGrades() (*skeleton.Grades, error) {
	anchor := skeleton.Centroid(p.voxels)
	if p.params.RootAnchor != nil {
		anchor = *p.params.RootAnchor
	}
	rootVox, err := skeleton.NearestVoxel(p.voxels, anchor)
	if err != nil {
		return nil, err
	}
	p.root = rootVox
	fmt.Printf("Selected root voxel (%d, %d, %d)\n", rootVox.X, rootVox.Y, rootVox.Z)

	return skeleton.NewLabeler(p.connectivity()).Label(p.voxels, rootVox)
}

// buildMesh fits every branch curve and sweeps the tube mesh, reporting
// per-branch progress.
func (p *Pipeline) buildMesh() error {
	fitter := &curve.Fitter{
		SmoothSigma:    p.params.SmoothSigma,
		DensifyPasses:  p.params.DensifyPasses,
		ResampleFactor: p.params.ResampleFactor,
	}
	builder, err := tubemesh.NewBuilder(p.radiusPolicy(), fitter)
	if err != nil {
		return err
	}
	if p.params.Sides > 0 {
		builder.Sides = p.params.Sides
	}
	if p.params.NumCores > 0 {
		builder.Workers = p.params.NumCores
	}
	builder.Progress = func(completed, total int) {
		p.reportProgress(completed, total, "")
	}

	p.mesh, p.skipped, err = builder.Build(p.branches)
	return err
}

// saveMesh maps the mesh into physical coordinates, merges any extra STL
// files and writes the outputs.
func (p *Pipeline) saveMesh() error {
	p.mesh.Transform(p.physicalSpace().ToPhysical)

	triangles := stl.FromMesh(p.mesh)
	for _, path := range p.params.MergeSTLFiles {
		extra, err := stl.LoadFromSTL(path)
		if err != nil {
			return fmt.Errorf("failed to merge STL file %s: %v", path, err)
		}
		fmt.Printf("Merged %d triangles from %s\n", len(extra), path)
		triangles = append(triangles, extra...)
	}

	if err := stl.SaveToSTL(p.params.OutputFile, triangles); err != nil {
		return err
	}
	fmt.Printf("Saved %d triangles to %s\n", len(triangles), p.params.OutputFile)

	if p.params.TreeJSONFile != "" {
		if err := tree.SaveJSON(p.params.TreeJSONFile, p.branches); err != nil {
			return fmt.Errorf("failed to save tree JSON: %v", err)
		}
		fmt.Printf("Saved branch tree to %s\n", p.params.TreeJSONFile)
	}
	return nil
}

// physicalSpace returns the voxel-to-physical transform carrier: the loaded
// mask when there is one, otherwise a bare transform from the configured
// spacing and origin.
func (p *Pipeline) physicalSpace() *models.Mask {
	if p.mask != nil {
		return p.mask
	}
	space := models.NewMask(0, 0, 0)
	space.Spacing = p.spacing()
	space.Origin = p.params.Origin
	return space
}

func (p *Pipeline) spacing() [3]float64 {
	if p.params.Spacing == ([3]float64{}) {
		return [3]float64{1, 1, 1}
	}
	return p.params.Spacing
}

func (p *Pipeline) connectivity() skeleton.Connectivity {
	return skeleton.Connectivity(p.params.Connectivity)
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := jpeg.Decode(file)
	if err != nil {
		return nil, err
	}

	return img, nil
}

// SetProgressCallback sets a callback function to report progress during mesh
// generation. The callback receives the number of completed items, the total
// number of items, and a message string. If the message is not empty, it
// should be displayed to the user. If the message is empty, the callback
// should update a progress indicator.
func (p *Pipeline) SetProgressCallback(callback ProgressCallback) {
	p.progressCallback = callback
}

// reportProgress calls the progress callback if set, otherwise prints to stdout
func (p *Pipeline) reportProgress(completed, total int, message string) {
	if p.progressCallback != nil {
		p.progressCallback(completed, total, message)
		return
	}

	if message != "" && total == 0 {
		// This is just an informational message, not a progress update
		fmt.Println(message)
		return
	}
	if total <= 0 {
		return
	}
	percentage := float64(completed) / float64(total) * 100

	// Create a visual progress bar
	width := 40 // Width of the progress bar
	numBars := int(percentage / 100 * float64(width))

	progressBar := "["
	for i := 0; i < width; i++ {
		if i < numBars {
			progressBar += "█" // Solid block for completed portions
		} else if i == numBars {
			progressBar += "▓" // Lighter block for current position
		} else {
			progressBar += "░" // Light block for remaining portions
		}
	}
	progressBar += "]"

	// Calculate elapsed time and estimated time remaining
	elapsedStr := ""
	remainingStr := ""
	if completed > 0 && !p.startTime.IsZero() {
		elapsed := time.Since(p.startTime)
		elapsedStr = fmt.Sprintf("%.1fs", elapsed.Seconds())

		if completed < total {
			timePerUnit := elapsed.Seconds() / float64(completed)
			remaining := timePerUnit * float64(total-completed)
			if remaining < 60 {
				remainingStr = fmt.Sprintf("%.1fs", remaining)
			} else if remaining < 3600 {
				remainingStr = fmt.Sprintf("%.1fm", remaining/60)
			} else {
				remainingStr = fmt.Sprintf("%.1fh", remaining/3600)
			}
		} else {
			remainingStr = "0s"
		}
	}

	statusInfo := ""
	if message != "" {
		statusInfo = " | " + message
	}

	if elapsedStr != "" && remainingStr != "" {
		fmt.Printf("\r%s %.1f%% (%d/%d) [%s elapsed | %s remaining%s]",
			progressBar, percentage, completed, total, elapsedStr, remainingStr, statusInfo)
	} else {
		fmt.Printf("\r%s %.1f%% (%d/%d)%s", progressBar, percentage, completed, total, statusInfo)
	}

	if completed >= total {
		fmt.Println()
	}
}
