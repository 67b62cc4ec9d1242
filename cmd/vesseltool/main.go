package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r3"

	"github.com/ChenxrC/vessel-tool/pkg/config"
	"github.com/ChenxrC/vessel-tool/pkg/pipeline"
	"github.com/ChenxrC/vessel-tool/pkg/visualization"
)

func main() {
	// Parse command line arguments
	skeletonPath := flag.String("skeleton", "", "Text file with one skeleton voxel per line as 'x y z'")
	maskDir := flag.String("mask", "", "Directory containing segmentation mask slices as JPG images (optional)")
	outputFile := flag.String("output", "output.stl", "Output STL filename")
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	writeConfig := flag.String("write-config", "", "Write a default configuration file to the given path and exit")
	treeJSON := flag.String("tree-json", "", "Save the optimized branch tree as JSON to the given path")
	mergeSTL := flag.String("merge", "", "Comma-separated STL files to merge into the output")

	cores := flag.Int("cores", 0, "Number of CPU cores to use (default: from config)")
	connectivity := flag.Int("connectivity", 0, "Voxel neighborhood for skeleton walking: 6, 18 or 26")
	largestComponent := flag.Bool("largest-component", true, "Keep only the largest connected skeleton component")
	minPoints := flag.Int("min-points", 0, "Smallest point count a side branch needs to survive optimization")
	minLength := flag.Float64("min-length", 0, "Smallest arc length a side branch needs to survive optimization")

	maxRadius := flag.Float64("max-radius", 0, "Tube radius at the root's proximal end")
	minRadius := flag.Float64("min-radius", 0, "Tube radius at every distal tip")
	decay := flag.Float64("decay", 0, "How fast the radius shrinks toward the tips")
	sides := flag.Int("sides", 0, "Vertex count of each tube ring")

	smoothSigma := flag.Float64("smooth-sigma", 0, "Gaussian smoothing width for branch curves in voxel units")
	densify := flag.Int("densify", 0, "Midpoint insertion rounds before smoothing")
	resample := flag.Float64("resample", 0, "Curve sample count relative to the branch point count")

	rootX := flag.Float64("root-x", 0, "Root anchor X in voxel units (default: skeleton centroid)")
	rootY := flag.Float64("root-y", 0, "Root anchor Y in voxel units")
	rootZ := flag.Float64("root-z", 0, "Root anchor Z in voxel units")

	spacing := flag.String("spacing", "", "Physical voxel size as 'x,y,z' in mm (default: 1,1,1)")
	origin := flag.String("origin", "", "Physical position of voxel (0,0,0) as 'x,y,z' in mm")

	showStats := flag.Bool("stats", true, "Print branch tree statistics after processing")
	extractSlices := flag.Bool("extract-slices", false, "Extract and save mask slices with the skeleton overlaid")
	slicesDir := flag.String("slices-dir", "skeleton_slices", "Directory to save extracted slices")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save intermediary results during processing")
	intermediaryDir := flag.String("intermediary-dir", "", "Directory to save intermediary results")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config file: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *writeConfig)
		return
	}

	// Validate inputs
	if *skeletonPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Load configuration and let explicitly set flags override it
	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	rootAnchorSet := false
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cores":
			cfg.Processing.NumCores = *cores
		case "connectivity":
			cfg.Processing.Connectivity = *connectivity
		case "largest-component":
			cfg.Processing.RetainLargestComponent = *largestComponent
		case "min-points":
			cfg.Processing.MinBranchPoints = *minPoints
		case "min-length":
			cfg.Processing.MinBranchLength = *minLength
		case "max-radius":
			cfg.Radius.Max = *maxRadius
		case "min-radius":
			cfg.Radius.Min = *minRadius
		case "decay":
			cfg.Radius.Decay = *decay
		case "sides":
			cfg.Radius.Sides = *sides
		case "smooth-sigma":
			cfg.Curve.SmoothSigma = *smoothSigma
		case "densify":
			cfg.Curve.DensifyPasses = *densify
		case "resample":
			cfg.Curve.ResampleFactor = *resample
		case "save-intermediary":
			cfg.Output.SaveIntermediaryResults = *saveIntermediary
		case "intermediary-dir":
			cfg.Output.IntermediaryDir = *intermediaryDir
		case "root-x", "root-y", "root-z":
			rootAnchorSet = true
		}
	})

	var rootAnchor *r3.Vector
	if rootAnchorSet {
		rootAnchor = &r3.Vector{X: *rootX, Y: *rootY, Z: *rootZ}
	}

	spacingVec, err := parseTriple(*spacing)
	if err != nil {
		log.Fatalf("Invalid -spacing value: %v", err)
	}
	originVec, err := parseTriple(*origin)
	if err != nil {
		log.Fatalf("Invalid -origin value: %v", err)
	}

	var mergeFiles []string
	for _, path := range strings.Split(*mergeSTL, ",") {
		if path = strings.TrimSpace(path); path != "" {
			mergeFiles = append(mergeFiles, path)
		}
	}

	fmt.Println("================================")
	fmt.Println("VESSEL SKELETON TO 3D TUBE MESH")
	fmt.Println("================================")

	params := &pipeline.Params{
		MaskDir:                 *maskDir,
		SkeletonPath:            *skeletonPath,
		OutputFile:              *outputFile,
		TreeJSONFile:            *treeJSON,
		MergeSTLFiles:           mergeFiles,
		RootAnchor:              rootAnchor,
		NumCores:                cfg.Processing.NumCores,
		Connectivity:            cfg.Processing.Connectivity,
		RetainLargestComponent:  cfg.Processing.RetainLargestComponent,
		MinBranchPoints:         cfg.Processing.MinBranchPoints,
		MinBranchLength:         cfg.Processing.MinBranchLength,
		MaxRadius:               cfg.Radius.Max,
		MinRadius:               cfg.Radius.Min,
		RadiusDecay:             cfg.Radius.Decay,
		Sides:                   cfg.Radius.Sides,
		SmoothSigma:             cfg.Curve.SmoothSigma,
		DensifyPasses:           cfg.Curve.DensifyPasses,
		ResampleFactor:          cfg.Curve.ResampleFactor,
		Spacing:                 spacingVec,
		Origin:                  originVec,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         cfg.Output.IntermediaryDir,
	}

	p := pipeline.NewPipeline(params)
	if !cfg.Output.Verbose {
		// Quiet mode drops the progress bar but keeps step output.
		p.SetProgressCallback(func(completed, total int, message string) {})
	}

	fmt.Println("Starting vessel mesh generation...")
	startTime := time.Now()
	if err := p.Process(); err != nil {
		log.Fatalf("Processing failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("\nMesh generation completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output 3D model saved to: %s\n", *outputFile)

	if *showStats {
		stats := p.Stats()
		fmt.Printf("\nBranch tree statistics:\n")
		fmt.Printf("=======================\n")
		fmt.Printf("Total branches: %d\n", stats.TotalBranches)
		fmt.Printf("Total centerline points: %d\n", stats.TotalPoints)
		fmt.Printf("Max tree depth: %d\n", stats.MaxDepth)
		fmt.Printf("Max root-to-leaf length: %.2f\n", stats.MaxLength)
		fmt.Printf("Average points per branch: %.1f\n", stats.AvgBranchPoints)
		if skipped := len(p.Skipped()); skipped > 0 {
			fmt.Printf("Skipped branches: %d\n", skipped)
		}
	}

	// Extract and save annotated slices if requested
	if *extractSlices {
		if p.Mask() == nil {
			log.Printf("Warning: -extract-slices needs a mask directory, skipping")
		} else {
			fmt.Println("\nExtracting skeleton overlay slices along all axes...")

			viewer := visualization.NewViewer(p.Mask(), p.Skeleton())

			for _, axis := range []string{"x", "y", "z"} {
				axisDir := filepath.Join(*slicesDir, axis)
				fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)

				if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
					log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
				}
			}

			fmt.Println("Slice extraction completed!")
		}
	}

	// Print information about intermediary results if saved
	if cfg.Output.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", cfg.Output.IntermediaryDir)
		fmt.Println("The following stages were saved:")
		fmt.Println("- 01_skeleton_overlay: Skeleton voxels drawn over the mask slices")
		fmt.Println("- 02_raw_tree.json: Branch tree as traced from the skeleton")
		fmt.Println("- 03_optimized_tree.json: Branch tree after optimization")
	}
}

// parseTriple parses an 'x,y,z' float triple. An empty string parses to the
// zero triple.
func parseTriple(s string) ([3]float64, error) {
	var out [3]float64
	if s == "" {
		return out, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("expected 3 comma-separated values, got %d", len(parts))
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}
