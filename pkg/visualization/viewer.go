package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/ChenxrC/vessel-tool/internal/models"
)

// Pixel levels for the three things a slice can show.
const (
	backgroundLevel = 0
	maskLevel       = 0x8000
	skeletonLevel   = 0xffff
)

// Viewer renders mask slices with the skeleton drawn on top, for quick
// visual checks of the segmentation and centerline inputs.
type Viewer struct {
	// mask is the segmented vessel volume
	mask *models.Mask

	// skeleton marks centerline voxels to draw over the mask
	skeleton map[models.Voxel]bool
}

// NewViewer creates a viewer over a mask with an optional skeleton overlay
func NewViewer(mask *models.Mask, skeleton []models.Voxel) *Viewer {
	members := make(map[models.Voxel]bool, len(skeleton))
	for _, v := range skeleton {
		members[v] = true
	}
	return &Viewer{mask: mask, skeleton: members}
}

// levelAt returns the pixel level of one voxel: skeleton over mask over
// background
func (v *Viewer) levelAt(x, y, z int) uint16 {
	vox := models.Voxel{X: x, Y: y, Z: z}
	if v.skeleton[vox] {
		return skeletonLevel
	}
	if v.mask.At(vox) {
		return maskLevel
	}
	return backgroundLevel
}

// ExtractSlice extracts a 2D slice of the overlay along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.mask.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.mask.Width)
		}

		img = *image.NewGray16(image.Rect(0, 0, v.mask.Depth, v.mask.Height))
		for y := 0; y < v.mask.Height; y++ {
			for z := 0; z < v.mask.Depth; z++ {
				img.SetGray16(z, y, color.Gray16{Y: v.levelAt(position, y, z)})
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.mask.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.mask.Height)
		}

		img = *image.NewGray16(image.Rect(0, 0, v.mask.Width, v.mask.Depth))
		for z := 0; z < v.mask.Depth; z++ {
			for x := 0; x < v.mask.Width; x++ {
				img.SetGray16(x, z, color.Gray16{Y: v.levelAt(x, position, z)})
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.mask.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.mask.Depth)
		}

		img = *image.NewGray16(image.Rect(0, 0, v.mask.Width, v.mask.Height))
		for y := 0; y < v.mask.Height; y++ {
			for x := 0; x < v.mask.Width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: v.levelAt(x, y, position)})
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return &img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves a sequence of slices along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.mask.Width
	case "y", "Y":
		maxPos = v.mask.Height
	case "z", "Z":
		maxPos = v.mask.Depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
