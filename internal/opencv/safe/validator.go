package safe

import (
	"fmt"

	"gocv.io/x/gocv"
)

func ValidateMatForOperation(mat *Mat, operation string) error {
	if mat == nil {
		return fmt.Errorf("Mat is nil for operation: %s", operation)
	}

	if !mat.IsValid() {
		return fmt.Errorf("Mat %q is invalid for operation: %s", mat.Tag(), operation)
	}

	if mat.Empty() {
		return fmt.Errorf("Mat %q is empty for operation: %s", mat.Tag(), operation)
	}

	if mat.Rows() <= 0 || mat.Cols() <= 0 {
		return fmt.Errorf("Mat has invalid dimensions %dx%d for operation: %s",
			mat.Cols(), mat.Rows(), operation)
	}

	return nil
}

// ValidatePair checks both operands of a two-frame comparison.
func ValidatePair(prev, curr *Mat, operation string) error {
	if err := ValidateMatForOperation(prev, operation); err != nil {
		return fmt.Errorf("previous frame: %w", err)
	}
	if err := ValidateMatForOperation(curr, operation); err != nil {
		return fmt.Errorf("current frame: %w", err)
	}
	return nil
}

func ValidateColorConversion(src *Mat, code gocv.ColorConversionCode) error {
	if err := ValidateMatForOperation(src, "CvtColor"); err != nil {
		return err
	}

	channels := src.Channels()

	switch code {
	case gocv.ColorBGRToGray, gocv.ColorRGBToGray:
		if channels != 3 {
			return fmt.Errorf("BGR/RGB to Gray conversion requires 3 channels, got %d", channels)
		}
	case gocv.ColorBGRAToGray:
		if channels != 4 {
			return fmt.Errorf("BGRA to Gray conversion requires 4 channels, got %d", channels)
		}
	case gocv.ColorGrayToBGR: // gocv.ColorGrayToRGB is an alias of the same value
		if channels != 1 {
			return fmt.Errorf("Gray to BGR/RGB conversion requires 1 channel, got %d", channels)
		}
	}

	return nil
}

func ValidateDimensions(width, height int, operation string) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d for operation: %s", width, height, operation)
	}

	if width > 32768 || height > 32768 {
		return fmt.Errorf("dimensions %dx%d exceed maximum size for operation: %s", width, height, operation)
	}

	return nil
}
