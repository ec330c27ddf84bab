package ssim

import (
	"fmt"
	"image"

	"framecull/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const (
	dataRange = 255.0
	k1        = 0.01
	k2        = 0.03
)

// Index computes the mean structural similarity of two equally sized
// single-channel frames with a uniform window x window filter. Local
// variances use the sample normalization N/(N-1), and the mean is taken
// over the interior where the window fits entirely inside the frame.
func Index(prev, curr *safe.Mat, window int) (float64, error) {
	if err := safe.ValidatePair(prev, curr, "ssim"); err != nil {
		return 0, err
	}
	if !prev.SameShape(curr) {
		return 0, fmt.Errorf("ssim requires equal shapes, got %dx%d and %dx%d",
			prev.Cols(), prev.Rows(), curr.Cols(), curr.Rows())
	}
	if prev.Channels() != 1 {
		return 0, fmt.Errorf("ssim requires single-channel frames, got %d channels", prev.Channels())
	}
	if window < MinWindow || window%2 == 0 || window > min(prev.Rows(), prev.Cols()) {
		return 0, fmt.Errorf("invalid ssim window %d for %dx%d frame", window, prev.Cols(), prev.Rows())
	}

	rows, cols := prev.Rows(), prev.Cols()

	x := gocv.NewMat()
	defer x.Close()
	y := gocv.NewMat()
	defer y.Close()
	prevMat, currMat := prev.GetMat(), curr.GetMat()
	prevMat.ConvertTo(&x, gocv.MatTypeCV64F)
	currMat.ConvertTo(&y, gocv.MatTypeCV64F)

	xx := gocv.NewMat()
	defer xx.Close()
	yy := gocv.NewMat()
	defer yy.Close()
	xy := gocv.NewMat()
	defer xy.Close()
	gocv.Multiply(x, x, &xx)
	gocv.Multiply(y, y, &yy)
	gocv.Multiply(x, y, &xy)

	ksize := image.Pt(window, window)
	means := make([][]float64, 0, 5)
	for _, src := range []gocv.Mat{x, y, xx, yy, xy} {
		dst := gocv.NewMat()
		defer dst.Close()
		gocv.Blur(src, &dst, ksize)

		data, err := dst.DataPtrFloat64()
		if err != nil {
			return 0, fmt.Errorf("failed to read filtered data: %w", err)
		}
		means = append(means, data)
	}
	ux, uy, uxx, uyy, uxy := means[0], means[1], means[2], means[3], means[4]

	n := float64(window * window)
	covNorm := n / (n - 1)
	c1 := (k1 * dataRange) * (k1 * dataRange)
	c2 := (k2 * dataRange) * (k2 * dataRange)

	pad := (window - 1) / 2
	var sum float64
	count := 0
	for r := pad; r < rows-pad; r++ {
		for c := pad; c < cols-pad; c++ {
			i := r*cols + c
			vx := covNorm * (uxx[i] - ux[i]*ux[i])
			vy := covNorm * (uyy[i] - uy[i]*uy[i])
			vxy := covNorm * (uxy[i] - ux[i]*uy[i])

			a1 := 2*ux[i]*uy[i] + c1
			a2 := 2*vxy + c2
			b1 := ux[i]*ux[i] + uy[i]*uy[i] + c1
			b2 := vx + vy + c2

			sum += (a1 * a2) / (b1 * b2)
			count++
		}
	}

	return sum / float64(count), nil
}
