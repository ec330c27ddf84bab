package framediff

import (
	"fmt"

	"framecull/internal/models"
	"framecull/internal/opencv/safe"

	"gocv.io/x/gocv"
)

type Detector struct {
	params models.FrameDiffParams
}

func NewDetector(params models.FrameDiffParams) *Detector {
	params.BlurSize = models.NormalizeBlurSize(params.BlurSize)
	return &Detector{params: params}
}

func (d *Detector) Kind() models.AlgorithmKind {
	return models.FrameDifference
}

func (d *Detector) BlurSize() int {
	return d.params.BlurSize
}

func (d *Detector) Close() {}

// Decide keeps curr when at least one external foreground contour of the
// binarized difference has an area strictly greater than MinArea.
func (d *Detector) Decide(prev, curr *safe.Mat) (models.FrameDecision, error) {
	if err := safe.ValidatePair(prev, curr, "frame difference"); err != nil {
		return models.FrameDecision{}, err
	}

	if !prev.SameShape(curr) {
		return models.FrameDecision{
			Keep: true,
			Warning: fmt.Sprintf("frame shapes differ (%dx%d vs %dx%d), keeping frame",
				prev.Cols(), prev.Rows(), curr.Cols(), curr.Rows()),
		}, nil
	}

	mask := gocv.NewMat()
	defer mask.Close()
	d.binarize(prev, curr, &mask)

	regions := d.regions(mask)
	largest := 0.0
	for _, r := range regions {
		largest = max(largest, r.Area)
	}

	return models.FrameDecision{
		Keep:    len(regions) > 0,
		Score:   largest,
		Regions: regions,
	}, nil
}

// Mask returns the thresholded difference image; the caller owns it.
func (d *Detector) Mask(prev, curr *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidatePair(prev, curr, "frame difference mask"); err != nil {
		return nil, err
	}
	if !prev.SameShape(curr) {
		return nil, fmt.Errorf("frame shapes differ: %dx%d vs %dx%d",
			prev.Cols(), prev.Rows(), curr.Cols(), curr.Rows())
	}

	mask := gocv.NewMat()
	d.binarize(prev, curr, &mask)
	return safe.Wrap(mask, nil, "diff_mask")
}

func (d *Detector) binarize(prev, curr *safe.Mat, mask *gocv.Mat) {
	diff := gocv.NewMat()
	defer diff.Close()

	gocv.AbsDiff(prev.GetMat(), curr.GetMat(), &diff)
	gocv.Threshold(diff, mask, float32(d.params.Threshold), 255, gocv.ThresholdBinary)
}

// regions returns the contours qualifying under MinArea, in contour order.
func (d *Detector) regions(mask gocv.Mat) []models.Region {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	minArea := float64(d.params.MinArea)
	var regions []models.Region
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area <= minArea {
			continue
		}
		regions = append(regions, models.Region{
			Area:   area,
			Bounds: gocv.BoundingRect(contour),
		})
	}
	return regions
}
