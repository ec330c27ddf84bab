package filters

import (
	"context"
	"testing"

	"framecull/internal/opencv/memory"
	"framecull/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func grayGradient(t *testing.T, rows, cols int) *safe.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.SetUCharAt(r, c, uint8((r*7+c*13)%256))
		}
	}
	sm, err := safe.Wrap(m, nil, "gradient")
	require.NoError(t, err)
	return sm
}

func TestPreprocessor_ConvertsColorToGray(t *testing.T) {
	frame, err := safe.Wrap(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 80, 120, 0), 12, 16, gocv.MatTypeCV8UC3), nil, "bgr")
	require.NoError(t, err)
	defer frame.Close()

	p := NewPreprocessor(5, nil)
	out, err := p.Process(context.Background(), frame)
	require.NoError(t, err)
	defer p.Release(out)

	assert.Equal(t, 1, out.Channels())
	assert.Equal(t, gocv.MatTypeCV8UC1, out.Type())
	assert.Equal(t, 12, out.Rows())
	assert.Equal(t, 16, out.Cols())
	assert.Equal(t, 3, frame.Channels(), "input must not be mutated")
}

func TestPreprocessor_BGRAInput(t *testing.T) {
	frame, err := safe.Wrap(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 10, 10, 255), 8, 8, gocv.MatTypeCV8UC4), nil, "bgra")
	require.NoError(t, err)
	defer frame.Close()

	p := NewPreprocessor(3, nil)
	out, err := p.Process(context.Background(), frame)
	require.NoError(t, err)
	defer p.Release(out)

	assert.Equal(t, 1, out.Channels())
	outMat := out.GetMat()
	assert.EqualValues(t, 10, outMat.GetUCharAt(4, 4))
}

func TestPreprocessor_BlurSizeOneIsPassThrough(t *testing.T) {
	frame := grayGradient(t, 10, 10)
	defer frame.Close()

	p := NewPreprocessor(1, nil)
	assert.Equal(t, 1, p.BlurSize())

	out, err := p.Process(context.Background(), frame)
	require.NoError(t, err)
	defer p.Release(out)

	require.NotEqual(t, frame.ID(), out.ID())

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(frame.GetMat(), out.GetMat(), &diff)
	assert.Equal(t, 0, gocv.CountNonZero(diff))
}

func TestPreprocessor_BlurSmoothsGradient(t *testing.T) {
	frame := grayGradient(t, 10, 10)
	defer frame.Close()

	p := NewPreprocessor(5, nil)
	out, err := p.Process(context.Background(), frame)
	require.NoError(t, err)
	defer p.Release(out)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(frame.GetMat(), out.GetMat(), &diff)
	assert.Greater(t, gocv.CountNonZero(diff), 0)
}

func TestPreprocessor_NormalizesEvenBlur(t *testing.T) {
	assert.Equal(t, 5, NewPreprocessor(4, nil).BlurSize())
	assert.Equal(t, 7, NewPreprocessor(7, nil).BlurSize())
	assert.Equal(t, 1, NewPreprocessor(0, nil).BlurSize())
}

func TestPreprocessor_CancelledContext(t *testing.T) {
	frame := grayGradient(t, 4, 4)
	defer frame.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPreprocessor(3, nil).Process(ctx, frame)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPreprocessor_ReturnsBuffersToPool(t *testing.T) {
	mgr := memory.NewManager(nil)
	p := NewPreprocessor(5, mgr)

	frame, err := safe.Wrap(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 3, 0), 6, 6, gocv.MatTypeCV8UC3), nil, "bgr")
	require.NoError(t, err)
	defer frame.Close()

	for i := 0; i < 3; i++ {
		out, err := p.Process(context.Background(), frame)
		require.NoError(t, err)
		p.Release(out)
	}

	stats := mgr.GetStats()
	assert.Greater(t, stats.PoolHits, int64(0))

	mgr.Cleanup()
	assert.EqualValues(t, 0, mgr.GetStats().ActiveMats)
}

func TestPreprocessor_Steps(t *testing.T) {
	assert.Equal(t, []string{"grayscale_converter", "gaussian_filter"}, NewPreprocessor(5, nil).Steps())
	assert.Equal(t, []string{"grayscale_converter"}, NewPreprocessor(1, nil).Steps(), "blur 1 skips the filter")
}
