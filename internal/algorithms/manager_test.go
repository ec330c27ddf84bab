package algorithms

import (
	"testing"

	"framecull/internal/models"
	"framecull/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCreate_SelectsDetectorByKind(t *testing.T) {
	params := models.DefaultParameters()

	for _, kind := range []models.AlgorithmKind{models.FrameDifference, models.StructuralSimilarity, models.OpticalFlow} {
		d, err := NewManager().Create(kind, params)
		require.NoError(t, err, kind.String())
		assert.Equal(t, kind, d.Kind())
		assert.Equal(t, params.BlurSizeFor(kind), d.BlurSize())
		d.Close()
	}
}

func TestManagerCreate_NormalizesBlurBeforeBuilding(t *testing.T) {
	params := models.DefaultParameters()
	params.SSIM.BlurSize = 6

	d, err := NewManager().Create(models.StructuralSimilarity, params)
	require.NoError(t, err)
	assert.Equal(t, 7, d.BlurSize())
}

func TestManagerCreate_RejectsInvalidParameters(t *testing.T) {
	params := models.DefaultParameters()
	params.SSIM.Threshold = 1.5

	m := NewManager()
	_, err := m.Create(models.StructuralSimilarity, params)
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	// Only the active sub-structure is checked.
	_, err = m.Create(models.FrameDifference, params)
	assert.NoError(t, err)
}

func TestManagerCreate_UnknownKind(t *testing.T) {
	_, err := NewManager().Create(models.AlgorithmKind(42), models.DefaultParameters())
	assert.ErrorIs(t, err, models.ErrUnknownAlgorithm)
}

func TestManager_GetAvailableAlgorithms(t *testing.T) {
	kinds := NewManager().GetAvailableAlgorithms()
	assert.Equal(t, []models.AlgorithmKind{
		models.FrameDifference,
		models.StructuralSimilarity,
		models.OpticalFlow,
	}, kinds)
}

type keepAll struct{}

func (keepAll) Decide(_, _ *safe.Mat) (models.FrameDecision, error) {
	return models.FrameDecision{Keep: true}, nil
}
func (keepAll) Kind() models.AlgorithmKind { return models.FrameDifference }
func (keepAll) BlurSize() int              { return 1 }
func (keepAll) Close()                     {}

func TestManager_RegisterReplacesFactory(t *testing.T) {
	m := NewManager()
	m.Register(models.FrameDifference, func(models.ProcessingParameters) ChangeDetector { return keepAll{} })

	d, err := m.Create(models.FrameDifference, models.DefaultParameters())
	require.NoError(t, err)
	assert.IsType(t, keepAll{}, d)
	assert.Len(t, m.GetAvailableAlgorithms(), 3)
}
