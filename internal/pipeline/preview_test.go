package pipeline

import (
	"context"
	"testing"

	"framecull/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview_ClampsFrameAndWritesImages(t *testing.T) {
	codec := newFakeCodec()
	codec.add("clip.mp4", newFakeVideo(toggling(10, 9)))

	out := t.TempDir()
	result, err := NewRetention(codec).Preview(context.Background(), PreviewJob{
		Input:  "clip.mp4",
		Frame:  -1,
		Params: models.DefaultParameters().FrameDiff,
		OutDir: out,
	})
	require.NoError(t, err)

	assert.Equal(t, 8, result.FrameIndex, "default frame is clamped to total-2")
	assert.True(t, result.Decision.Keep)
	require.Len(t, result.Decision.Regions, 1)
	assert.FileExists(t, result.RegionsPath)
	assert.FileExists(t, result.MaskPath)
	assert.Contains(t, result.MaskPath, "preview_8_mask.png")
}

func TestPreview_StaticPair(t *testing.T) {
	codec := newFakeCodec()
	codec.add("clip.mp4", newFakeVideo(toggling(6)))

	result, err := NewRetention(codec).Preview(context.Background(), PreviewJob{
		Input:  "clip.mp4",
		Frame:  2,
		Params: models.DefaultParameters().FrameDiff,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.FrameIndex)
	assert.False(t, result.Decision.Keep)
	assert.Empty(t, result.RegionsPath)
}

func TestPreview_FirstFramePair(t *testing.T) {
	codec := newFakeCodec()
	codec.add("clip.mp4", newFakeVideo(toggling(6, 1)))

	result, err := NewRetention(codec).Preview(context.Background(), PreviewJob{
		Input:  "clip.mp4",
		Frame:  0,
		Params: models.DefaultParameters().FrameDiff,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.FrameIndex, "frame 0 is a valid request")
	assert.True(t, result.Decision.Keep)
}

func TestPreview_TooShort(t *testing.T) {
	codec := newFakeCodec()
	codec.add("one.mp4", newFakeVideo([]uint8{1}))

	_, err := NewRetention(codec).Preview(context.Background(), PreviewJob{Input: "one.mp4"})
	assert.ErrorIs(t, err, models.ErrInvalidMetadata)
}
