package config

import (
	"os"
	"path/filepath"
	"testing"

	"framecull/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, models.FrameDifference, cfg.Algorithm)
	assert.Equal(t, models.DefaultParameters(), cfg.Params)
	assert.Equal(t, 100, cfg.PreviewFrame)
	assert.Equal(t, "mp4v", cfg.FourCC)
	assert.Empty(t, cfg.Path)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "framecull.yaml", `
algorithm: ssim
reverse: true
params:
  ssim:
    threshold: 0.95
    blur_size: 6
  frame_diff:
    min_area: 800
`)
	t.Setenv("FRAMECULL_DIFF_THRESHOLD", "30")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, models.StructuralSimilarity, cfg.Algorithm)
	assert.True(t, cfg.Reverse)
	assert.Equal(t, 0.95, cfg.Params.SSIM.Threshold)
	assert.Equal(t, 7, cfg.Params.SSIM.BlurSize, "blur sizes are normalized")
	assert.Equal(t, 800, cfg.Params.FrameDiff.MinArea)
	assert.Equal(t, 30, cfg.Params.FrameDiff.Threshold)
	assert.Equal(t, 5, cfg.Params.FrameDiff.BlurSize, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, path, cfg.Path)
}

func TestLoad_EnvironmentAlgorithm(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FRAMECULL_ALGORITHM", "optical_flow")
	t.Setenv("FRAMECULL_FLOW_THRESHOLD", "2.5")
	t.Setenv("FRAMECULL_FOURCC", "avc1")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, models.OpticalFlow, cfg.Algorithm)
	assert.Equal(t, 2.5, cfg.Params.Flow.Threshold)
	assert.Equal(t, "avc1", cfg.FourCC)
}

func TestValidateFourCC(t *testing.T) {
	assert.NoError(t, ValidateFourCC("mp4v"))
	assert.NoError(t, ValidateFourCC("XVID"))
	assert.Error(t, ValidateFourCC(""))
	assert.Error(t, ValidateFourCC("mp4"))
	assert.Error(t, ValidateFourCC("mp4\x00"))
}

func TestLoad_CandidateFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "framecull.yaml", "algorithm: flow\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, models.OpticalFlow, cfg.Algorithm)
	assert.Equal(t, "./framecull.yaml", cfg.Path)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, dir, "bad.yaml", "algorithm: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "unknown.yaml", "algorithm: histogram\n"))
	assert.ErrorIs(t, err, models.ErrUnknownAlgorithm)

	_, err = Load(writeFile(t, dir, "range.yaml", "params:\n  frame_diff:\n    threshold: 400\n"))
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = Load(writeFile(t, dir, "level.yaml", "log_level: loud\n"))
	assert.ErrorAs(t, err, &verr)

	_, err = Load(writeFile(t, dir, "fourcc.yaml", "fourcc: h264x\n"))
	assert.ErrorAs(t, err, &verr)
}

func TestSave_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Algorithm = models.OpticalFlow
	cfg.Params.Flow.Threshold = 0.75

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "algorithm: flow")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, models.OpticalFlow, loaded.Algorithm)
	assert.Equal(t, 0.75, loaded.Params.Flow.Threshold)
}

func TestPresets(t *testing.T) {
	names := make([]string, 0)
	for _, p := range Presets() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"default", "high-action", "pan-zoom", "slow-scene", "visual-similarity"}, names)

	_, err := LookupPreset("nope")
	assert.Error(t, err)
}

func TestApplyPreset(t *testing.T) {
	cfg := Default()
	cfg.Params.Flow.Levels = 5

	require.NoError(t, cfg.ApplyPreset("pan-zoom"))
	assert.Equal(t, models.OpticalFlow, cfg.Algorithm)
	assert.Equal(t, 1.5, cfg.Params.Flow.Threshold)
	assert.Equal(t, 9, cfg.Params.Flow.BlurSize)
	assert.Equal(t, 5, cfg.Params.Flow.Levels, "farneback tunables are kept")

	require.NoError(t, cfg.ApplyPreset("high-action"))
	assert.Equal(t, models.FrameDiffParams{Threshold: 10, MinArea: 200, BlurSize: 3}, cfg.Params.FrameDiff)
	assert.Equal(t, 1.5, cfg.Params.Flow.Threshold, "other sub-structures are untouched")

	require.NoError(t, cfg.ApplyPreset("slow-scene"))
	assert.Equal(t, models.SSIMParams{Threshold: 0.985, BlurSize: 7}, cfg.Params.SSIM)

	for _, p := range Presets() {
		c := Default()
		require.NoError(t, c.ApplyPreset(p.Name))
		assert.NoError(t, c.Validate(), p.Name)
	}
}
