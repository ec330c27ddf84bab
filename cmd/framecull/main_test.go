package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"framecull/internal/algorithms"
	"framecull/internal/config"
	"framecull/internal/logger"
	"framecull/internal/models"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("test"), 0o644))
	return path
}

func TestKongParsing(t *testing.T) {
	input := touch(t, "clip.mp4")

	tests := []struct {
		name    string
		args    []string
		command string
		wantErr bool
	}{
		{name: "process", args: []string{"process", input}, command: "process <input>"},
		{name: "process with flags", args: []string{"process", "-a", "ssim", "--threshold", "0.9", "--reverse", "-o", "out.mp4", input}, command: "process <input>"},
		{name: "process missing file", args: []string{"process", filepath.Join(t.TempDir(), "nope.mp4")}, wantErr: true},
		{name: "process without input", args: []string{"process"}, wantErr: true},
		{name: "batch", args: []string{"batch", "--output-dir", "out", input, input}, command: "batch <inputs>"},
		{name: "batch without inputs", args: []string{"batch"}, wantErr: true},
		{name: "preview", args: []string{"preview", "--frame", "12", "--out-dir", "prev", input}, command: "preview <input>"},
		{name: "presets", args: []string{"presets"}, command: "presets"},
		{name: "globals", args: []string{"--log-level", "debug", "--metrics-addr", ":0", "--fourcc", "avc1", "presets"}, command: "presets"},
		{name: "unknown command", args: []string{"explode"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cli CLI
			parser := kong.Must(&cli, kong.Vars{"version": Version}, kong.Exit(func(int) {}))

			kctx, err := parser.Parse(tc.args)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.command, kctx.Command())
		})
	}
}

func TestKongParsing_PointerTuning(t *testing.T) {
	input := touch(t, "clip.mp4")

	var cli CLI
	parser := kong.Must(&cli, kong.Vars{"version": Version})

	_, err := parser.Parse([]string{"process", "--min-area", "50", input})
	require.NoError(t, err)
	assert.Nil(t, cli.Process.Threshold)
	require.NotNil(t, cli.Process.MinArea)
	assert.Equal(t, 50, *cli.Process.MinArea)
}

func TestKongParsing_PreviewFrameZero(t *testing.T) {
	input := touch(t, "clip.mp4")

	var cli CLI
	parser := kong.Must(&cli, kong.Vars{"version": Version})

	_, err := parser.Parse([]string{"preview", input})
	require.NoError(t, err)
	assert.Nil(t, cli.Preview.Frame)

	_, err = parser.Parse([]string{"preview", "--frame", "0", input})
	require.NoError(t, err)
	require.NotNil(t, cli.Preview.Frame)
	assert.Equal(t, 0, *cli.Preview.Frame)
}

func TestPreviewCmd_FrameIndex(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 100, (&PreviewCmd{}).frameIndex(cfg))
	assert.Equal(t, 0, (&PreviewCmd{Frame: ptr(0)}).frameIndex(cfg))

	cfg.PreviewFrame = 0
	assert.Equal(t, 0, (&PreviewCmd{}).frameIndex(cfg), "configured frame 0 is honored")
	assert.Equal(t, 7, (&PreviewCmd{Frame: ptr(7)}).frameIndex(cfg))
}

func ptr[T any](v T) *T { return &v }

func TestSelectionResolve(t *testing.T) {
	cfg := config.Default()

	s, err := Selection{}.resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, models.FrameDifference, s.kind)
	assert.Equal(t, cfg.Params, s.params)
	assert.False(t, s.reverse)

	s, err = Selection{Preset: "slow-scene"}.resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, models.StructuralSimilarity, s.kind)
	assert.Equal(t, 0.985, s.params.SSIM.Threshold)
	assert.Equal(t, models.FrameDifference, cfg.Algorithm, "config is not modified")

	s, err = Selection{Preset: "slow-scene", Algorithm: "flow", Tuning: Tuning{Threshold: ptr(2.0), BlurSize: ptr(4)}}.resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, models.OpticalFlow, s.kind)
	assert.Equal(t, 2.0, s.params.Flow.Threshold)
	assert.Equal(t, 5, s.params.Flow.BlurSize)

	s, err = Selection{Tuning: Tuning{Threshold: ptr(20.6), MinArea: ptr(10)}}.resolve(cfg)
	require.NoError(t, err)
	assert.Equal(t, 21, s.params.FrameDiff.Threshold)
	assert.Equal(t, 10, s.params.FrameDiff.MinArea)

	cfg.Reverse = true
	s, err = Selection{}.resolve(cfg)
	require.NoError(t, err)
	assert.True(t, s.reverse)
}

func TestSelectionResolve_Errors(t *testing.T) {
	cfg := config.Default()

	_, err := Selection{Algorithm: "histogram"}.resolve(cfg)
	assert.ErrorIs(t, err, models.ErrUnknownAlgorithm)

	_, err = Selection{Preset: "nope"}.resolve(cfg)
	assert.Error(t, err)

	_, err = Selection{Algorithm: "ssim", Tuning: Tuning{Threshold: ptr(1.5)}}.resolve(cfg)
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDetermineLogLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	assert.Equal(t, logger.InfoLevel, determineLogLevel("", ""))
	assert.Equal(t, logger.WarnLevel, determineLogLevel("", "warn"))
	assert.Equal(t, logger.ErrorLevel, determineLogLevel("error", "warn"))

	t.Setenv("DEBUG", "1")
	assert.Equal(t, logger.DebugLevel, determineLogLevel("", ""))
	assert.Equal(t, logger.InfoLevel, determineLogLevel("info", ""))
}

func TestBatchError(t *testing.T) {
	assert.NoError(t, batchError(models.BatchSummary{Total: 2, Succeeded: 2, Results: make([]models.FileOutcome, 2)}))

	fatal := errors.New("disk full")
	assert.ErrorIs(t, batchError(models.BatchSummary{Total: 1, Err: fatal}), fatal)

	assert.ErrorIs(t, batchError(models.BatchSummary{Total: 3, Succeeded: 1, Cancelled: 1, Results: make([]models.FileOutcome, 2)}), context.Canceled)

	err := batchError(models.BatchSummary{Total: 2, Succeeded: 1, Failed: 1, Results: make([]models.FileOutcome, 2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 files failed")
}

func TestRenderers(t *testing.T) {
	var buf bytes.Buffer
	app := &App{stdout: &buf, detectors: algorithms.NewManager()}
	require.NoError(t, (&PresetsCmd{}).Run(app))
	assert.Contains(t, buf.String(), "Algorithms: framediff, ssim, flow")
	for _, p := range config.Presets() {
		assert.Contains(t, buf.String(), p.Name)
	}

	buf.Reset()
	renderBatchSummary(&buf, models.BatchSummary{
		Total:     2,
		Succeeded: 1,
		Failed:    1,
		Results: []models.FileOutcome{
			{Name: "a.mp4", Result: models.ProcessingResult{Status: models.StatusSuccess, KeptFrames: 4, TotalFrames: 10}},
			{Name: "b.mp4", Result: models.ProcessingResult{Status: models.StatusFailed}},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "a.mp4")
	assert.Contains(t, out, "kept 4/10")
	assert.Contains(t, out, "b.mp4")
	assert.Contains(t, out, "1 succeeded, 1 failed, 0 cancelled of 2 files")
}

func TestFrameBar(t *testing.T) {
	var buf bytes.Buffer
	bar := newFrameBar(&buf, "frames")
	bar.finish(true)
	assert.Empty(t, buf.String(), "no bar before the first event")

	for i := 1; i <= 5; i++ {
		bar.Progress(models.NewProgress(i, 5))
	}
	bar.finish(true)
	assert.NotEmpty(t, buf.String())
}
