package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"framecull/internal/config"
	"framecull/internal/models"
	"framecull/internal/pipeline"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Bold(true).
			Padding(0, 2).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	processingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	nameColumn = lipgloss.NewStyle().Width(20)
	kindColumn = lipgloss.NewStyle().Width(11)
)

// frameBar draws per-frame progress of one job. The bar is created on the
// first event because the frame count is only known once the video is open.
type frameBar struct {
	out  io.Writer
	desc string
	bar  *progressbar.ProgressBar
}

var _ pipeline.Observer = (*frameBar)(nil)

func newFrameBar(out io.Writer, desc string) *frameBar {
	return &frameBar{out: out, desc: desc}
}

func (f *frameBar) Progress(p models.Progress) {
	if f.bar == nil {
		f.bar = progressbar.NewOptions(p.Total,
			progressbar.OptionSetWriter(f.out),
			progressbar.OptionSetDescription(f.desc),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "▐",
				BarEnd:        "▌",
			}),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("frames"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(65*time.Millisecond),
		)
	}
	_ = f.bar.Set(p.Processed)
}

// finish completes the bar on success and leaves it where it stopped
// otherwise. It is safe to call when no frame was reported.
func (f *frameBar) finish(completed bool) {
	if f.bar == nil {
		return
	}
	if completed {
		_ = f.bar.Finish()
	} else {
		_ = f.bar.Exit()
	}
	fmt.Fprintln(f.out)
	f.bar = nil
}

// batchProgress prints one line per file event and a frame bar for the
// file being processed.
type batchProgress struct {
	pipeline.BaseBatchObserver

	stdout  io.Writer
	stderr  io.Writer
	total   int
	started int
	bar     *frameBar
}

func newBatchProgress(stdout, stderr io.Writer, total int) *batchProgress {
	return &batchProgress{stdout: stdout, stderr: stderr, total: total}
}

func (b *batchProgress) FileStarted(name string) {
	b.started++
	fmt.Fprintln(b.stdout, processingStyle.Render(fmt.Sprintf("[%d/%d] %s", b.started, b.total, name)))
	b.bar = newFrameBar(b.stderr, name)
}

func (b *batchProgress) FileProgress(_ string, p models.Progress) {
	if b.bar != nil {
		b.bar.Progress(p)
	}
}

func (b *batchProgress) FileFinished(name string, result models.ProcessingResult) {
	b.endBar(true)
	fmt.Fprintln(b.stdout, successStyle.Render(fmt.Sprintf("✓ %s: kept %d of %d frames", name, result.KeptFrames, result.TotalFrames)))
}

func (b *batchProgress) FileError(name string, result models.ProcessingResult) {
	b.endBar(false)
	fmt.Fprintln(b.stdout, errorStyle.Render("❌ "+result.Message))
}

func (b *batchProgress) FileCancelled(name string, _ models.ProcessingResult) {
	b.endBar(false)
	fmt.Fprintln(b.stdout, warningStyle.Render(fmt.Sprintf("⏹ %s: cancelled", name)))
}

func (b *batchProgress) OverallProgress(percent float64) {
	fmt.Fprintln(b.stdout, infoStyle.Render(fmt.Sprintf("Overall progress: %.1f%%", percent)))
}

func (b *batchProgress) BatchError(err error) {
	fmt.Fprintln(b.stdout, errorStyle.Render("❌ "+err.Error()))
}

func (b *batchProgress) endBar(completed bool) {
	if b.bar != nil {
		b.bar.finish(completed)
		b.bar = nil
	}
}

func renderResult(w io.Writer, result models.ProcessingResult) {
	switch result.Status {
	case models.StatusSuccess:
		fmt.Fprintln(w, successStyle.Render("✅ "+result.Message))
		fmt.Fprintf(w, "  kept %d of %d frames in %s\n", result.KeptFrames, result.TotalFrames, result.Duration.Round(time.Millisecond))
		fmt.Fprintf(w, "  speed restore: %.1f%%\n", result.SpeedRestorePercent)
		fmt.Fprintf(w, "  output: %s\n", result.Output)
	case models.StatusCancelled:
		fmt.Fprintln(w, warningStyle.Render(fmt.Sprintf("⏹ %s after %d of %d frames", result.Message, result.ProcessedFrames, result.TotalFrames)))
	default:
		fmt.Fprintln(w, errorStyle.Render("❌ "+result.Message))
	}
}

func renderBatchSummary(w io.Writer, summary models.BatchSummary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("Batch summary"))
	for _, outcome := range summary.Results {
		r := outcome.Result
		var status string
		switch r.Status {
		case models.StatusSuccess:
			status = successStyle.Render(fmt.Sprintf("✓ kept %d/%d, speed restore %.1f%%", r.KeptFrames, r.TotalFrames, r.SpeedRestorePercent))
		case models.StatusCancelled:
			status = warningStyle.Render("⏹ cancelled")
		default:
			status = errorStyle.Render("❌ failed")
		}
		fmt.Fprintf(w, "%s %s\n", nameColumn.Render(outcome.Name), status)
	}
	fmt.Fprintln(w, infoStyle.Render(fmt.Sprintf("%d succeeded, %d failed, %d cancelled of %d files (batch %s)",
		summary.Succeeded, summary.Failed, summary.Cancelled, summary.Total, summary.ID)))
}

func renderPreview(w io.Writer, result pipeline.PreviewResult) {
	d := result.Decision
	verdict := warningStyle.Render("discard")
	if d.Keep {
		verdict = successStyle.Render("keep")
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Preview of frames %d and %d", result.FrameIndex, result.FrameIndex+1)))
	fmt.Fprintf(w, "  decision: %s\n", verdict)
	fmt.Fprintf(w, "  regions above min area: %d\n", len(d.Regions))
	fmt.Fprintf(w, "  largest area: %.0f\n", d.Score)
	if d.Warning != "" {
		fmt.Fprintln(w, warningStyle.Render("  "+d.Warning))
	}
	for _, path := range []string{result.RegionsPath, result.MaskPath} {
		if path != "" {
			fmt.Fprintf(w, "  wrote %s\n", filepath.Clean(path))
		}
	}
}

func renderPresets(w io.Writer, presets []config.Preset, kinds []models.AlgorithmKind) {
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = kind.String()
	}
	fmt.Fprintln(w, infoStyle.Render("Algorithms: "+strings.Join(names, ", ")))

	fmt.Fprintln(w, headerStyle.Render("Presets"))
	for _, p := range presets {
		params := fmt.Sprintf("threshold=%g blur=%d", p.Threshold, p.BlurSize)
		if p.Algorithm == models.FrameDifference {
			params = fmt.Sprintf("threshold=%g min_area=%d blur=%d", p.Threshold, p.MinArea, p.BlurSize)
		}
		fmt.Fprintf(w, "%s%s%s\n    %s\n",
			nameColumn.Render(p.Name),
			kindColumn.Render(p.Algorithm.String()),
			params,
			infoStyle.Render(p.Description))
	}
}
