package video

import (
	"fmt"
	"io"

	"framecull/internal/models"
	"framecull/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// DefaultFourCC is the output codec. The container carries no audio.
const DefaultFourCC = "mp4v"

// GocvCodec reads and writes video files through OpenCV.
type GocvCodec struct {
	tracker safe.MemoryTracker
	fourcc  string
}

type CodecOption func(*GocvCodec)

// WithTracker registers every decoded frame with tracker.
func WithTracker(tracker safe.MemoryTracker) CodecOption {
	return func(c *GocvCodec) {
		c.tracker = tracker
	}
}

func WithFourCC(fourcc string) CodecOption {
	return func(c *GocvCodec) {
		c.fourcc = fourcc
	}
}

func NewGocvCodec(opts ...CodecOption) *GocvCodec {
	c := &GocvCodec{fourcc: DefaultFourCC}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GocvCodec) Open(path string) (Source, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return nil, fmt.Errorf("%w %s: %v", ErrOpenSource, path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w %s", ErrOpenSource, path)
	}

	meta := models.VideoMetadata{
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
		FPS:        capture.Get(gocv.VideoCaptureFPS),
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}

	return &gocvSource{capture: capture, meta: meta, tracker: c.tracker}, nil
}

func (c *GocvCodec) CreateSink(path string, meta models.VideoMetadata) (Sink, error) {
	if err := safe.ValidateDimensions(meta.Width, meta.Height, "CreateSink"); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCreateSink, path, err)
	}

	writer, err := gocv.VideoWriterFile(path, c.fourcc, meta.FPS, meta.Width, meta.Height, true)
	if err != nil {
		if writer != nil {
			writer.Close()
		}
		return nil, fmt.Errorf("%w %s: %v", ErrCreateSink, path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("%w %s", ErrCreateSink, path)
	}

	return &gocvSink{writer: writer}, nil
}

type gocvSource struct {
	capture *gocv.VideoCapture
	meta    models.VideoMetadata
	tracker safe.MemoryTracker
}

func (s *gocvSource) Metadata() models.VideoMetadata {
	return s.meta
}

func (s *gocvSource) ReadFrame() (*safe.Mat, error) {
	frame := gocv.NewMat()
	if ok := s.capture.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return nil, io.EOF
	}
	return safe.Wrap(frame, s.tracker, "frame")
}

func (s *gocvSource) Seek(frame int) error {
	if frame < 0 || (s.meta.FrameCount > 0 && frame >= s.meta.FrameCount) {
		return fmt.Errorf("seek target %d outside [0, %d)", frame, s.meta.FrameCount)
	}
	s.capture.Set(gocv.VideoCapturePosFrames, float64(frame))
	return nil
}

func (s *gocvSource) Close() {
	s.capture.Close()
}

type gocvSink struct {
	writer *gocv.VideoWriter
}

func (s *gocvSink) WriteFrame(frame *safe.Mat) error {
	if err := safe.ValidateMatForOperation(frame, "WriteFrame"); err != nil {
		return err
	}
	return s.writer.Write(frame.GetMat())
}

func (s *gocvSink) Close() {
	s.writer.Close()
}

// WriteImage encodes mat into an image file chosen by the path extension.
func WriteImage(path string, mat *safe.Mat) error {
	if err := safe.ValidateMatForOperation(mat, "WriteImage"); err != nil {
		return err
	}
	if ok := gocv.IMWrite(path, mat.GetMat()); !ok {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}
