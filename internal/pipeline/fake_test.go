package pipeline

import (
	"fmt"
	"io"
	"sync"

	"framecull/internal/models"
	"framecull/internal/opencv/safe"
	"framecull/internal/video"

	"gocv.io/x/gocv"
)

const (
	frameRows = 24
	frameCols = 32
)

// fakeVideo decodes to one uniform BGR frame per entry in values.
// meta.FrameCount may exceed len(values) to simulate an early end of stream.
type fakeVideo struct {
	meta       models.VideoMetadata
	values     []uint8
	panicAt    int
	hasPanicAt bool
}

func newFakeVideo(values []uint8) fakeVideo {
	return fakeVideo{
		meta: models.VideoMetadata{
			FrameCount: len(values),
			FPS:        30,
			Width:      frameCols,
			Height:     frameRows,
		},
		values: values,
	}
}

type fakeCodec struct {
	mu       sync.Mutex
	videos   map[string]fakeVideo
	sinks    map[string]*fakeSink
	sinkErr  error
	writeErr error
	onWrite  func(n int)
	tracker  safe.MemoryTracker
	opened   []string
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{
		videos: make(map[string]fakeVideo),
		sinks:  make(map[string]*fakeSink),
	}
}

func (c *fakeCodec) add(path string, v fakeVideo) {
	c.videos[path] = v
}

func (c *fakeCodec) Open(path string) (video.Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.videos[path]
	if !ok {
		return nil, fmt.Errorf("%w %s", video.ErrOpenSource, path)
	}
	c.opened = append(c.opened, path)
	return &fakeSource{video: v, tracker: c.tracker}, nil
}

func (c *fakeCodec) CreateSink(path string, meta models.VideoMetadata) (video.Sink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sinkErr != nil {
		return nil, c.sinkErr
	}
	s := &fakeSink{meta: meta, writeErr: c.writeErr, onWrite: c.onWrite}
	c.sinks[path] = s
	return s, nil
}

func (c *fakeCodec) sink(path string) *fakeSink {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sinks[path]
}

type fakeSource struct {
	video   fakeVideo
	next    int
	tracker safe.MemoryTracker
	closed  bool
}

func (s *fakeSource) Metadata() models.VideoMetadata {
	return s.video.meta
}

func (s *fakeSource) ReadFrame() (*safe.Mat, error) {
	if s.video.hasPanicAt && s.next == s.video.panicAt {
		panic("decoder exploded")
	}
	if s.next >= len(s.video.values) {
		return nil, io.EOF
	}
	v := float64(s.video.values[s.next])
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), frameRows, frameCols, gocv.MatTypeCV8UC3)
	tag := fmt.Sprintf("frame_%d", s.next)
	s.next++
	return safe.Wrap(m, s.tracker, tag)
}

func (s *fakeSource) Close() {
	s.closed = true
}

// fakeSink records the tags of written frames. onWrite, when set, runs
// after each successful write with the number of frames written so far.
type fakeSink struct {
	meta     models.VideoMetadata
	written  []string
	writeErr error
	onWrite  func(n int)
	closed   bool
}

func (s *fakeSink) WriteFrame(frame *safe.Mat) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, frame.Tag())
	if s.onWrite != nil {
		s.onWrite(len(s.written))
	}
	return nil
}

func (s *fakeSink) Close() {
	s.closed = true
}

// toggling returns total frame values where each index in changes flips
// the intensity between 50 and 150.
func toggling(total int, changes ...int) []uint8 {
	flip := make(map[int]bool, len(changes))
	for _, c := range changes {
		flip[c] = true
	}
	values := make([]uint8, total)
	v := uint8(50)
	for i := range values {
		if flip[i] {
			if v == 50 {
				v = 150
			} else {
				v = 50
			}
		}
		values[i] = v
	}
	return values
}
