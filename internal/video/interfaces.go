package video

import (
	"errors"

	"framecull/internal/models"
	"framecull/internal/opencv/safe"
)

var (
	ErrOpenSource = errors.New("cannot open video source")
	ErrCreateSink = errors.New("cannot create video sink")
)

// Codec is the decode/encode collaborator of the retention pipeline.
type Codec interface {
	Open(path string) (Source, error)
	CreateSink(path string, meta models.VideoMetadata) (Sink, error)
}

// Source yields decoded frames in stream order. ReadFrame returns io.EOF
// once no further frame can be read; every returned Mat is owned by the
// caller.
type Source interface {
	Metadata() models.VideoMetadata
	ReadFrame() (*safe.Mat, error)
	Close()
}

// Seeker is implemented by sources that can jump to a frame index.
type Seeker interface {
	Seek(frame int) error
}

// Sink encodes frames. It never takes ownership of the written Mat.
type Sink interface {
	WriteFrame(frame *safe.Mat) error
	Close()
}
