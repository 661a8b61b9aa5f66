// Package video runs the watermark engine over every frame of a video. Frame
// decoding and encoding are delegated to a Codec; FFmpeg is the real one.
package video

import (
	"context"
	"image"
	"time"
)

// Info is what the pipeline needs to know about a source before decoding.
type Info struct {
	Width     int
	Height    int
	Duration  time.Duration
	FrameRate string // как отдает ffprobe, например "30000/1001"
	HasAudio  bool
}

// Decoder yields frames in stream order and io.EOF after the last one. The
// returned frame may be reused by the next call.
type Decoder interface {
	Next() (*image.RGBA, error)
	Close() error
}

// Encoder consumes frames in order. Close finalises the output; Abort drops
// it. After either one the encoder is unusable.
type Encoder interface {
	WriteFrame(frame *image.RGBA) error
	Close() error
	Abort()
}

type Codec interface {
	Probe(ctx context.Context, path string) (Info, error)
	OpenDecoder(ctx context.Context, path string, info Info) (Decoder, error)
	// OpenEncoder writes an MP4 to dst; src is read again for its audio track.
	OpenEncoder(ctx context.Context, src, dst string, info Info) (Encoder, error)
}
