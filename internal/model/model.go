// Package model provides data-structs for internal app-usage
package model

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// State - состояние видео-задачи, совпадает с состояниями пайплайна
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateProcessing State = "processing"
	StateEncoding   State = "encoding"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

var StateMap = map[State]bool{
	StateIdle:       true,
	StateValidating: true,
	StateProcessing: true,
	StateEncoding:   true,
	StateDone:       true,
	StateFailed:     true,
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Running reports whether a worker currently owns the job.
func (s State) Running() bool {
	return s == StateValidating || s == StateProcessing || s == StateEncoding
}

// JobStaleAfter - задача в running-состоянии без обновлений дольше этого считается брошенной
const JobStaleAfter = 10 * time.Minute

//---------------------

type VideoJob struct {
	UID       uuid.UUID  `json:"uid"`
	UserID    int64      `json:"user_id"`
	State     State      `json:"state"`
	Snapshot  Settings   `json:"settings"`
	FontKey   string     `json:"-"`
	SourceKey string     `json:"-"`
	ResultKey string     `json:"-"`
	ErrMsg    string     `json:"error,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Stale reports whether a running job stopped making progress.
func (j *VideoJob) Stale(now time.Time) bool {
	if j.UpdatedAt == nil {
		return true
	}
	return now.Sub(*j.UpdatedAt) > JobStaleAfter
}

type VideoCreateData struct {
	UserID      int64
	Video       io.Reader
	ContentType string
	Size        int64
}

// ------------------

var (
	ErrCommon500             error = errors.New("something went wrong. Try again later")          // 500
	ErrIncorrectID           error = errors.New("incorrect job UUID")                             // 400
	ErrIncorrectUser         error = errors.New("incorrect user id")                              // 400
	ErrJobNotFound           error = errors.New("specified job UUID doesn't exist")               // 404
	ErrResultNotReady        error = errors.New("requested video is not processed yet")           // 404
	ErrEmptySource           error = errors.New("empty/incorrect source file provided")           // 400
	ErrEmptyPatch            error = errors.New("no settings fields provided")                    // 400
	ErrUnsupportedFormat     error = errors.New("unsupported file format")                        // 400
	ErrTooManyRequests       error = errors.New("too many requests, slow down")                   // 429
	ErrJobInProgress         error = errors.New("job is already being processed")                 // worker
	ErrInvalidText           error = errors.New("watermark text must not be empty")               // 400
	ErrInvalidColor          error = errors.New("invalid color, use HEX like #FF0000")            // 400
	ErrInvalidSize           error = errors.New("font size must be between 10 and 500")           // 400
	ErrInvalidMode           error = errors.New("mode must be single or tiled")                   // 400
	ErrInvalidPosition       error = errors.New("position must be one of tl, tr, bl, br, center") // 400
	ErrFontLoadFailure       error = errors.New("failed to load font")                            // 400 на загрузке, при рендере глушится фоллбеком
	ErrDecodeFailure         error = errors.New("failed to decode source")                        // 400
	ErrEncodeFailure         error = errors.New("failed to encode result")                        // 500
	ErrSizeLimitExceeded     error = errors.New("source exceeds size limit")                      // 413
	ErrDurationLimitExceeded error = errors.New("video exceeds duration limit")                   // 400
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	BMP  = "image/bmp"
	TIFF = "image/tiff"

	MP4  = "video/mp4"
	MOV  = "video/quicktime"
	MKV  = "video/x-matroska"
	WEBM = "video/webm"
)

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
	BMP:  true,
	TIFF: true,
}

var GetVideoFileExt = map[string]string{
	MP4:  ".mp4",
	MOV:  ".mov",
	MKV:  ".mkv",
	WEBM: ".webm",
}
