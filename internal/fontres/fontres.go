// Package fontres owns the watermark font. It holds one shared font file on
// disk and publishes immutable versions of it, so a render keeps using the
// font it started with even if the file is replaced mid-job.
package fontres

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FallbackID identifies the built-in Go Regular font.
const FallbackID = "fallback"

// Version is one parsed font. Never modified after creation.
type Version struct {
	ID   string
	Data []byte // nil for the built-in font
	font *opentype.Font
}

var (
	fallbackOnce sync.Once
	fallback     *Version
)

// Fallback returns the built-in font, parsed once per process.
func Fallback() *Version {
	fallbackOnce.Do(func() {
		parsed, err := opentype.Parse(goregular.TTF)
		if err != nil {
			// встроенный шрифт вшит в бинарь, сломаться тут может только сборка
			panic(fmt.Sprintf("parse embedded font: %v", err))
		}
		fallback = &Version{ID: FallbackID, font: parsed}
	})
	return fallback
}

// FromBytes parses data as a TrueType/OpenType font.
func FromBytes(data []byte) (*Version, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty font data", model.ErrFontLoadFailure)
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFontLoadFailure, err)
	}
	return &Version{ID: VersionID(data), Data: data, font: parsed}, nil
}

// OrFallback parses data and swallows a failure: it is logged and the
// built-in font is used instead. Empty data means the built-in font.
func OrFallback(data []byte) *Version {
	if len(data) == 0 {
		return Fallback()
	}
	v, err := FromBytes(data)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("Using built-in font instead")
		return Fallback()
	}
	return v
}

// VersionID returns the first 16 hex chars of the SHA-256 of data.
func VersionID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// IsFallback reports whether v is the built-in font. A nil version counts too.
func (v *Version) IsFallback() bool {
	return v == nil || v.ID == FallbackID
}

// Face returns a new face at size points and 72 DPI, so one point is one
// pixel. The caller closes it. A nil version means the built-in font.
func (v *Version) Face(size float64) (font.Face, error) {
	if v == nil {
		v = Fallback()
	}
	face, err := opentype.NewFace(v.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create face: %v", model.ErrFontLoadFailure, err)
	}
	return face, nil
}

//--------------------

// Resource is the shared on-disk font. Readers call Current without locking;
// writers go through Replace one at a time.
type Resource struct {
	path string
	mu   sync.Mutex
	cur  atomic.Pointer[Version]
}

// New loads the font at path. A missing file means the built-in font; a file
// that fails to parse is logged and also ends up on the built-in font.
func New(path string) *Resource {
	r := &Resource{path: path}
	r.cur.Store(Fallback())

	if path == "" {
		return r
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return r
	case err != nil:
		zlog.Logger.Warn().Err(err).Str("path", path).Msg("Failed to read font file, using built-in font")
		return r
	}
	r.cur.Store(OrFallback(data))
	return r
}

// Current returns the version in effect right now.
func (r *Resource) Current() *Version {
	return r.cur.Load()
}

func (r *Resource) Path() string {
	return r.path
}

// Replace validates data, writes it next to the font path and renames it over
// the old file, then publishes the new version. On any error the current
// font stays in effect.
func (r *Resource) Replace(data []byte) (*Version, error) {
	v, err := FromBytes(data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path != "" {
		if err := writeFileAtomic(r.path, data); err != nil {
			return nil, fmt.Errorf("replace font file: %w", err)
		}
	}
	r.cur.Store(v)
	return v, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".font-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
