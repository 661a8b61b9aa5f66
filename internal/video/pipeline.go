package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/render"
	"github.com/wb-go/wbf/zlog"
)

const (
	DefaultMaxBytes    int64 = 50 << 20
	DefaultMaxDuration       = 120 * time.Second
)

// Limits are checked before any frame is decoded.
type Limits struct {
	MaxBytes    int64
	MaxDuration time.Duration
}

// Task is one video render. Job is the snapshot every frame is rendered with.
type Task struct {
	Source  string
	Dest    string
	Job     render.Job
	OnState func(model.State) // опционально
}

type Pipeline struct {
	codec  Codec
	engine *render.Engine
	limits Limits
}

func NewPipeline(codec Codec, engine *render.Engine, limits Limits) *Pipeline {
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxBytes
	}
	if limits.MaxDuration <= 0 {
		limits.MaxDuration = DefaultMaxDuration
	}
	return &Pipeline{codec: codec, engine: engine, limits: limits}
}

// Run walks idle -> validating -> processing -> encoding -> done. On any
// error the state becomes failed and Dest is left untouched.
func (p *Pipeline) Run(ctx context.Context, t Task) (err error) {
	report := func(s model.State) {
		if t.OnState != nil {
			t.OnState(s)
		}
	}
	defer func() {
		if err != nil {
			report(model.StateFailed)
		}
	}()

	report(model.StateValidating)
	info, err := p.validate(ctx, t.Source)
	if err != nil {
		return err
	}

	report(model.StateProcessing)
	tmp, err := os.CreateTemp(filepath.Dir(t.Dest), "."+filepath.Base(t.Dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				zlog.Logger.Warn().Err(rmErr).Str("path", tmpPath).Msg("Failed to remove partial output")
			}
		}
	}()

	if err = p.process(ctx, t, info, tmpPath, report); err != nil {
		return err
	}

	if err = os.Rename(tmpPath, t.Dest); err != nil {
		return fmt.Errorf("publish output: %w", err)
	}
	report(model.StateDone)
	return nil
}

func (p *Pipeline) validate(ctx context.Context, src string) (Info, error) {
	st, err := os.Stat(src)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", model.ErrDecodeFailure, err)
	}
	if st.Size() > p.limits.MaxBytes {
		return Info{}, fmt.Errorf("%w: %d bytes, limit %d", model.ErrSizeLimitExceeded, st.Size(), p.limits.MaxBytes)
	}

	info, err := p.codec.Probe(ctx, src)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", model.ErrDecodeFailure, err)
	}
	// без длительности лимит не проверить, такой файл не берем
	if info.Duration <= 0 {
		return Info{}, fmt.Errorf("%w: unknown duration", model.ErrDecodeFailure)
	}
	if info.Duration > p.limits.MaxDuration {
		return Info{}, fmt.Errorf("%w: %s, limit %s", model.ErrDurationLimitExceeded, info.Duration, p.limits.MaxDuration)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return Info{}, fmt.Errorf("%w: bad frame size %dx%d", model.ErrDecodeFailure, info.Width, info.Height)
	}
	return info, nil
}

func (p *Pipeline) process(ctx context.Context, t Task, info Info, out string, report func(model.State)) error {
	// слой зависит только от размера кадра и снапшота - строим один раз на задачу
	layer, err := p.engine.Layer(info.Width, info.Height, t.Job)
	if err != nil {
		return err
	}

	dec, err := p.codec.OpenDecoder(ctx, t.Source, info)
	if err != nil {
		return err
	}
	defer dec.Close()

	enc, err := p.codec.OpenEncoder(ctx, t.Source, out, info)
	if err != nil {
		return err
	}

	frames := 0
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			enc.Abort()
			return err
		}

		if frame.Bounds().Size() != layer.Bounds().Size() {
			b := frame.Bounds()
			if layer, err = p.engine.Layer(b.Dx(), b.Dy(), t.Job); err != nil {
				enc.Abort()
				return err
			}
		}

		if err := enc.WriteFrame(render.Composite(frame, layer)); err != nil {
			enc.Abort()
			return err
		}
		frames++
	}

	if frames == 0 {
		enc.Abort()
		return fmt.Errorf("%w: no frames decoded", model.ErrDecodeFailure)
	}

	report(model.StateEncoding)
	return enc.Close()
}
