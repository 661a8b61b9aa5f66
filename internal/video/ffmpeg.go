package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/render"
)

// FFmpeg is the Codec backed by the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
}

// NewFFmpeg takes the binary paths; empty means look them up in PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

//--------------------

type ffmpegDecoder struct {
	cmd    *exec.Cmd
	out    io.ReadCloser
	stderr *bytes.Buffer
	frame  *image.RGBA
	done   bool
}

func (f *FFmpeg) OpenDecoder(ctx context.Context, path string, info Info) (Decoder, error) {
	cmd := exec.CommandContext(ctx, f.ffmpeg,
		"-v", "error",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecodeFailure, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", model.ErrDecodeFailure, err)
	}

	return &ffmpegDecoder{
		cmd:    cmd,
		out:    out,
		stderr: stderr,
		frame:  image.NewRGBA(image.Rect(0, 0, info.Width, info.Height)),
	}, nil
}

func (d *ffmpegDecoder) Next() (*image.RGBA, error) {
	if d.done {
		return nil, io.EOF
	}

	_, err := io.ReadFull(d.out, d.frame.Pix)
	switch {
	case err == nil:
		return d.frame, nil
	case errors.Is(err, io.EOF):
		d.done = true
		if wErr := d.cmd.Wait(); wErr != nil {
			return nil, fmt.Errorf("%w: ffmpeg: %v: %s", model.ErrDecodeFailure, wErr, d.stderr.String())
		}
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("%w: truncated frame: %v", model.ErrDecodeFailure, err)
	}
}

func (d *ffmpegDecoder) Close() error {
	if d.done {
		return nil
	}
	d.done = true
	// дочитывать поток нет смысла, просто гасим процесс
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.cmd.Wait()
	return nil
}

//--------------------

type ffmpegEncoder struct {
	cmd    *exec.Cmd
	in     io.WriteCloser
	stderr *bytes.Buffer
	buf    []byte
	closed bool
}

func (f *FFmpeg) OpenEncoder(ctx context.Context, src, dst string, info Info) (Encoder, error) {
	args := []string{
		"-y",
		"-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", strconv.Itoa(info.Width) + "x" + strconv.Itoa(info.Height),
		"-framerate", info.FrameRate,
		"-i", "-",
	}
	if info.HasAudio {
		args = append(args, "-i", src, "-map", "0:v:0", "-map", "1:a:0?")
	} else {
		args = append(args, "-map", "0:v:0")
	}
	args = append(args,
		// yuv420p требует четных сторон
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
	)
	if info.HasAudio {
		args = append(args, "-c:a", "aac", "-b:a", "128k", "-shortest")
	}
	args = append(args, "-movflags", "+faststart", "-f", "mp4", dst)

	cmd := exec.CommandContext(ctx, f.ffmpeg, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	in, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEncodeFailure, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", model.ErrEncodeFailure, err)
	}
	return &ffmpegEncoder{cmd: cmd, in: in, stderr: stderr}, nil
}

func (e *ffmpegEncoder) WriteFrame(frame *image.RGBA) error {
	e.buf = render.PackRGB(frame, e.buf)
	if _, err := e.in.Write(e.buf); err != nil {
		return fmt.Errorf("%w: write frame: %v: %s", model.ErrEncodeFailure, err, e.stderr.String())
	}
	return nil
}

func (e *ffmpegEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.in.Close(); err != nil {
		_ = e.cmd.Wait()
		return fmt.Errorf("%w: %v", model.ErrEncodeFailure, err)
	}
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("%w: ffmpeg: %v: %s", model.ErrEncodeFailure, err, e.stderr.String())
	}
	return nil
}

func (e *ffmpegEncoder) Abort() {
	if e.closed {
		return
	}
	e.closed = true
	_ = e.in.Close()
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	_ = e.cmd.Wait()
}
