// Command wmark stamps a text watermark onto a single photo or video file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/UnendingLoop/Watermarker/internal/fontres"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/render"
	"github.com/UnendingLoop/Watermarker/internal/video"
	flag "github.com/spf13/pflag"
	"github.com/wb-go/wbf/zlog"
)

var videoExt = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
}

type options struct {
	in, out  string
	patch    model.SettingsPatch
	fontPath string
	ffmpeg   string
	ffprobe  string
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	zlog.InitConsole()
	_ = zlog.SetLevel("warn")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "wmark:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("wmark", flag.ContinueOnError)
	in := fs.StringP("in", "i", "", "input photo or video")
	out := fs.StringP("out", "o", "", "output path (default: <in>_wm.jpg or <in>_wm.mp4)")
	text := fs.StringP("text", "t", "", "watermark text")
	color := fs.StringP("color", "c", "", "text color, #RRGGBB or #RGB")
	size := fs.IntP("size", "s", 0, "font size in points (10-500)")
	mode := fs.StringP("mode", "m", "", "single or tiled")
	position := fs.StringP("position", "p", "", "tl, tr, bl, br or center (single mode)")
	fontPath := fs.StringP("font", "f", "", "path to .ttf/.otf font (default: built-in)")
	ffmpeg := fs.String("ffmpeg", "ffmpeg", "ffmpeg binary")
	ffprobe := fs.String("ffprobe", "ffprobe", "ffprobe binary")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	// "-in x" разбирается как -i "n" и хвост уходит в позиционные
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments %q: long flags need two dashes (--in, --out, --text)", fs.Args())
	}
	if *in == "" {
		return options{}, fmt.Errorf("-in is required")
	}

	o := options{in: *in, out: *out, fontPath: *fontPath, ffmpeg: *ffmpeg, ffprobe: *ffprobe}
	// только явно заданные флаги попадают в патч
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "text":
			o.patch.Text = text
		case "color":
			o.patch.Color = color
		case "size":
			o.patch.Size = size
		case "mode":
			o.patch.Mode = mode
		case "position":
			o.patch.Position = position
		}
	})
	if o.out == "" {
		o.out = defaultOut(o.in)
	}
	return o, nil
}

func isVideo(path string) bool {
	return videoExt[strings.ToLower(filepath.Ext(path))]
}

func defaultOut(in string) string {
	base := strings.TrimSuffix(in, filepath.Ext(in)) + "_wm"
	if isVideo(in) {
		return base + ".mp4"
	}
	return base + ".jpg"
}

func run(ctx context.Context, o options) error {
	s := model.DefaultSettings()
	if err := o.patch.Apply(&s); err != nil {
		return err
	}

	font := fontres.Fallback()
	if o.fontPath != "" {
		data, err := os.ReadFile(o.fontPath)
		if err != nil {
			return err
		}
		if font, err = fontres.FromBytes(data); err != nil {
			return err
		}
	}

	engine := render.NewEngine(render.DefaultOptions())

	if isVideo(o.in) {
		p := video.NewPipeline(video.NewFFmpeg(o.ffmpeg, o.ffprobe), engine, video.Limits{})
		return p.Run(ctx, video.Task{
			Source: o.in,
			Dest:   o.out,
			Job:    render.Job{Settings: s, Font: font},
			OnState: func(st model.State) {
				fmt.Fprintln(os.Stderr, "state:", st)
			},
		})
	}

	data, err := os.ReadFile(o.in)
	if err != nil {
		return err
	}
	res, err := engine.RenderImage(data, s, font)
	if err != nil {
		return err
	}
	return os.WriteFile(o.out, res, 0o644)
}
