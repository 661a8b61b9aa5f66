package video

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

type ffprobeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
		NbFrames     string `json:"nb_frames"`
		Tags         struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, f.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (Info, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var (
		info        Info
		streamDur   string
		nbFrames    string
		videoFound  bool
		rotatedSide bool
	)
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if videoFound {
				continue
			}
			videoFound = true
			info.Width, info.Height = s.Width, s.Height
			info.FrameRate = pickFrameRate(s.RFrameRate, s.AvgFrameRate)
			streamDur = s.Duration
			nbFrames = s.NbFrames

			// ffmpeg сам поворачивает кадры при декодировании, размеры надо поменять местами
			rot, _ := strconv.ParseFloat(s.Tags.Rotate, 64)
			for _, sd := range s.SideDataList {
				if sd.Rotation != 0 {
					rot = sd.Rotation
				}
			}
			rotatedSide = int(math.Abs(rot))%180 == 90
		case "audio":
			info.HasAudio = true
		}
	}
	if !videoFound {
		return Info{}, fmt.Errorf("no video stream")
	}
	if rotatedSide {
		info.Width, info.Height = info.Height, info.Width
	}

	dur := parsed.Format.Duration
	if dur == "" || dur == "N/A" {
		dur = streamDur
	}
	if secs, err := strconv.ParseFloat(dur, 64); err == nil && secs > 0 {
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	// контейнер без длительности - считаем по числу кадров
	if info.Duration <= 0 {
		info.Duration = framesDuration(nbFrames, info.FrameRate)
	}
	return info, nil
}

// framesDuration returns n/fps, or 0 when either side is unknown.
func framesDuration(frames, rate string) time.Duration {
	n, err := strconv.ParseInt(strings.TrimSpace(frames), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	fps := 0.0
	if num, den, ok := strings.Cut(rate, "/"); ok {
		a, errA := strconv.ParseFloat(num, 64)
		b, errB := strconv.ParseFloat(den, 64)
		if errA == nil && errB == nil && b > 0 {
			fps = a / b
		}
	} else if v, err := strconv.ParseFloat(rate, 64); err == nil {
		fps = v
	}
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(n) / fps * float64(time.Second))
}

func pickFrameRate(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || c == "0/0" || c == "0" {
			continue
		}
		return c
	}
	return "25"
}
