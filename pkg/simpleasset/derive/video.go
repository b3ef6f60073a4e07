package derive

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// deriveVideo probes container and stream metadata without a full decode.
// A probe failure is not fatal: the result degrades to minimal metadata and
// the job still completes. Thumbnail and resolution-ladder generation for
// video is best-effort and currently absent.
func (d *Deriver) deriveVideo(ctx context.Context, req Request) (*Result, error) {
	info, err := d.prober.Probe(ctx, req.Data)
	if err != nil {
		d.logger.Warn("video probe failed, degrading to minimal metadata", "err", err)
		return &Result{
			Metadata: &simpleasset.DerivedMetadata{
				Format: "video",
				Size:   int64(len(req.Data)),
			},
		}, nil
	}

	metadata := &simpleasset.DerivedMetadata{
		Width:           info.Width,
		Height:          info.Height,
		Format:          info.CodecName,
		Size:            int64(len(req.Data)),
		DurationSeconds: int(math.Round(info.Duration)),
		BitRate:         info.BitRate,
		FrameRate:       info.FrameRate,
		AudioCodec:      info.AudioCodec,
		AudioChannels:   info.AudioChannels,
		AudioSampleRate: info.AudioSampleRate,
		Container:       info.Container,
	}

	return &Result{Metadata: metadata}, nil
}

// VideoInfo holds stream and container attributes extracted by ffprobe.
type VideoInfo struct {
	Duration        float64
	Width           int
	Height          int
	FrameRate       string
	BitRate         int
	CodecName       string
	AudioCodec      string
	AudioChannels   int
	AudioSampleRate int
	Container       string
}

// ProbeConfig options for the prober
type ProbeConfig struct {
	FFprobePath string // defaults to "ffprobe" on PATH
	Runner      Runner // defaults to CommandRunner
}

// Prober extracts video metadata by running ffprobe over the blob bytes.
type Prober struct {
	path   string
	runner Runner
}

// NewProber creates a new ffprobe-backed prober
func NewProber(cfg ProbeConfig) *Prober {
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Runner == nil {
		cfg.Runner = NewCommandRunner()
	}
	return &Prober{path: cfg.FFprobePath, runner: cfg.Runner}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width,omitempty"`
		Height     int    `json:"height,omitempty"`
		RFrameRate string `json:"r_frame_rate,omitempty"`
		BitRate    string `json:"bit_rate,omitempty"`
		Duration   string `json:"duration,omitempty"`
		Channels   int    `json:"channels,omitempty"`
		SampleRate string `json:"sample_rate,omitempty"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

// Probe runs ffprobe over the given bytes via stdin
func (p *Prober) Probe(ctx context.Context, data []byte) (*VideoInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"pipe:0",
	}

	output, err := p.runner.RunWithInput(ctx, data, p.path, args...)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(output, &probeData); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := &VideoInfo{Container: probeData.Format.FormatName}

	if probeData.Format.Duration != "" {
		if duration, err := strconv.ParseFloat(probeData.Format.Duration, 64); err == nil {
			info.Duration = duration
		}
	}
	if probeData.Format.BitRate != "" {
		if bitRate, err := strconv.Atoi(probeData.Format.BitRate); err == nil {
			info.BitRate = bitRate
		}
	}

	for _, stream := range probeData.Streams {
		if stream.CodecType == "video" && info.Width == 0 {
			info.Width = stream.Width
			info.Height = stream.Height
			info.CodecName = stream.CodecName
			info.FrameRate = stream.RFrameRate

			if info.Duration == 0 && stream.Duration != "" {
				if duration, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
					info.Duration = duration
				}
			}
			if info.BitRate == 0 && stream.BitRate != "" {
				if bitRate, err := strconv.Atoi(stream.BitRate); err == nil {
					info.BitRate = bitRate
				}
			}
		} else if stream.CodecType == "audio" && info.AudioCodec == "" {
			info.AudioCodec = stream.CodecName
			info.AudioChannels = stream.Channels
			if stream.SampleRate != "" {
				if rate, err := strconv.Atoi(stream.SampleRate); err == nil {
					info.AudioSampleRate = rate
				}
			}
		}
	}

	if info.Width == 0 && info.CodecName == "" {
		return nil, fmt.Errorf("no video stream found")
	}

	return info, nil
}
