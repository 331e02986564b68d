package media

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProbeInfo is the subset of ffprobe output the pipeline cares about.
type ProbeInfo struct {
	Duration  float64 // seconds
	Width     int
	Height    int
	FrameRate float64
	HasVideo  bool
	HasAudio  bool
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbe(data []byte) (*ProbeInfo, error) {
	var probeData ffprobeOutput
	if err := json.Unmarshal(data, &probeData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}

	info := &ProbeInfo{}
	if probeData.Format.Duration != "" {
		d, err := strconv.ParseFloat(probeData.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse duration string %q: %w", probeData.Format.Duration, err)
		}
		info.Duration = d
	}

	for _, s := range probeData.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width = s.Width
			info.Height = s.Height
			info.FrameRate = parseRate(s.RFrameRate)
		case "audio":
			info.HasAudio = true
		}
	}
	return info, nil
}

// parseRate turns "30000/1001" or "25" into frames per second; 0 on garbage.
func parseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
