package hwaccel

import (
	"bufio"
	"context"
	"os/exec"
	"strings"

	"github.com/eleven-am/transcoder/internal/domain"
)

// DefaultPriority is the order hardware backends are tried in.
var DefaultPriority = []domain.Accelerator{domain.AccelCUDA, domain.AccelQSV, domain.AccelVideoToolbox, domain.AccelVAAPI}

var hardwareEncoders = map[domain.Accelerator]map[domain.VideoCodec]string{
	domain.AccelCUDA: {
		domain.VideoCodecH264: "h264_nvenc",
		domain.VideoCodecH265: "hevc_nvenc",
		domain.VideoCodecAV1:  "av1_nvenc",
	},
	domain.AccelQSV: {
		domain.VideoCodecH264: "h264_qsv",
		domain.VideoCodecH265: "hevc_qsv",
		domain.VideoCodecAV1:  "av1_qsv",
	},
	domain.AccelVideoToolbox: {
		domain.VideoCodecH264: "h264_videotoolbox",
		domain.VideoCodecH265: "hevc_videotoolbox",
	},
	domain.AccelVAAPI: {
		domain.VideoCodecH264: "h264_vaapi",
		domain.VideoCodecH265: "hevc_vaapi",
		domain.VideoCodecAV1:  "av1_vaapi",
	},
}

var softwareEncoders = map[domain.VideoCodec]string{
	domain.VideoCodecH264:  "libx264",
	domain.VideoCodecH265:  "libx265",
	domain.VideoCodecMPEG2: "mpeg2video",
	domain.VideoCodecMPEG4: "mpeg4",
	domain.VideoCodecVP8:   "libvpx",
	domain.VideoCodecVP9:   "libvpx-vp9",
	domain.VideoCodecAV1:   "libsvtav1",
	domain.VideoCodecWMV:   "wmv2",
	domain.VideoCodecMJPEG: "mjpeg",
}

// Capabilities lists the codecs each usable accelerator can encode.
type Capabilities map[domain.Accelerator]map[domain.VideoCodec]bool

func (c Capabilities) Supports(accel domain.Accelerator, codec domain.VideoCodec) bool {
	return c[accel][codec]
}

// Detect asks the encoder binary which hardware backends and encoders it was
// built with. Software is always present.
func Detect(ctx context.Context, binary string) (Capabilities, error) {
	if binary == "" {
		binary = "ffmpeg"
	}

	hwaccels, err := detectHWAccels(ctx, binary)
	if err != nil {
		return nil, err
	}

	encoders, err := detectEncoders(ctx, binary)
	if err != nil {
		return nil, err
	}

	caps := Capabilities{domain.AccelNone: {}}
	for codec, name := range softwareEncoders {
		if encoders[name] {
			caps[domain.AccelNone][codec] = true
		}
	}

	for accel, table := range hardwareEncoders {
		if !hwaccels[string(accel)] {
			continue
		}
		for codec, name := range table {
			if !encoders[name] {
				continue
			}
			if caps[accel] == nil {
				caps[accel] = map[domain.VideoCodec]bool{}
			}
			caps[accel][codec] = true
		}
	}

	return caps, nil
}

// Select returns the first accelerator in priority order that can encode
// codec, or AccelNone.
func Select(caps Capabilities, priority []domain.Accelerator, codec domain.VideoCodec) domain.Accelerator {
	for _, accel := range priority {
		if caps.Supports(accel, codec) {
			return accel
		}
	}
	return domain.AccelNone
}

// NewConfig returns the encoder flags for codec on accel. Codecs the
// accelerator cannot encode fall back to the software encoder.
func NewConfig(accel domain.Accelerator, codec domain.VideoCodec) *domain.HWAccelConfig {
	encoder, ok := hardwareEncoders[accel][codec]
	if !ok {
		accel = domain.AccelNone
	}

	switch accel {
	case domain.AccelCUDA:
		return &domain.HWAccelConfig{
			Accelerator: domain.AccelCUDA,
			Codec:       codec,
			DecodeFlags: []string{"-hwaccel", "cuda", "-hwaccel_output_format", "cuda"},
			EncodeFlags: []string{"-c:v", encoder, "-tune", "ll"},
			Encoder:     encoder,
			ScaleFilter: "scale_cuda=%d:%d:format=nv12",
		}
	case domain.AccelVideoToolbox:
		return &domain.HWAccelConfig{
			Accelerator: domain.AccelVideoToolbox,
			Codec:       codec,
			DecodeFlags: []string{"-hwaccel", "videotoolbox"},
			EncodeFlags: []string{"-c:v", encoder, "-realtime", "true", "-prio_speed", "true"},
			Encoder:     encoder,
			ScaleFilter: "scale=%d:%d",
		}
	case domain.AccelVAAPI:
		return &domain.HWAccelConfig{
			Accelerator: domain.AccelVAAPI,
			Codec:       codec,
			DecodeFlags: []string{"-hwaccel", "vaapi", "-vaapi_device", "/dev/dri/renderD128", "-hwaccel_output_format", "vaapi"},
			EncodeFlags: []string{"-c:v", encoder},
			Encoder:     encoder,
			ScaleFilter: "scale_vaapi=%d:%d:format=nv12",
		}
	case domain.AccelQSV:
		return &domain.HWAccelConfig{
			Accelerator: domain.AccelQSV,
			Codec:       codec,
			DecodeFlags: []string{"-hwaccel", "qsv", "-hwaccel_output_format", "qsv"},
			EncodeFlags: []string{"-c:v", encoder},
			Encoder:     encoder,
			ScaleFilter: "scale_qsv=%d:%d:format=nv12",
		}
	default:
		encoder = softwareEncoders[codec]
		if encoder == "" {
			encoder = string(codec)
		}
		return &domain.HWAccelConfig{
			Accelerator: domain.AccelNone,
			Codec:       codec,
			DecodeFlags: []string{},
			EncodeFlags: []string{"-c:v", encoder},
			Encoder:     encoder,
			ScaleFilter: "scale=%d:%d",
		}
	}
}

func detectHWAccels(ctx context.Context, binary string) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-hwaccels")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	result := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasSuffix(line, ":") {
			result[line] = true
		}
	}

	return result, nil
}

func detectEncoders(ctx context.Context, binary string) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	result := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(string(output)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "V") {
			continue
		}
		result[fields[1]] = true
	}

	return result, nil
}
