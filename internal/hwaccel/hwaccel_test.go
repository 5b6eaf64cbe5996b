package hwaccel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/transcoder/internal/domain"
)

func TestDetectParsesFakeFFmpegOutput(t *testing.T) {
	tmp := t.TempDir()
	script := filepath.Join(tmp, "ffmpeg")
	require.NoError(t, os.WriteFile(script, []byte(fakeFFmpegDetectScript), 0755))

	caps, err := Detect(context.Background(), script)
	require.NoError(t, err)

	assert.True(t, caps.Supports(domain.AccelCUDA, domain.VideoCodecH264))
	assert.True(t, caps.Supports(domain.AccelCUDA, domain.VideoCodecH265))
	assert.True(t, caps.Supports(domain.AccelVideoToolbox, domain.VideoCodecH264))
	assert.False(t, caps.Supports(domain.AccelVideoToolbox, domain.VideoCodecH265))
	assert.False(t, caps.Supports(domain.AccelQSV, domain.VideoCodecH264), "qsv listed as hwaccel but has no encoder")
	assert.True(t, caps.Supports(domain.AccelNone, domain.VideoCodecH264))
	assert.False(t, caps.Supports(domain.AccelNone, domain.VideoCodecVP9))
}

func TestDetectFailsWhenBinaryMissing(t *testing.T) {
	_, err := Detect(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSelectPrefersPriorityOrder(t *testing.T) {
	caps := Capabilities{
		domain.AccelVideoToolbox: {domain.VideoCodecH264: true},
		domain.AccelCUDA:         {domain.VideoCodecH264: true},
		domain.AccelVAAPI:        {domain.VideoCodecH265: true},
	}

	assert.Equal(t, domain.AccelCUDA, Select(caps, DefaultPriority, domain.VideoCodecH264))
	assert.Equal(t, domain.AccelVAAPI, Select(caps, DefaultPriority, domain.VideoCodecH265))
	assert.Equal(t, domain.AccelNone, Select(caps, DefaultPriority, domain.VideoCodecVP9))
}

func TestNewConfigReturnsExpectedFlags(t *testing.T) {
	cfg := NewConfig(domain.AccelQSV, domain.VideoCodecH265)
	assert.Equal(t, "hevc_qsv", cfg.Encoder)
	assert.Equal(t, []string{"-c:v", "hevc_qsv"}, cfg.EncodeFlags)

	fallback := NewConfig(domain.AccelVideoToolbox, domain.VideoCodecVP9)
	assert.Equal(t, domain.AccelNone, fallback.Accelerator)
	assert.Equal(t, "libvpx-vp9", fallback.Encoder)

	none := NewConfig(domain.Accelerator("unknown"), domain.VideoCodecH264)
	assert.Equal(t, domain.AccelNone, none.Accelerator)
	assert.Equal(t, "libx264", none.Encoder)
}

const fakeFFmpegDetectScript = `#!/bin/sh
if [ "$2" = "-hwaccels" ]; then
cat <<'EOF'
Hardware acceleration methods:
cuda
videotoolbox
qsv
EOF
exit 0
fi
if [ "$2" = "-encoders" ]; then
cat <<'EOF'
Encoders:
 V..... = Video
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder
 V....D hevc_nvenc           NVIDIA NVENC hevc encoder
 V....D h264_videotoolbox    VideoToolbox H.264 Encoder
 A....D aac                  AAC (Advanced Audio Coding)
EOF
exit 0
fi
exit 1
`
