package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/transcoder/internal/domain"
)

func TestArgs_ComposesBlocksInOrder(t *testing.T) {
	d := NewTranscodeData(domain.Job{TranscodeID: "t"})
	d.GlobalArgs = []string{"-y"}
	d.AddInput(1, "/b.mkv", "-threads", "2")
	d.AddInput(0, "/a.mkv", "-ss", "10.000")
	d.AddSubtitleInput(0, "/a.srt", "-sub_charenc", "CP1252")
	d.OutputArgs = []string{"-map", "[v]"}
	d.OutputFilter = []string{"[0:v:0][1:v:0]concat=n=2:v=1:a=0[v]"}
	d.OutputPath = "/out.mkv"

	args, err := d.Args()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-y",
		"-ss", "10.000", "-i", "/a.mkv",
		"-threads", "2", "-i", "/b.mkv",
		"-sub_charenc", "CP1252", "-i", "/a.srt",
		"-map", "[v]",
		"-filter_complex", "[0:v:0][1:v:0]concat=n=2:v=1:a=0[v]",
		"/out.mkv",
	}, args)
	assert.Equal(t, 2, d.SubtitleInputIndex(0))
	assert.Equal(t, -1, d.SubtitleInputIndex(5))
}

func TestArgs_RequiresOutput(t *testing.T) {
	d := NewTranscodeData(domain.Job{TranscodeID: "t"})
	d.AddInput(0, "/a.mkv")
	_, err := d.Args()
	assert.Error(t, err)
}

func TestArgs_OverrideSubstitutesTokens(t *testing.T) {
	d := NewTranscodeData(domain.Job{TranscodeID: "t", Arguments: "-i {input} -i {subtitle} -c:s mov_text {output}"})
	d.AddInput(0, "/media/a b.mkv")
	d.AddSubtitleInput(0, "/media/a b.srt")
	d.OutputPath = "/cache/out.mp4"

	args, err := d.Args()
	require.NoError(t, err)
	assert.Equal(t, []string{"-i", "/media/a b.mkv", "-i", "/media/a b.srt", "-c:s", "mov_text", "/cache/out.mp4"}, args)
}

func TestString_QuotesForLogs(t *testing.T) {
	d := NewTranscodeData(domain.Job{TranscodeID: "t", BinaryPath: "/opt/ffmpeg"})
	d.AddInput(0, "/media/a b.mkv")
	d.OutputArgs = []string{"-map", "[v]"}
	d.OutputPath = PipeOutput

	assert.Equal(t, `/opt/ffmpeg -i "/media/a b.mkv" -map "[v]" pipe:1`, d.String())
	assert.True(t, d.IsPipe())
}

func TestBitstreamArgs(t *testing.T) {
	assert.Equal(t, []string{"-bsf:v", "hevc_mp4toannexb"},
		bitstreamArgs("v", "h265", true, domain.VideoContainerMP4, domain.VideoContainerHLS))
	assert.Empty(t, bitstreamArgs("v", "h264", true, domain.VideoContainerMPEGTS, domain.VideoContainerHLS))
	assert.Equal(t, []string{"-bsf:v", "mpeg4_unpack_bframes"},
		bitstreamArgs("v", "mpeg4", true, domain.VideoContainerAVI, domain.VideoContainerMatroska))
	assert.Equal(t, []string{"-bsf:a", "aac_adtstoasc"},
		bitstreamArgs("a", "aac", true, domain.VideoContainerMPEGTS, domain.VideoContainerMP4))
	assert.Empty(t, bitstreamArgs("a", "aac", false, domain.VideoContainerMPEGTS, domain.VideoContainerMP4))
}

func TestContainerAudioCodec(t *testing.T) {
	assert.Equal(t, domain.AudioCodecAAC, containerAudioCodec(domain.VideoContainerHLS, domain.AudioCodecDTS))
	assert.Equal(t, domain.AudioCodecAC3, containerAudioCodec(domain.VideoContainerHLS, domain.AudioCodecAC3))
	assert.Equal(t, domain.AudioCodecOpus, containerAudioCodec(domain.VideoContainerWebM, domain.AudioCodecAAC))
	assert.Equal(t, domain.AudioCodecDTS, containerAudioCodec(domain.VideoContainerMatroska, domain.AudioCodecDTS))
	assert.Equal(t, domain.AudioCodecAAC, containerAudioCodec(domain.VideoContainerMatroska, domain.AudioCodecUnknown))
}
