package domain

type QualityMode string

const (
	QualityDefault QualityMode = ""
	QualityBest    QualityMode = "best"
	QualityNormal  QualityMode = "normal"
	QualityLow     QualityMode = "low"
	QualityCustom  QualityMode = "custom"
)

type EncodePreset string

const (
	PresetDefault   EncodePreset = ""
	PresetUltraFast EncodePreset = "ultrafast"
	PresetVeryFast  EncodePreset = "veryfast"
	PresetFast      EncodePreset = "fast"
	PresetMedium    EncodePreset = "medium"
	PresetSlow      EncodePreset = "slow"
	PresetVerySlow  EncodePreset = "veryslow"
)

type SubtitleSupport string

const (
	SubtitleNone      SubtitleSupport = ""
	SubtitleSoftCoded SubtitleSupport = "softcoded"
	SubtitleHardCoded SubtitleSupport = "hardcoded"
	SubtitleEmbedded  SubtitleSupport = "embedded"
)

// AllAudioStreams selects every source audio stream instead of one.
const AllAudioStreams = -1

type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
	KindImage Kind = "image"
)

// Job identifies a transcode and carries the optional caller overrides.
type Job struct {
	TranscodeID string
	ClientID    string

	// BinaryPath replaces the configured encoder binary for this job.
	BinaryPath string
	// Arguments replaces the generated argument list. The tokens {input},
	// {output} and {subtitle} are substituted before splitting.
	Arguments string
}

// Request is implemented by *VideoRequest, *AudioRequest and *ImageRequest
// only.
type Request interface {
	Identity() Job
	Kind() Kind
	sealed()
}

type VideoTarget struct {
	Container     VideoContainer
	Codec         VideoCodec
	PixelFormat   PixelFormat
	AspectRatio   float64
	MaxHeight     int
	Bitrate       int
	Quality       QualityMode
	QualityFactor int
	Preset        EncodePreset
	Profile       string
	Level         float64
	SquarePixels  bool
	ForceEncode   bool
	MovFlags      string

	AudioCodec     AudioCodec
	AudioBitrate   int
	AudioFrequency int
	ForceStereo    bool
	// AudioIndex is the position in the source audio list, or
	// AllAudioStreams.
	AudioIndex int

	Subtitles         SubtitleSupport
	SubtitleCodec     SubtitleCodec
	SubtitleLanguages []string
	MultipleSubtitles bool

	Live       bool
	HLSBaseURL string
}

type VideoRequest struct {
	Job
	Sources []VideoSource
	Target  VideoTarget
}

func (r *VideoRequest) Identity() Job { return r.Job }
func (r *VideoRequest) Kind() Kind    { return KindVideo }
func (r *VideoRequest) sealed()       {}

// Source returns the first part of the request.
func (r *VideoRequest) Source() VideoSource {
	if len(r.Sources) == 0 {
		return VideoSource{}
	}
	return r.Sources[0]
}

// Duration is the summed duration of all parts.
func (r *VideoRequest) Duration() float64 {
	var d float64
	for _, s := range r.Sources {
		d += s.Duration
	}
	return d
}

type AudioTarget struct {
	Container   AudioContainer
	Codec       AudioCodec
	Bitrate     int
	Frequency   int
	ForceStereo bool
	Live        bool
}

type AudioRequest struct {
	Job
	Source AudioSource
	Target AudioTarget
}

func (r *AudioRequest) Identity() Job { return r.Job }
func (r *AudioRequest) Kind() Kind    { return KindAudio }
func (r *AudioRequest) sealed()       {}

type ImageTarget struct {
	Container     ImageContainer
	PixelFormat   PixelFormat
	MaxWidth      int
	MaxHeight     int
	Quality       QualityMode
	QualityFactor int
	AutoRotate    bool
}

type ImageRequest struct {
	Job
	Source ImageSource
	Target ImageTarget
}

func (r *ImageRequest) Identity() Job { return r.Job }
func (r *ImageRequest) Kind() Kind    { return KindImage }
func (r *ImageRequest) sealed()       {}
