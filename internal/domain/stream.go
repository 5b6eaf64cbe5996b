package domain

// Bitrates are in kbit/s, durations and frame rates in seconds and frames per
// second, frequencies in Hz.

type VideoStream struct {
	Index            int
	Codec            VideoCodec
	Width            int
	Height           int
	PixelAspectRatio float64
	PixelFormat      PixelFormat
	FrameRate        float64
	Bitrate          int
	Profile          string
	Level            float64
}

type AudioStream struct {
	Index     int
	Codec     AudioCodec
	Language  string
	Channels  int
	Bitrate   int
	Frequency int
	Default   bool
}

type SubtitleStream struct {
	Index    int
	Codec    SubtitleCodec
	Language string
	Default  bool
	Forced   bool

	// Path is set for subtitles stored next to the media. Embedded tracks
	// leave it empty and are addressed by Index.
	Path     string
	Encoding string
}

func (s SubtitleStream) IsEmbedded() bool {
	return s.Path == ""
}

type VideoSource struct {
	Path      string
	Container VideoContainer
	Duration  float64
	Video     VideoStream
	Audios    []AudioStream
	Subtitles []SubtitleStream
}

type AudioSource struct {
	Path      string
	Container AudioContainer
	Duration  float64
	Stream    AudioStream
}

type ImageSource struct {
	Path        string
	Container   ImageContainer
	Width       int
	Height      int
	Orientation int
	PixelFormat PixelFormat
}

// Segment is one fixed-length slice of a segmented output.
type Segment struct {
	Index    int
	Start    float64
	End      float64
	Duration float64
}
