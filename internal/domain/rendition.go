package domain

// Variant describes one stream advertised by a master playlist.
type Variant struct {
	Width      int
	Height     int
	Bandwidth  int
	FrameRate  float64
	VideoCodec VideoCodec
	AudioCodec AudioCodec
	URI        string
}

// SubtitleRendition is a WebVTT rendition listed next to a variant.
type SubtitleRendition struct {
	Language string
	Name     string
	Default  bool
	URI      string
}
