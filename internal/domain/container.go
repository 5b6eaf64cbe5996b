package domain

type VideoContainer string

const (
	VideoContainerUnknown  VideoContainer = ""
	VideoContainerMP4      VideoContainer = "mp4"
	VideoContainerMatroska VideoContainer = "matroska"
	VideoContainerAVI      VideoContainer = "avi"
	VideoContainerMPEGTS   VideoContainer = "mpegts"
	VideoContainerM2TS     VideoContainer = "m2ts"
	VideoContainerWTV      VideoContainer = "wtv"
	VideoContainerHLS      VideoContainer = "hls"
	VideoContainerASF      VideoContainer = "asf"
	VideoContainerFLV      VideoContainer = "flv"
	VideoContainerWebM     VideoContainer = "webm"
	VideoContainerMPEGPS   VideoContainer = "mpeg"
	VideoContainer3GP      VideoContainer = "3gp"
)

// IsMPEGTS reports whether the container carries an MPEG transport stream.
func (c VideoContainer) IsMPEGTS() bool {
	switch c {
	case VideoContainerMPEGTS, VideoContainerM2TS, VideoContainerWTV, VideoContainerHLS:
		return true
	}
	return false
}

// RequiresSquarePixels reports containers whose players ignore the sample
// aspect ratio.
func (c VideoContainer) RequiresSquarePixels() bool {
	return c == VideoContainerASF || c == VideoContainerFLV
}

// Muxer is the ffmpeg -f value for the container.
func (c VideoContainer) Muxer() string {
	switch c {
	case VideoContainerMPEGTS, VideoContainerM2TS, VideoContainerWTV:
		return "mpegts"
	case VideoContainerMPEGPS:
		return "mpeg"
	case VideoContainer3GP:
		return "3gp"
	case VideoContainerUnknown:
		return ""
	}
	return string(c)
}

func (c VideoContainer) Extension() string {
	switch c {
	case VideoContainerMatroska:
		return "mkv"
	case VideoContainerMPEGTS:
		return "ts"
	case VideoContainerHLS:
		return "m3u8"
	case VideoContainerMPEGPS:
		return "mpg"
	case VideoContainerUnknown:
		return "mptv"
	}
	return string(c)
}

type AudioContainer string

const (
	AudioContainerUnknown AudioContainer = ""
	AudioContainerMP3     AudioContainer = "mp3"
	AudioContainerADTS    AudioContainer = "adts"
	AudioContainerAC3     AudioContainer = "ac3"
	AudioContainerFLAC    AudioContainer = "flac"
	AudioContainerWAV     AudioContainer = "wav"
	AudioContainerOgg     AudioContainer = "ogg"
	AudioContainerMP4     AudioContainer = "mp4"
	AudioContainerASF     AudioContainer = "asf"
	AudioContainerLPCM    AudioContainer = "s16be"
)

func (c AudioContainer) Muxer() string {
	switch c {
	case AudioContainerMP4:
		return "ipod"
	case AudioContainerUnknown:
		return ""
	}
	return string(c)
}

func (c AudioContainer) Extension() string {
	switch c {
	case AudioContainerADTS:
		return "aac"
	case AudioContainerMP4:
		return "m4a"
	case AudioContainerASF:
		return "wma"
	case AudioContainerLPCM:
		return "pcm"
	case AudioContainerUnknown:
		return "mpta"
	}
	return string(c)
}

type ImageContainer string

const (
	ImageContainerUnknown ImageContainer = ""
	ImageContainerJPEG    ImageContainer = "jpeg"
	ImageContainerPNG     ImageContainer = "png"
	ImageContainerGIF     ImageContainer = "gif"
	ImageContainerBMP     ImageContainer = "bmp"
	ImageContainerWebP    ImageContainer = "webp"
)

// Encoder is the ffmpeg image encoder for the container.
func (c ImageContainer) Encoder() string {
	switch c {
	case ImageContainerJPEG:
		return "mjpeg"
	case ImageContainerWebP:
		return "libwebp"
	case ImageContainerUnknown:
		return ""
	}
	return string(c)
}

func (c ImageContainer) Extension() string {
	switch c {
	case ImageContainerJPEG:
		return "jpg"
	case ImageContainerUnknown:
		return "mpti"
	}
	return string(c)
}
