package negotiate

// EstimateBitrate guesses a video bitrate in kbit/s from the picture height
// when neither source nor target declares one.
func EstimateBitrate(height int) int {
	switch {
	case height >= 2160:
		return 15000
	case height >= 1080:
		return 5000
	case height >= 720:
		return 2500
	case height >= 480:
		return 1200
	default:
		return 800
	}
}

// Bandwidth is the peak bits per second advertised for a variant.
func Bandwidth(videoKbps, audioKbps, height int) int {
	if videoKbps <= 0 {
		videoKbps = EstimateBitrate(height)
	}
	if audioKbps <= 0 {
		audioKbps = DefaultAudioBitrate
	}
	return (videoKbps + audioKbps) * 1000
}
