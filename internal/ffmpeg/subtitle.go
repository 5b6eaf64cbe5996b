package ffmpeg

import "fmt"

// SubtitleFragment is what the subtitle bridge contributes to a command.
type SubtitleFragment struct {
	// Inputs are external subtitle files keyed by source part, with the
	// options placed before their -i.
	Inputs    map[int]string
	InputArgs map[int][]string

	// Streams are embedded subtitle stream indexes of the first input that
	// are mapped into the output.
	Streams []int
	// MapInputs maps every external subtitle input into the output.
	MapInputs bool
	// Codec is the -c:s value, "copy" included.
	Codec    string
	Metadata []string

	// TextFilter burns text subtitles through the video filter chain.
	TextFilter string
	// Overlay burns a bitmap subtitle through an overlay graph node.
	Overlay *Overlay

	// Disable drops every subtitle stream.
	Disable bool
}

// Overlay names the bitmap subtitle stream to draw over the video. Input is
// a key into SubtitleFragment.Inputs, or -1 for an embedded stream.
type Overlay struct {
	Input  int
	Stream int
}

func (f *SubtitleFragment) burns() bool {
	return f != nil && (f.TextFilter != "" || f.Overlay != nil)
}

func (f *SubtitleFragment) applyInputs(d *TranscodeData) {
	if f == nil {
		return
	}
	for key, path := range f.Inputs {
		d.AddSubtitleInput(key, path, f.InputArgs[key]...)
	}
}

func (f *SubtitleFragment) overlayLabel(d *TranscodeData) string {
	if f.Overlay.Input >= 0 {
		return fmt.Sprintf("[%d:0]", d.SubtitleInputIndex(f.Overlay.Input))
	}
	return fmt.Sprintf("[0:%d]", f.Overlay.Stream)
}

func (f *SubtitleFragment) mapArgs(d *TranscodeData) []string {
	if f == nil || f.Disable {
		return nil
	}
	var args []string
	for _, idx := range f.Streams {
		args = append(args, "-map", fmt.Sprintf("0:%d", idx))
	}
	if f.MapInputs {
		for _, key := range sortedKeys(f.Inputs) {
			args = append(args, "-map", fmt.Sprintf("%d:0", d.SubtitleInputIndex(key)))
		}
	}
	return args
}

func (f *SubtitleFragment) outputArgs() []string {
	if f == nil {
		return []string{"-sn"}
	}
	if f.Disable || (f.Codec == "" && len(f.Streams) == 0 && !f.MapInputs) {
		return []string{"-sn"}
	}
	var args []string
	if f.Codec != "" {
		args = append(args, "-c:s", f.Codec)
	}
	return append(args, f.Metadata...)
}
