package subtitle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/ffmpeg"
)

type Action int

const (
	ActionNone Action = iota
	ActionEmbed
	ActionCopy
	ActionBurn
)

func (a Action) String() string {
	switch a {
	case ActionEmbed:
		return "embed"
	case ActionCopy:
		return "copy"
	case ActionBurn:
		return "burn"
	}
	return "none"
}

// Style is the look of burned-in text subtitles.
type Style struct {
	Font     string
	FontSize int
	// Color is an RGB hex string such as "FFFFFF".
	Color string
	// Box draws an opaque box behind the text.
	Box             bool
	DefaultEncoding string
}

type Options struct {
	// Hardcode reports whether the encoder can burn subtitles in.
	Hardcode bool
	Style    Style
}

// embedCodecs is the text codec each container stores subtitles as.
var embedCodecs = map[domain.VideoContainer]domain.SubtitleCodec{
	domain.VideoContainerMatroska: domain.SubtitleCodecASS,
	domain.VideoContainerWebM:     domain.SubtitleCodecWebVTT,
	domain.VideoContainerMP4:      domain.SubtitleCodecMovText,
	domain.VideoContainer3GP:      domain.SubtitleCodecMovText,
	domain.VideoContainerHLS:      domain.SubtitleCodecWebVTT,
	domain.VideoContainerAVI:      domain.SubtitleCodecSRT,
}

// copyCodecs lists source codecs a container takes without conversion.
var copyCodecs = map[domain.VideoContainer][]domain.SubtitleCodec{
	domain.VideoContainerMatroska: {
		domain.SubtitleCodecSRT, domain.SubtitleCodecASS, domain.SubtitleCodecSSA, domain.SubtitleCodecWebVTT,
		domain.SubtitleCodecVobSub, domain.SubtitleCodecPGS, domain.SubtitleCodecDVBSub,
	},
	domain.VideoContainerMP4:    {domain.SubtitleCodecMovText},
	domain.VideoContainerMPEGTS: {domain.SubtitleCodecDVBSub},
	domain.VideoContainerM2TS:   {domain.SubtitleCodecDVBSub, domain.SubtitleCodecPGS},
}

// EmbedCodec returns the codec subtitles are embedded as in container.
func EmbedCodec(container domain.VideoContainer) (domain.SubtitleCodec, bool) {
	c, ok := embedCodecs[container]
	return c, ok
}

func canCopy(container domain.VideoContainer, codec domain.SubtitleCodec) bool {
	for _, c := range copyCodecs[container] {
		if c == codec {
			return true
		}
	}
	return false
}

// Plan is the subtitle decision for one request.
type Plan struct {
	Action  Action
	Codec   domain.SubtitleCodec
	Streams []domain.SubtitleStream
	// Sidecar lists the tracks delivered next to the media instead of
	// inside it.
	Sidecar []domain.SubtitleStream

	source string
	all    []domain.SubtitleStream
	style  Style
}

// Decide chooses between embedding, copying, burning and dropping the
// subtitles of src for target t.
func Decide(src domain.VideoSource, t domain.VideoTarget, opts Options) (Plan, error) {
	plan := Plan{source: src.Path, all: src.Subtitles, style: opts.Style}
	if t.Subtitles == domain.SubtitleNone || len(src.Subtitles) == 0 {
		return plan, nil
	}

	var streams []domain.SubtitleStream
	if t.MultipleSubtitles && t.Subtitles != domain.SubtitleHardCoded {
		streams = SelectAll(src.Subtitles, t.SubtitleLanguages)
	} else if s, ok := Select(src.Subtitles, t.SubtitleLanguages); ok {
		streams = []domain.SubtitleStream{s}
	}
	if len(streams) == 0 {
		return plan, nil
	}

	container := t.Container
	if container == domain.VideoContainerUnknown {
		container = src.Container
	}

	switch t.Subtitles {
	case domain.SubtitleSoftCoded:
		plan.Sidecar = streams
		return plan, nil
	case domain.SubtitleHardCoded:
		if opts.Hardcode {
			plan.Action, plan.Streams = ActionBurn, streams[:1]
		}
		return plan, nil
	}

	codec, embeddable := EmbedCodec(container)
	if t.SubtitleCodec != domain.SubtitleCodecUnknown && (canCopy(container, t.SubtitleCodec) || t.SubtitleCodec == codec) {
		codec, embeddable = t.SubtitleCodec, true
	}

	var text, bitmap []domain.SubtitleStream
	for _, s := range streams {
		if s.Codec.IsImage() {
			bitmap = append(bitmap, s)
		} else {
			text = append(text, s)
		}
	}

	switch {
	case embeddable && len(text) > 0 && ffmpeg.SubtitleEncoder(codec) != "":
		plan.Action, plan.Codec, plan.Streams = ActionEmbed, codec, text
	case len(bitmap) > 0 && canCopy(container, bitmap[0].Codec):
		plan.Action, plan.Codec = ActionCopy, bitmap[0].Codec
		for _, s := range bitmap {
			if s.Codec == plan.Codec {
				plan.Streams = append(plan.Streams, s)
			}
		}
	case opts.Hardcode:
		plan.Action, plan.Streams = ActionBurn, streams[:1]
	default:
		return plan, ffmpeg.ErrSubtitleContainer
	}
	return plan, nil
}

// Languages returns the languages of the tracks that reach the output.
func (p Plan) Languages() []string {
	var langs []string
	for _, s := range p.Streams {
		langs = append(langs, s.Language)
	}
	return langs
}

// Fragment renders the plan as command builder arguments. A nil fragment
// makes the builder drop subtitles.
func (p Plan) Fragment() *ffmpeg.SubtitleFragment {
	switch p.Action {
	case ActionEmbed, ActionCopy:
		return p.embedFragment()
	case ActionBurn:
		return p.burnFragment()
	}
	return nil
}

func (p Plan) embedFragment() *ffmpeg.SubtitleFragment {
	frag := &ffmpeg.SubtitleFragment{
		Inputs:    map[int]string{},
		InputArgs: map[int][]string{},
	}

	var external []domain.SubtitleStream
	for _, s := range p.Streams {
		if s.IsEmbedded() {
			frag.Streams = append(frag.Streams, s.Index)
		} else {
			external = append(external, s)
		}
	}
	for i, s := range external {
		frag.Inputs[i] = s.Path
		if enc := p.encoding(s); enc != "" && !s.Codec.IsImage() {
			frag.InputArgs[i] = []string{"-sub_charenc", enc}
		}
	}
	frag.MapInputs = len(external) > 0

	frag.Codec = "copy"
	if p.Action == ActionEmbed {
		frag.Codec = ffmpeg.SubtitleEncoder(p.Codec)
	}

	ordered := make([]domain.SubtitleStream, 0, len(p.Streams))
	for _, s := range p.Streams {
		if s.IsEmbedded() {
			ordered = append(ordered, s)
		}
	}
	ordered = append(ordered, external...)
	for i, s := range ordered {
		if s.Language != "" {
			frag.Metadata = append(frag.Metadata, fmt.Sprintf("-metadata:s:s:%d", i), "language="+ISO3(s.Language))
		}
	}
	return frag
}

func (p Plan) burnFragment() *ffmpeg.SubtitleFragment {
	s := p.Streams[0]
	if s.Codec.IsImage() {
		if s.IsEmbedded() {
			return &ffmpeg.SubtitleFragment{Overlay: &ffmpeg.Overlay{Input: -1, Stream: s.Index}}
		}
		return &ffmpeg.SubtitleFragment{
			Inputs:  map[int]string{0: s.Path},
			Overlay: &ffmpeg.Overlay{Input: 0},
		}
	}

	var b strings.Builder
	if s.IsEmbedded() {
		fmt.Fprintf(&b, "subtitles=filename='%s':si=%d", escapeFilterPath(p.source), p.position(s))
	} else {
		fmt.Fprintf(&b, "subtitles=filename='%s'", escapeFilterPath(s.Path))
		if enc := p.encoding(s); enc != "" {
			fmt.Fprintf(&b, ":charenc='%s'", enc)
		}
	}
	if style := p.style.forceStyle(); style != "" {
		fmt.Fprintf(&b, ":force_style='%s'", style)
	}
	return &ffmpeg.SubtitleFragment{TextFilter: b.String()}
}

// position is the index of s among the embedded subtitle tracks of the
// source, which is what the subtitles filter addresses.
func (p Plan) position(s domain.SubtitleStream) int {
	n := 0
	for _, other := range p.all {
		if other.IsEmbedded() && other.Index < s.Index {
			n++
		}
	}
	return n
}

func (p Plan) encoding(s domain.SubtitleStream) string {
	if s.Encoding != "" {
		return s.Encoding
	}
	return p.style.DefaultEncoding
}

func (s Style) forceStyle() string {
	var parts []string
	if s.Font != "" {
		parts = append(parts, "FontName="+s.Font)
	}
	if s.FontSize > 0 {
		parts = append(parts, "FontSize="+strconv.Itoa(s.FontSize))
	}
	if c, ok := assColour(s.Color); ok {
		parts = append(parts, "PrimaryColour="+c)
	}
	if s.Box {
		parts = append(parts, "BorderStyle=3")
	}
	return strings.Join(parts, ",")
}

// assColour converts RRGGBB to the &HBBGGRR& form subtitle styles use.
func assColour(rgb string) (string, bool) {
	rgb = strings.TrimPrefix(strings.TrimPrefix(rgb, "#"), "0x")
	if len(rgb) != 6 {
		return "", false
	}
	if _, err := strconv.ParseUint(rgb, 16, 32); err != nil {
		return "", false
	}
	return "&H" + strings.ToUpper(rgb[4:6]+rgb[2:4]+rgb[0:2]) + "&", true
}

var filterPathEscaper = strings.NewReplacer(`\`, `\\\\`, `'`, `'\\\''`, `:`, `\\:`)

func escapeFilterPath(path string) string {
	return filterPathEscaper.Replace(path)
}
