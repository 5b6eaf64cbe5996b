package playlist

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"

	"github.com/eleven-am/transcoder/internal/domain"
)

const subtitleGroupID = "subs"

// Media renders the complete VOD playlist of a job before the segments
// exist. Segment URIs carry the base URL placeholder.
func Media(duration float64, segSeconds int) ([]byte, error) {
	segments := Segments(duration, segSeconds)
	if len(segments) == 0 {
		return nil, fmt.Errorf("media playlist: no segments for duration %.3f", duration)
	}

	vod := playlist.MediaPlaylistTypeVOD
	pl := playlist.Media{
		Version:        3,
		TargetDuration: segSeconds,
		PlaylistType:   &vod,
		Endlist:        true,
	}
	for _, seg := range segments {
		pl.Segments = append(pl.Segments, &playlist.MediaSegment{
			Duration: time.Duration(seg.Duration * float64(time.Second)),
			URI:      domain.BaseURLPlaceholder + SegmentName(int64(seg.Index)),
		})
	}
	return pl.Marshal()
}

// Master renders a multivariant playlist over variants with an optional
// WebVTT subtitle group.
func Master(variants []domain.Variant, subtitles []domain.SubtitleRendition) ([]byte, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("master playlist: no variants")
	}

	pl := playlist.Multivariant{
		Version:             3,
		IndependentSegments: true,
	}
	for _, sub := range subtitles {
		uri := sub.URI
		pl.Renditions = append(pl.Renditions, &playlist.MultivariantRendition{
			Type:       playlist.MultivariantRenditionTypeSubtitles,
			GroupID:    subtitleGroupID,
			Language:   sub.Language,
			Name:       sub.Name,
			Default:    sub.Default,
			Autoselect: true,
			URI:        &uri,
		})
	}

	for _, v := range variants {
		variant := &playlist.MultivariantVariant{
			Bandwidth: v.Bandwidth,
			Codecs:    codecs(v),
			URI:       v.URI,
		}
		if v.Width > 0 && v.Height > 0 {
			variant.Resolution = fmt.Sprintf("%dx%d", v.Width, v.Height)
		}
		if v.FrameRate > 0 {
			fr := math.Round(v.FrameRate*1000) / 1000
			variant.FrameRate = &fr
		}
		if len(subtitles) > 0 {
			variant.Subtitles = subtitleGroupID
		}
		pl.Variants = append(pl.Variants, variant)
	}
	return pl.Marshal()
}

// Rewrite replaces the base URL placeholder with baseURL, which gains a
// trailing slash when it has none.
func Rewrite(body []byte, baseURL string) []byte {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return bytes.ReplaceAll(body, []byte(domain.BaseURLPlaceholder), []byte(baseURL))
}

// Contains reports whether the playlist lists segment index.
func Contains(body []byte, index int64) bool {
	name := SegmentName(index)
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == name || strings.HasSuffix(line, "/"+name) || strings.HasSuffix(line, domain.BaseURLPlaceholder+name) {
			return true
		}
	}
	return false
}

// LastSegment returns the highest segment index the playlist lists.
func LastSegment(body []byte) (int64, bool) {
	var (
		last  int64
		found bool
	)
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.LastIndexAny(line, "/}"); i >= 0 {
			line = line[i+1:]
		}
		if n, ok := ParseSegmentIndex(line); ok && (!found || n > last) {
			last, found = n, true
		}
	}
	return last, found
}

func codecs(v domain.Variant) []string {
	var out []string
	switch v.VideoCodec {
	case domain.VideoCodecH264:
		out = append(out, avcCodec(v.Height))
	case domain.VideoCodecH265:
		out = append(out, "hvc1.1.6.L120.90")
	case domain.VideoCodecAV1:
		out = append(out, "av01.0.08M.08")
	}
	switch v.AudioCodec {
	case domain.AudioCodecAAC:
		out = append(out, "mp4a.40.2")
	case domain.AudioCodecAC3:
		out = append(out, "ac-3")
	case domain.AudioCodecEAC3:
		out = append(out, "ec-3")
	case domain.AudioCodecMP3:
		out = append(out, "mp4a.40.34")
	}
	return out
}

func avcCodec(height int) string {
	switch {
	case height >= 2160:
		return "avc1.640033"
	case height >= 1080:
		return "avc1.640028"
	case height >= 720:
		return "avc1.64001f"
	case height >= 480:
		return "avc1.64001e"
	default:
		return "avc1.640015"
	}
}
