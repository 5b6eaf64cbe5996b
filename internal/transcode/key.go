package transcode

import (
	"path"
	"strconv"
	"strings"

	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/playlist"
	"github.com/eleven-am/transcoder/internal/subtitle"
)

// VideoName is the cache name of a video transcode. Outputs that start at
// zero carry the selected audio and subtitle choices; seeked outputs carry
// the start second instead.
func VideoName(r *domain.VideoRequest, plan subtitle.Plan, timeStart float64) string {
	var b strings.Builder
	b.WriteString(r.TranscodeID)
	if timeStart > 0 {
		b.WriteString("." + strconv.FormatInt(int64(timeStart), 10))
	} else {
		variantSuffix(&b, r, plan)
	}
	b.WriteString("." + r.Target.Container.Extension())
	return b.String()
}

// SegmentDirName is the directory a segmented transcode writes to. It does
// not depend on the start time: segments are numbered from the start of
// the media, so seeks reuse the same directory.
func SegmentDirName(r *domain.VideoRequest, plan subtitle.Plan) string {
	var b strings.Builder
	b.WriteString(r.TranscodeID)
	variantSuffix(&b, r, plan)
	b.WriteString(domain.SegmentDirSuffix)
	return b.String()
}

func variantSuffix(b *strings.Builder, r *domain.VideoRequest, plan subtitle.Plan) {
	src := r.Source()
	if len(src.Audios) > 0 {
		pos := r.Target.AudioIndex
		if pos < 0 || pos >= len(src.Audios) {
			pos = 0
		}
		b.WriteString(".A" + strconv.Itoa(src.Audios[pos].Index))
	}
	if r.Target.AudioIndex == domain.AllAudioStreams && len(src.Audios) > 1 {
		b.WriteString(".MultiA")
	}
	switch plan.Action {
	case subtitle.ActionBurn:
		b.WriteString(".HC")
		if langs := plan.Languages(); len(langs) > 0 {
			b.WriteString(langs[0])
		}
	case subtitle.ActionEmbed, subtitle.ActionCopy:
		b.WriteString(".MultiS")
	}
}

func AudioName(r *domain.AudioRequest, timeStart float64) string {
	name := r.TranscodeID
	if timeStart > 0 {
		name += "." + strconv.FormatInt(int64(timeStart), 10)
	}
	return name + "." + r.Target.Container.Extension()
}

func ImageName(r *domain.ImageRequest) string {
	return r.TranscodeID + "." + r.Target.Container.Extension()
}

// PartialName is the file a partial transcode writes for name. It is
// never served as a cache hit.
func PartialName(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + ".partial" + ext
}

func segmentFile(dir string, index int64) string {
	return path.Join(dir, playlist.SegmentName(index))
}
