// Package subtitle picks subtitle tracks for a request and decides how they
// reach the output.
package subtitle

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/eleven-am/transcoder/internal/domain"
)

// Select returns the best subtitle for the preferred languages: a preferred
// language in order, then a default track, then English, then anything.
// External files win over embedded tracks at every level.
func Select(streams []domain.SubtitleStream, preferred []string) (domain.SubtitleStream, bool) {
	if len(streams) == 0 {
		return domain.SubtitleStream{}, false
	}
	for _, lang := range preferred {
		if s, ok := pick(streams, func(s domain.SubtitleStream) bool { return SameLanguage(s.Language, lang) }); ok {
			return s, true
		}
	}
	if s, ok := pick(streams, func(s domain.SubtitleStream) bool { return s.Default }); ok {
		return s, true
	}
	if s, ok := pick(streams, func(s domain.SubtitleStream) bool { return SameLanguage(s.Language, "en") }); ok {
		return s, true
	}
	return pick(streams, func(domain.SubtitleStream) bool { return true })
}

// SelectAll returns one track per preferred language, in preference order,
// or every track when no preference matches.
func SelectAll(streams []domain.SubtitleStream, preferred []string) []domain.SubtitleStream {
	var out []domain.SubtitleStream
	for _, lang := range preferred {
		if s, ok := pick(streams, func(s domain.SubtitleStream) bool { return SameLanguage(s.Language, lang) }); ok {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}
	return append(out, streams...)
}

func pick(streams []domain.SubtitleStream, match func(domain.SubtitleStream) bool) (domain.SubtitleStream, bool) {
	var (
		embedded domain.SubtitleStream
		found    bool
	)
	for _, s := range streams {
		if !match(s) {
			continue
		}
		if !s.IsEmbedded() {
			return s, true
		}
		if !found {
			embedded, found = s, true
		}
	}
	return embedded, found
}

// SameLanguage compares two language codes by their base language, so "en",
// "eng" and "en-GB" match.
func SameLanguage(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.EqualFold(a, b) {
		return true
	}
	ta, errA := language.Parse(a)
	tb, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	ba, _ := ta.Base()
	bb, _ := tb.Base()
	return ba == bb
}

// ISO3 returns the three letter code for lang, or lang lowercased when it
// cannot be parsed.
func ISO3(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(lang)
	}
	base, _ := tag.Base()
	return base.ISO3()
}
