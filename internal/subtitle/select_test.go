package subtitle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eleven-am/transcoder/internal/domain"
)

var tracks = []domain.SubtitleStream{
	{Index: 2, Codec: domain.SubtitleCodecSRT, Language: "eng"},
	{Index: 3, Codec: domain.SubtitleCodecASS, Language: "fra", Default: true},
	{Index: 4, Codec: domain.SubtitleCodecSRT, Language: "deu"},
	{Codec: domain.SubtitleCodecSRT, Language: "fr", Path: "/media/movie.fr.srt"},
}

func TestSelectPrefersExternalTrackOfPreferredLanguage(t *testing.T) {
	s, ok := Select(tracks, []string{"fr"})
	assert.True(t, ok)
	assert.Equal(t, "/media/movie.fr.srt", s.Path)

	s, _ = Select(tracks, []string{"ja", "de"})
	assert.Equal(t, 4, s.Index)
}

func TestSelectFallbacks(t *testing.T) {
	s, ok := Select(tracks, nil)
	assert.True(t, ok)
	assert.Equal(t, 3, s.Index, "default track")

	noDefault := []domain.SubtitleStream{
		{Index: 5, Language: "spa"},
		{Index: 6, Language: "en-GB"},
	}
	s, _ = Select(noDefault, []string{"it"})
	assert.Equal(t, 6, s.Index, "english")

	s, _ = Select([]domain.SubtitleStream{{Index: 7, Language: "spa"}}, nil)
	assert.Equal(t, 7, s.Index, "anything")

	_, ok = Select(nil, []string{"en"})
	assert.False(t, ok)
}

func TestSelectAll(t *testing.T) {
	got := SelectAll(tracks, []string{"de", "en", "ja"})
	if assert.Len(t, got, 2) {
		assert.Equal(t, 4, got[0].Index)
		assert.Equal(t, 2, got[1].Index)
	}

	assert.Len(t, SelectAll(tracks, []string{"ja"}), len(tracks))
}

func TestSameLanguage(t *testing.T) {
	assert.True(t, SameLanguage("en", "eng"))
	assert.True(t, SameLanguage("en-GB", "en-US"))
	assert.True(t, SameLanguage("FR", "fr"))
	assert.False(t, SameLanguage("en", "de"))
	assert.False(t, SameLanguage("", "en"))
}

func TestISO3(t *testing.T) {
	assert.Equal(t, "eng", ISO3("en"))
	assert.Equal(t, "fra", ISO3("fr-CA"))
	assert.Equal(t, "not a language", ISO3("Not A Language"))
}
