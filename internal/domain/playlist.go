package domain

const (
	PlaylistFileName     = "playlist.m3u8"
	TempPlaylistFileName = "temp_playlist.m3u8"
	MasterFileName       = "master.m3u8"
	SubtitlePlaylistName = "subtitles.m3u8"

	// SegmentTemplate is handed to the muxer; SegmentNameFormat produces the
	// same names.
	SegmentTemplate   = "%05d.ts"
	SegmentNameFormat = "%05d.ts"

	// SegmentDirSuffix marks a segment directory in the cache.
	SegmentDirSuffix = "_mptf"

	// BaseURLPlaceholder prefixes every segment URI written to disk and is
	// replaced per client when the playlist is served.
	BaseURLPlaceholder = "{{BASE_URL}}"
)
