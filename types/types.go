package types

// Format describes a playable media rendition.
//
// Codec fields use "none" to state the track is absent and the empty string
// when the codec is unknown. RTMP formats carry App/PlayPath/PageURL in
// addition to the connection URL.
type Format struct {
	ID       string
	URL      string
	Ext      string
	Height   int
	Bitrate  int
	Filesize int64
	ACodec   string
	VCodec   string
	App      string
	PlayPath string
	PageURL  string
}

// Thumbnail is a single preview image keyed by the server-side image id.
type Thumbnail struct {
	ID  string
	URL string
}

// SubtitleTrack is one downloadable subtitle rendition for a language.
type SubtitleTrack struct {
	Ext string
	URL string
}

// VideoInfo is the normalized extraction result for a single video.
//
// Exactly one of Formats and ExternalURL is populated: a non-empty
// ExternalURL delegates resolution to an externally-hosted resource.
type VideoInfo struct {
	ID            string
	Title         string
	Description   string
	Duration      int
	Timestamp     int64
	Uploader      string
	UploaderURL   string
	LikeCount     int
	AgeLimit      int
	EpisodeNumber int
	Thumbnails    []Thumbnail
	Subtitles     map[string][]SubtitleTrack
	Formats       []Format
	ExternalURL   string
}

// ChannelInfo is the normalized extraction result for a channel/series.
type ChannelInfo struct {
	ID          string
	Title       string
	Description string
	VideoIDs    []string
}

// VideoURL returns the canonical page URL for a video id.
func VideoURL(videoID string) string {
	return "https://www.viki.com/videos/" + videoID
}
