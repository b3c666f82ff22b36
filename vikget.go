// Package vikget resolves Viki videos and channels into playable format
// descriptors and metadata.
//
// The Extractor is the high-level entry point:
//
//	info, err := vikget.New().Video(ctx, "https://www.viki.com/videos/1023585v")
//
// Credentials, locale, transport, and unplayable-format handling are
// configured with chainable setters before the first extraction call.
package vikget

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vikget/vikget/client"
	"github.com/vikget/vikget/errs"
	"github.com/vikget/vikget/internal/jsonmap"
	"github.com/vikget/vikget/internal/locales"
	"github.com/vikget/vikget/internal/logger"
	"github.com/vikget/vikget/manifest"
	"github.com/vikget/vikget/types"
	"github.com/vikget/vikget/viki/api"
	"github.com/vikget/vikget/viki/channel"
	"github.com/vikget/vikget/viki/signer"
	"github.com/vikget/vikget/viki/streams"
)

const defaultLocale = "en"

var (
	bareIDRe      = regexp.MustCompile(`^[0-9]+[vc]$`)
	videoPathRe   = regexp.MustCompile(`^/(?:videos|player)/([0-9]+v)`)
	channelPathRe = regexp.MustCompile(`^/(?:tv|news|movies|artists)/([0-9]+c)`)
	vikiHostRe    = regexp.MustCompile(`^(?:www\.)?viki\.(?:com|net|mx|jp|fr)$`)

	ratingDigitsRe = regexp.MustCompile(`^([0-9]+)`)
)

// Options contains configuration for an Extractor.
//
// Use chainable setters on Extractor to populate these options.
type Options struct {
	HTTPClient      *http.Client
	Username        string
	Password        string
	Locale          string
	AllowUnplayable bool
	DRMPattern      string
	ClientConfig    client.Config
}

// Extractor provides a high-level API for resolving video metadata, formats,
// and channel listings.
type Extractor struct {
	options Options

	session *api.Session
	log     *logger.ComponentLogger
}

// New creates a new Extractor with default options.
func New() *Extractor {
	return &Extractor{
		options: Options{
			Locale:     defaultLocale,
			DRMPattern: streams.DefaultDRMPattern,
		},
		log: logger.WithComponent(logger.ComponentApp),
	}
}

// WithHTTPClient sets a custom HTTP client to be used for all network calls.
func (e *Extractor) WithHTTPClient(httpClient *http.Client) *Extractor {
	e.options.HTTPClient = httpClient
	return e
}

// WithClientConfig tunes the built-in transport (timeout, retries, proxy,
// User-Agent). Ignored when a custom HTTP client is set.
func (e *Extractor) WithClientConfig(cfg client.Config) *Extractor {
	e.options.ClientConfig = cfg
	return e
}

// WithCredentials sets account credentials. Login happens once, before the
// first signed call.
func (e *Extractor) WithCredentials(username, password string) *Extractor {
	e.options.Username = username
	e.options.Password = password
	return e
}

// WithLocale sets the preferred locale for titles and descriptions.
func (e *Extractor) WithLocale(locale string) *Extractor {
	if locale != "" {
		e.options.Locale = locale
	}
	return e
}

// WithAllowUnplayable keeps DRM-protected renditions in the format list.
func (e *Extractor) WithAllowUnplayable(allow bool) *Extractor {
	e.options.AllowUnplayable = allow
	return e
}

// WithDRMPattern overrides the URL substring that marks a rendition as
// DRM-protected.
func (e *Extractor) WithDRMPattern(pattern string) *Extractor {
	if pattern != "" {
		e.options.DRMPattern = pattern
	}
	return e
}

// ContentID extracts a video or channel ID from a bare ID or a Viki URL.
// Video IDs end in "v", channel IDs in "c".
func ContentID(raw string) (string, error) {
	if bareIDRe.MatchString(raw) {
		return raw, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: %q", errs.ErrInvalidID, raw)
	}
	if !vikiHostRe.MatchString(strings.ToLower(parsed.Host)) {
		return "", fmt.Errorf("%w: unsupported host in %q", errs.ErrInvalidID, raw)
	}
	if m := videoPathRe.FindStringSubmatch(parsed.Path); m != nil {
		return m[1], nil
	}
	if m := channelPathRe.FindStringSubmatch(parsed.Path); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: unsupported path in %q", errs.ErrInvalidID, raw)
}

// ensureSession builds the API session on first use and performs the
// one-time login when credentials were supplied.
func (e *Extractor) ensureSession(ctx context.Context) (*api.Session, error) {
	if e.session != nil {
		return e.session, nil
	}

	httpClient := e.options.HTTPClient
	if httpClient == nil {
		httpClient = client.NewWith(e.options.ClientConfig).HTTPClient
	}
	session := api.New(httpClient)

	if e.options.Username != "" && e.options.Password != "" {
		if err := session.Login(ctx, e.options.Username, e.options.Password); err != nil {
			return nil, fmt.Errorf("login failed: %w", err)
		}
	}

	e.session = session
	return session, nil
}

// videoEnvelope is the top level of the unsigned video metadata response:
// the video document is wrapped under "video", with the embedded playable
// streams beside it.
type videoEnvelope struct {
	Video   videoDocument  `json:"video"`
	Streams jsonmap.Object `json:"streams"`
}

// videoDocument is the wrapped video object of the metadata response.
type videoDocument struct {
	ID           string          `json:"id"`
	Blocking     jsonmap.Object  `json:"blocking"`
	Titles       locales.TextMap `json:"titles"`
	Descriptions locales.TextMap `json:"descriptions"`
	Type         string          `json:"type"`
	Number       int             `json:"number"`
	Duration     int             `json:"duration"`
	CreatedAt    string          `json:"created_at"`
	Author       string          `json:"author"`
	AuthorURL    string          `json:"author_url"`
	Rating       string          `json:"rating"`
	Likes        struct {
		Count int `json:"count"`
	} `json:"likes"`
	Images              jsonmap.Object `json:"images"`
	SubtitleCompletions jsonmap.Object `json:"subtitle_completions"`
	Container           struct {
		Titles locales.TextMap `json:"titles"`
	} `json:"container"`
}

// Video resolves a video ID or URL into metadata and sorted format
// descriptors.
func (e *Extractor) Video(ctx context.Context, idOrURL string) (*types.VideoInfo, error) {
	videoID, err := ContentID(idOrURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(videoID, "v") {
		return nil, fmt.Errorf("%w: %q is not a video id", errs.ErrInvalidID, idOrURL)
	}

	session, err := e.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	body, err := session.FetchVideo(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video %s: %w", videoID, err)
	}

	var envelope videoEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode video %s: %w", videoID, err)
	}
	doc := envelope.Video
	if err := api.CheckRestrictions(doc.Blocking); err != nil {
		return nil, err
	}

	info := &types.VideoInfo{
		ID:            videoID,
		Title:         e.videoTitle(&doc, videoID),
		Duration:      doc.Duration,
		Uploader:      doc.Author,
		UploaderURL:   doc.AuthorURL,
		LikeCount:     doc.Likes.Count,
		AgeLimit:      ageLimit(doc.Rating),
		EpisodeNumber: doc.Number,
		Thumbnails:    thumbnails(doc.Images),
		Subtitles:     e.subtitles(session, videoID, doc.SubtitleCompletions),
	}
	if text, ok := doc.Descriptions.Select(e.options.Locale, true); ok {
		info.Description = text
	}
	if ts, err := time.Parse(time.RFC3339, doc.CreatedAt); err == nil {
		info.Timestamp = ts.Unix()
	}

	resolver := e.newResolver(session)
	resolver.PageURL = types.VideoURL(videoID)

	info.Formats = resolver.ResolveFlat(ctx, envelope.Streams)
	if len(info.Formats) == 0 {
		external, formats, err := e.dedicatedStreams(ctx, session, resolver, videoID)
		if err != nil {
			return nil, err
		}
		if external != "" {
			info.ExternalURL = external
			return info, nil
		}
		info.Formats = formats
	}
	streams.SortFormats(info.Formats)

	return info, nil
}

// dedicatedStreams queries the signed streams endpoint. An "external" entry
// short-circuits format resolution: the video is hosted elsewhere.
func (e *Extractor) dedicatedStreams(ctx context.Context, session *api.Session, resolver *streams.Resolver, videoID string) (string, []types.Format, error) {
	body, err := session.Call(ctx, "videos/"+videoID+"/streams.json", "Downloading video streams JSON", nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch streams for %s: %w", videoID, err)
	}

	var streamMap jsonmap.Object
	if err := json.Unmarshal(body, &streamMap); err != nil {
		return "", nil, fmt.Errorf("failed to decode streams for %s: %w", videoID, err)
	}

	if raw, ok := streamMap.Get("external"); ok {
		var external struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(raw, &external); err == nil && external.URL != "" {
			e.log.Info("Video is hosted externally", map[string]interface{}{"url": external.URL})
			return external.URL, nil, nil
		}
	}

	return "", resolver.Resolve(ctx, streamMap), nil
}

func (e *Extractor) newResolver(session *api.Session) *streams.Resolver {
	httpClient := session.HTTPClient
	resolver := streams.NewResolver(httpClient, manifest.New(httpClient), "")
	resolver.AllowUnplayable = e.options.AllowUnplayable
	if e.options.DRMPattern != "" {
		resolver.DRMPattern = e.options.DRMPattern
	}
	return resolver
}

// videoTitle selects the display title. Without a title in the preferred
// locale a name is synthesized from the episode number or the video ID and
// combined with the containing show's title.
func (e *Extractor) videoTitle(doc *videoDocument, videoID string) string {
	if title, ok := doc.Titles.Select(e.options.Locale, false); ok && title != "" {
		return title
	}

	title := videoID
	if doc.Type == "episode" && doc.Number > 0 {
		title = fmt.Sprintf("Episode %d", doc.Number)
	}
	containerTitle, _ := doc.Container.Titles.Select(e.options.Locale, true)
	if containerTitle == "" {
		return title
	}
	if title == videoID {
		return containerTitle
	}
	return fmt.Sprintf("%s - %s", containerTitle, title)
}

// subtitles builds signed subtitle URLs for every language the API reports
// any completion for, in both srt and vtt.
func (e *Extractor) subtitles(session *api.Session, videoID string, completions jsonmap.Object) map[string][]types.SubtitleTrack {
	if len(completions) == 0 {
		return nil
	}

	now := time.Now().Unix()
	subs := make(map[string][]types.SubtitleTrack, len(completions))
	for _, member := range completions {
		tracks := make([]types.SubtitleTrack, 0, 2)
		for _, ext := range []string{"srt", "vtt"} {
			path := fmt.Sprintf("videos/%s/subtitles/%s.%s", videoID, member.Key, ext)
			signedURL, _ := signer.SignedURL(path, now, session.Token())
			tracks = append(tracks, types.SubtitleTrack{Ext: ext, URL: signedURL})
		}
		subs[member.Key] = tracks
	}
	return subs
}

// channelDocument is the shape of the signed container metadata response.
type channelDocument struct {
	Blocking     jsonmap.Object  `json:"blocking"`
	Titles       locales.TextMap `json:"titles"`
	Descriptions locales.TextMap `json:"descriptions"`
}

// Channel resolves a channel ID or URL into metadata and the full list of
// its video IDs across episodes, clips, and movies.
func (e *Extractor) Channel(ctx context.Context, idOrURL string) (*types.ChannelInfo, error) {
	channelID, err := ContentID(idOrURL)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(channelID, "c") {
		return nil, fmt.Errorf("%w: %q is not a channel id", errs.ErrInvalidID, idOrURL)
	}

	session, err := e.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	body, err := session.Call(ctx, "containers/"+channelID+".json", "Downloading channel JSON", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel %s: %w", channelID, err)
	}

	var doc channelDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode channel %s: %w", channelID, err)
	}
	if err := api.CheckRestrictions(doc.Blocking); err != nil {
		return nil, err
	}

	info := &types.ChannelInfo{ID: channelID}
	info.Title, _ = doc.Titles.Select(e.options.Locale, true)
	info.Description, _ = doc.Descriptions.Select(e.options.Locale, true)

	lister := channel.NewLister(session)
	info.VideoIDs, err = lister.VideoIDs(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// ageLimit parses the leading digits of a content rating ("13+" -> 13).
func ageLimit(rating string) int {
	m := ratingDigitsRe.FindStringSubmatch(strings.TrimSpace(rating))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// thumbnails maps the images object to thumbnails in document order.
func thumbnails(images jsonmap.Object) []types.Thumbnail {
	var thumbs []types.Thumbnail
	for _, member := range images {
		var image struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(member.Value, &image); err != nil || image.URL == "" {
			continue
		}
		thumbs = append(thumbs, types.Thumbnail{ID: member.Key, URL: image.URL})
	}
	return thumbs
}
