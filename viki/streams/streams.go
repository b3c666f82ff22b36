// Package streams resolves the per-format stream maps of the Viki API into a
// uniform list of playable format descriptors.
package streams

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/vikget/vikget/internal/jsonmap"
	"github.com/vikget/vikget/internal/logger"
	"github.com/vikget/vikget/types"
)

// DefaultDRMPattern marks DRM-protected HLS rendition URLs. It is
// configuration, not logic: override it via Resolver.DRMPattern.
const DefaultDRMPattern = "_drm/index_"

var rtmpURLRe = regexp.MustCompile(`^(rtmp://[^/]+/(.+?))/(mp4:.+)$`)

var heightRe = regexp.MustCompile(`^([0-9]+)[pP]$`)

// Kind classifies one raw format entry before dispatch.
type Kind int

const (
	KindSkipped Kind = iota
	KindSegmentedHLS
	KindSegmentedDASH
	KindRealTimeStream
	KindProgressive
)

// RawFormat is one entry of the API's stream map.
type RawFormat struct {
	URL string `json:"url"`
}

// ManifestExtractor turns a segmented streaming manifest into formats.
type ManifestExtractor interface {
	HLS(ctx context.Context, manifestURL, idPrefix string) ([]types.Format, error)
	DASH(ctx context.Context, manifestURL, idPrefix string) ([]types.Format, error)
}

// Resolver converts raw stream maps into format descriptors.
//
// Manifest delegation and filesize probing are best-effort: their failures
// are logged and the entry is skipped, never fatal.
type Resolver struct {
	HTTPClient      *http.Client
	Manifest        ManifestExtractor
	PageURL         string
	AllowUnplayable bool
	DRMPattern      string

	log *logger.ComponentLogger
}

// NewResolver creates a Resolver. A nil httpClient gets a default with a
// timeout; a nil manifest extractor disables segmented formats.
func NewResolver(httpClient *http.Client, manifest ManifestExtractor, pageURL string) *Resolver {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Resolver{
		HTTPClient: httpClient,
		Manifest:   manifest,
		PageURL:    pageURL,
		DRMPattern: DefaultDRMPattern,
		log:        logger.WithComponent(logger.ComponentStreams),
	}
}

// Resolve handles the two-layer stream map of the dedicated streams endpoint:
// formatID -> protocol -> entry, in document order.
func (r *Resolver) Resolve(ctx context.Context, streams jsonmap.Object) []types.Format {
	var formats []types.Format
	for _, byFormat := range streams {
		var protocols jsonmap.Object
		if err := json.Unmarshal(byFormat.Value, &protocols); err != nil {
			r.log.Warn("Skipping malformed stream entry", map[string]interface{}{"format_id": byFormat.Key})
			continue
		}
		for _, member := range protocols {
			formats = append(formats, r.resolveEntry(ctx, byFormat.Key, member.Key, member.Value)...)
		}
	}
	return formats
}

// ResolveFlat handles the single-layer stream map embedded in the video
// metadata response, where the protocol is implicitly "http".
func (r *Resolver) ResolveFlat(ctx context.Context, streams jsonmap.Object) []types.Format {
	var formats []types.Format
	for _, member := range streams {
		formats = append(formats, r.resolveEntry(ctx, member.Key, "http", member.Value)...)
	}
	return formats
}

// resolveEntry classifies one raw entry and dispatches to its handler.
func (r *Resolver) resolveEntry(ctx context.Context, formatID, protocol string, raw json.RawMessage) []types.Format {
	var entry RawFormat
	if err := json.Unmarshal(raw, &entry); err != nil {
		r.log.Warn("Skipping malformed format entry", map[string]interface{}{
			"format_id": formatID,
			"protocol":  protocol,
		})
		return nil
	}

	kind, streamURL := classify(formatID, protocol, entry.URL)
	switch kind {
	case KindSegmentedHLS:
		return r.resolveHLS(ctx, streamURL, protocol)
	case KindSegmentedDASH:
		return r.resolveDASH(ctx, streamURL, protocol)
	case KindRealTimeStream:
		return r.resolveRTMP(formatID, streamURL)
	case KindProgressive:
		return r.resolveProgressive(ctx, formatID, protocol, streamURL)
	default:
		return nil
	}
}

// classify decides the handling of one entry and resolves its obfuscated URL.
// The rtmps protocol variant is known-broken upstream and is dropped outright.
func classify(formatID, protocol, rawURL string) (Kind, string) {
	if protocol == "rtmps" {
		return KindSkipped, ""
	}
	if rawURL == "" {
		return KindSkipped, ""
	}
	streamURL := deobfuscateURL(rawURL)

	switch formatID {
	case "m3u8", "hls":
		return KindSegmentedHLS, streamURL
	case "mpd", "dash":
		return KindSegmentedDASH, streamURL
	}
	if strings.HasPrefix(streamURL, "rtmp") {
		return KindRealTimeStream, streamURL
	}
	return KindProgressive, streamURL
}

// deobfuscateURL decodes the base64 "stream" query parameter some entries
// carry in place of a direct media URL.
func deobfuscateURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	stream := parsed.Query().Get("stream")
	if stream == "" {
		return rawURL
	}
	decoded, err := base64.StdEncoding.DecodeString(stream)
	if err != nil {
		return rawURL
	}
	return string(decoded)
}

// resolveHLS delegates to the manifest extractor and post-processes the
// result: DRM-marked renditions are dropped unless unplayable formats were
// requested, and video-only renditions get their audio codec reset to
// unknown, since the playlist's CODECS metadata is unreliable there and such
// streams are actually muxed audio+video.
func (r *Resolver) resolveHLS(ctx context.Context, manifestURL, protocol string) []types.Format {
	if r.Manifest == nil {
		return nil
	}
	extracted, err := r.Manifest.HLS(ctx, manifestURL, "m3u8-"+protocol)
	if err != nil {
		r.log.Warn("HLS manifest extraction failed", map[string]interface{}{"error": err.Error()})
		return nil
	}

	drmPattern := r.DRMPattern
	if drmPattern == "" {
		drmPattern = DefaultDRMPattern
	}

	formats := make([]types.Format, 0, len(extracted))
	for _, f := range extracted {
		if !r.AllowUnplayable && strings.Contains(f.URL, drmPattern) {
			r.log.Debug("Dropping DRM-protected rendition", map[string]interface{}{"id": f.ID})
			continue
		}
		if f.ACodec == "none" && f.VCodec != "none" {
			f.ACodec = ""
		}
		formats = append(formats, f)
	}
	return formats
}

func (r *Resolver) resolveDASH(ctx context.Context, manifestURL, protocol string) []types.Format {
	if r.Manifest == nil {
		return nil
	}
	formats, err := r.Manifest.DASH(ctx, manifestURL, "mpd-"+protocol)
	if err != nil {
		r.log.Warn("DASH manifest extraction failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return formats
}

// resolveRTMP splits an rtmp URL into connection URL, app, and play path.
// Entries that do not match the expected shape are skipped.
func (r *Resolver) resolveRTMP(formatID, streamURL string) []types.Format {
	m := rtmpURLRe.FindStringSubmatch(streamURL)
	if m == nil {
		r.log.Warn("Skipping unparsable rtmp URL", map[string]interface{}{"format_id": formatID})
		return nil
	}
	return []types.Format{{
		ID:       "rtmp-" + formatID,
		Ext:      "flv",
		URL:      m[1],
		App:      m[2],
		PlayPath: m[3],
		PageURL:  r.PageURL,
	}}
}

// resolveProgressive emits a descriptor for a direct-file rendition, probing
// the remote resource for its size.
func (r *Resolver) resolveProgressive(ctx context.Context, formatID, protocol, streamURL string) []types.Format {
	f := types.Format{
		ID:       formatID + "-" + protocol,
		URL:      streamURL,
		Ext:      extFromURL(streamURL),
		Height:   formatHeight(formatID),
		Filesize: r.probeFilesize(ctx, streamURL),
	}
	return []types.Format{f}
}

// probeFilesize issues a metadata-only HEAD request for the content length.
// Failures degrade to an unknown size.
func (r *Resolver) probeFilesize(ctx context.Context, streamURL string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, streamURL, nil)
	if err != nil {
		return 0
	}
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		r.log.Warn("Filesize probe failed", map[string]interface{}{"error": err.Error()})
		return 0
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.ContentLength > 0 {
		return resp.ContentLength
	}
	if size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil && size > 0 {
		return size
	}
	return 0
}

// formatHeight derives a height hint from format ids like "360p".
func formatHeight(formatID string) int {
	m := heightRe.FindStringSubmatch(formatID)
	if m == nil {
		return 0
	}
	height, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return height
}

// extFromURL guesses a container extension from the URL path.
func extFromURL(streamURL string) string {
	parsed, err := url.Parse(streamURL)
	if err != nil {
		return "mp4"
	}
	path := parsed.Path
	if i := strings.LastIndex(path, "."); i >= 0 {
		switch ext := strings.ToLower(path[i+1:]); ext {
		case "mp4", "webm", "flv", "mov", "m4v":
			return ext
		}
	}
	return "mp4"
}

// SortFormats orders descriptors ascending by quality: height, then bitrate,
// then filesize. The sort is stable, so source order breaks ties.
func SortFormats(formats []types.Format) {
	slices.SortStableFunc(formats, func(a, b types.Format) int {
		if a.Height != b.Height {
			return a.Height - b.Height
		}
		if a.Bitrate != b.Bitrate {
			return a.Bitrate - b.Bitrate
		}
		switch {
		case a.Filesize < b.Filesize:
			return -1
		case a.Filesize > b.Filesize:
			return 1
		default:
			return 0
		}
	})
}
