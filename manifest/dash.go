package manifest

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"41.neocities.org/dash"
	"github.com/vikget/vikget/types"
)

// DASH fetches an MPD manifest and returns one format per representation,
// ordered ascending by declared bandwidth. The id of each format is
// "{idPrefix}-{representation id}". Image tracks (thumbnail sheets) are
// skipped. Codecs, mime type, and height inherited from the enclosing
// adaptation set are already resolved by the manifest walker.
func (e *Extractor) DASH(ctx context.Context, manifestURL, idPrefix string) ([]types.Format, error) {
	body, err := e.fetch(ctx, manifestURL)
	if err != nil {
		return nil, err
	}

	var mpd dash.Mpd
	if err := mpd.Unmarshal(body); err != nil {
		return nil, fmt.Errorf("dash parse: %w", err)
	}
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, err
	}
	mpd.Set(base)

	var reps []*dash.Representation
	for rep := range mpd.Representation() {
		reps = append(reps, rep)
	}
	slices.SortStableFunc(reps, func(a, b *dash.Representation) int {
		return a.Bandwidth - b.Bandwidth
	})

	var formats []types.Format
	for _, rep := range reps {
		mimeType := deref(rep.MimeType)
		if strings.HasPrefix(mimeType, "image/") {
			e.log.Debug("Skipping image representation", map[string]interface{}{"id": rep.Id})
			continue
		}

		f := types.Format{
			ID:      fmt.Sprintf("%s-%s", idPrefix, rep.Id),
			URL:     manifestURL,
			Ext:     extFromMime(mimeType),
			Bitrate: rep.Bandwidth,
		}
		switch {
		case strings.HasPrefix(mimeType, "video/"):
			f.VCodec = deref(rep.Codecs)
			f.ACodec = "none"
			if rep.Height != nil {
				f.Height = *rep.Height
			}
		case strings.HasPrefix(mimeType, "audio/"):
			f.ACodec = deref(rep.Codecs)
			f.VCodec = "none"
		}
		formats = append(formats, f)
	}
	return formats, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// extFromMime maps a manifest mime type onto a container extension.
func extFromMime(mimeType string) string {
	switch mimeType {
	case "video/mp4", "audio/mp4":
		return "mp4"
	case "video/webm", "audio/webm":
		return "webm"
	case "text/vtt":
		return "vtt"
	default:
		return "mp4"
	}
}
