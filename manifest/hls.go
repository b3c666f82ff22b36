package manifest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
	"github.com/vikget/vikget/types"
)

// HLS fetches an HLS playlist and returns one format per variant. The id of
// each format is "{idPrefix}-{bandwidth}". A media playlist (no variants)
// yields a single format pointing at the playlist itself.
func (e *Extractor) HLS(ctx context.Context, manifestURL, idPrefix string) ([]types.Format, error) {
	body, err := e.fetch(ctx, manifestURL)
	if err != nil {
		return nil, err
	}

	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), true)
	if err != nil {
		return nil, fmt.Errorf("hls decode: %w", err)
	}

	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, err
	}

	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		formats := make([]types.Format, 0, len(master.Variants))
		for _, variant := range master.Variants {
			if variant == nil || variant.URI == "" {
				continue
			}
			variantURL, err := base.Parse(variant.URI)
			if err != nil {
				e.log.Warn("Skipping variant with unparsable URI", map[string]interface{}{"uri": variant.URI})
				continue
			}
			acodec, vcodec := splitCodecs(variant.Codecs)
			formats = append(formats, types.Format{
				ID:      fmt.Sprintf("%s-%d", idPrefix, variant.Bandwidth),
				URL:     variantURL.String(),
				Ext:     "mp4",
				Height:  resolutionHeight(variant.Resolution),
				Bitrate: int(variant.Bandwidth),
				ACodec:  acodec,
				VCodec:  vcodec,
			})
		}
		return formats, nil
	case m3u8.MEDIA:
		return []types.Format{{
			ID:  idPrefix,
			URL: manifestURL,
			Ext: "mp4",
		}}, nil
	default:
		return nil, fmt.Errorf("hls decode: unknown playlist type")
	}
}

// resolutionHeight parses the height out of a "WxH" resolution attribute.
func resolutionHeight(resolution string) int {
	_, h, found := strings.Cut(resolution, "x")
	if !found {
		return 0
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return height
}

// splitCodecs maps a CODECS attribute onto audio and video codec fields.
// "none" states the track is absent; the empty string means unknown.
func splitCodecs(codecs string) (acodec, vcodec string) {
	if codecs == "" {
		return "", ""
	}
	for _, c := range strings.Split(codecs, ",") {
		c = strings.TrimSpace(c)
		switch {
		case strings.HasPrefix(c, "avc"), strings.HasPrefix(c, "hvc"),
			strings.HasPrefix(c, "hev"), strings.HasPrefix(c, "vp9"),
			strings.HasPrefix(c, "vp09"), strings.HasPrefix(c, "av01"):
			vcodec = c
		case strings.HasPrefix(c, "mp4a"), strings.HasPrefix(c, "ac-3"),
			strings.HasPrefix(c, "ec-3"), strings.HasPrefix(c, "opus"),
			strings.HasPrefix(c, "flac"):
			acodec = c
		}
	}
	if acodec == "" {
		acodec = "none"
	}
	if vcodec == "" {
		vcodec = "none"
	}
	return acodec, vcodec
}
