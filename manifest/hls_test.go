package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=460560,RESOLUTION=640x360,CODECS="avc1.4d401e,mp4a.40.2"
360p.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=1080226,RESOLUTION=1280x720,CODECS="avc1.64001f,mp4a.40.2"
720p.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=2260560,RESOLUTION=1920x1080,CODECS="avc1.640028"
1080p.m3u8
`

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:9.009,
seg0.ts
#EXTINF:9.009,
seg1.ts
#EXT-X-ENDLIST
`

func TestHLSMasterPlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte(masterPlaylist))
	}))
	defer server.Close()

	e := New(server.Client())
	formats, err := e.HLS(context.Background(), server.URL+"/master.m3u8", "m3u8-http")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(formats) != 3 {
		t.Fatalf("Expected 3 variants, got %d", len(formats))
	}

	first := formats[0]
	if first.ID != "m3u8-http-460560" {
		t.Errorf("Unexpected id: %s", first.ID)
	}
	if first.Height != 360 {
		t.Errorf("Expected height 360, got %d", first.Height)
	}
	if first.Bitrate != 460560 {
		t.Errorf("Expected bitrate 460560, got %d", first.Bitrate)
	}
	if first.Ext != "mp4" {
		t.Errorf("Expected ext mp4, got %s", first.Ext)
	}
	if first.VCodec != "avc1.4d401e" || first.ACodec != "mp4a.40.2" {
		t.Errorf("Unexpected codecs: v=%s a=%s", first.VCodec, first.ACodec)
	}
	if first.URL != server.URL+"/360p.m3u8" {
		t.Errorf("Expected variant URI resolved against master URL, got %s", first.URL)
	}

	// Video-only CODECS attribute reports no audio track.
	last := formats[2]
	if last.Height != 1080 {
		t.Errorf("Expected height 1080, got %d", last.Height)
	}
	if last.ACodec != "none" {
		t.Errorf("Expected acodec 'none' for video-only variant, got '%s'", last.ACodec)
	}
	if last.VCodec != "avc1.640028" {
		t.Errorf("Unexpected vcodec: %s", last.VCodec)
	}
}

func TestHLSMediaPlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(mediaPlaylist))
	}))
	defer server.Close()

	e := New(server.Client())
	formats, err := e.HLS(context.Background(), server.URL+"/index.m3u8", "m3u8-http")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(formats) != 1 {
		t.Fatalf("Expected a single format for a media playlist, got %d", len(formats))
	}
	if formats[0].URL != server.URL+"/index.m3u8" {
		t.Errorf("Expected format to point at the playlist, got %s", formats[0].URL)
	}
}

func TestHLSMalformedPlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a playlist"))
	}))
	defer server.Close()

	e := New(server.Client())
	if _, err := e.HLS(context.Background(), server.URL, "m3u8-http"); err == nil {
		t.Error("Expected error for malformed playlist")
	}
}

func TestHLSUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	e := New(server.Client())
	if _, err := e.HLS(context.Background(), server.URL, "m3u8-http"); err == nil {
		t.Error("Expected error for upstream failure")
	}
}

func TestResolutionHeight(t *testing.T) {
	tests := []struct {
		name       string
		resolution string
		expected   int
	}{
		{name: "Standard", resolution: "1280x720", expected: 720},
		{name: "Vertical", resolution: "720x1280", expected: 1280},
		{name: "Empty", resolution: "", expected: 0},
		{name: "Garbage", resolution: "wide", expected: 0},
		{name: "NonNumeric", resolution: "1280xwide", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolutionHeight(tt.resolution); got != tt.expected {
				t.Errorf("resolutionHeight(%q) = %d, expected %d", tt.resolution, got, tt.expected)
			}
		})
	}
}

func TestSplitCodecs(t *testing.T) {
	tests := []struct {
		name    string
		codecs  string
		acodec  string
		vcodec  string
	}{
		{name: "AudioAndVideo", codecs: "avc1.4d401e,mp4a.40.2", acodec: "mp4a.40.2", vcodec: "avc1.4d401e"},
		{name: "VideoOnly", codecs: "avc1.640028", acodec: "none", vcodec: "avc1.640028"},
		{name: "AudioOnly", codecs: "mp4a.40.2", acodec: "mp4a.40.2", vcodec: "none"},
		{name: "Unknown", codecs: "", acodec: "", vcodec: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acodec, vcodec := splitCodecs(tt.codecs)
			if acodec != tt.acodec || vcodec != tt.vcodec {
				t.Errorf("splitCodecs(%q) = (%q, %q), expected (%q, %q)",
					tt.codecs, acodec, vcodec, tt.acodec, tt.vcodec)
			}
		})
	}
}
