// Package manifest extracts playable format descriptors from segmented
// streaming manifests (HLS and MPEG-DASH).
//
// Extraction failures are reported as errors; callers that treat manifests
// as best-effort degrade gracefully by logging and skipping.
package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vikget/vikget/internal/logger"
)

// Extractor fetches and parses streaming manifests.
type Extractor struct {
	HTTPClient *http.Client

	log *logger.ComponentLogger
}

// New creates an Extractor. A nil httpClient gets a default with a timeout.
func New(httpClient *http.Client) *Extractor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Extractor{
		HTTPClient: httpClient,
		log:        logger.WithComponent(logger.ComponentManifest),
	}
}

// fetch downloads a manifest body.
func (e *Extractor) fetch(ctx context.Context, manifestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest fetch: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
