// Package channel lists the videos of a Viki container across its
// paginated category listings.
package channel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vikget/vikget/errs"
	"github.com/vikget/vikget/internal/jsonmap"
	"github.com/vikget/vikget/internal/logger"
)

const (
	perPage = 25

	// DefaultMaxPages bounds pagination per category. A listing that never
	// reports an exhausted "next" cursor fails instead of looping forever.
	DefaultMaxPages = 1000
)

// Categories are walked in this order and their videos concatenated.
var categories = []string{"episodes", "clips", "movies"}

// Caller issues signed API calls. *api.Session satisfies it.
type Caller interface {
	Call(ctx context.Context, path, note string, payload any) (json.RawMessage, error)
}

// Lister enumerates the video IDs of a container.
type Lister struct {
	API      Caller
	MaxPages int

	log *logger.ComponentLogger
}

// NewLister creates a Lister over the given API session.
func NewLister(api Caller) *Lister {
	return &Lister{
		API:      api,
		MaxPages: DefaultMaxPages,
		log:      logger.WithComponent(logger.ComponentChannel),
	}
}

type listingPage struct {
	Response []struct {
		ID string `json:"id"`
	} `json:"response"`
	Pagination jsonmap.Object `json:"pagination"`
}

// VideoIDs walks every category listing page by page and returns the video
// IDs in listing order: all episodes, then all clips, then all movies.
func (l *Lister) VideoIDs(ctx context.Context, containerID string) ([]string, error) {
	maxPages := l.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var ids []string
	for _, category := range categories {
		for page := 1; ; page++ {
			if page > maxPages {
				return nil, fmt.Errorf("%w: container %s %s exceeded %d pages",
					errs.ErrTooManyPages, containerID, category, maxPages)
			}

			path := fmt.Sprintf(
				"containers/%s/%s.json?per_page=%d&sort=number&direction=asc&with_paging=true&page=%d",
				containerID, category, perPage, page)
			note := fmt.Sprintf("Downloading %s JSON page %d", category, page)

			body, err := l.API.Call(ctx, path, note, nil)
			if err != nil {
				return nil, err
			}

			var listing listingPage
			if err := json.Unmarshal(body, &listing); err != nil {
				return nil, fmt.Errorf("failed to decode %s listing: %w", category, err)
			}

			for _, item := range listing.Response {
				if item.ID != "" {
					ids = append(ids, item.ID)
				}
			}

			next, ok := listing.Pagination.Get("next")
			if !ok || !jsonmap.Truthy(next) {
				break
			}
		}
		l.log.Debug("Category listing complete", map[string]interface{}{
			"container_id": containerID,
			"category":     category,
			"total":        len(ids),
		})
	}
	return ids, nil
}
