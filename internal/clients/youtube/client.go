package youtube

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

const maxCandidates = 10

// Video is a ranked search candidate with the statistics needed by the
// recency/popularity scorer.
type Video struct {
	VideoID     string
	Title       string
	Description string
	Thumbnail   string
	PublishedAt time.Time
	ViewCount   uint64
}

type Client interface {
	// Search returns up to 10 deduplicated candidates for query, restricted
	// to embeddable medium-length videos ordered by view count, with view
	// statistics attached. Returns a no-results error when nothing matches.
	Search(ctx context.Context, query string) ([]Video, error)
}

type client struct {
	log     *logger.Logger
	service *yt.Service
}

func NewClient(ctx context.Context, apiKey string, log *logger.Logger) (Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing YOUTUBE_API_KEY")
	}
	svc, err := yt.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &client{
		log:     log.With("client", "YouTube"),
		service: svc,
	}, nil
}

func (c *client) Search(ctx context.Context, query string) ([]Video, error) {
	var videos []Video

	err := withRetry(ctx, c.log, 3, 2*time.Second, func() error {
		found, err := c.searchOnce(ctx, query)
		if err != nil {
			return err
		}
		videos = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, apperr.NoResultsf("no videos found for %q", query)
	}
	return videos, nil
}

func (c *client) searchOnce(ctx context.Context, query string) ([]Video, error) {
	call := c.service.Search.List([]string{"snippet"}).
		Context(ctx).
		Q(query).
		Type("video").
		VideoDuration("medium").
		VideoEmbeddable("true").
		Order("viewCount").
		MaxResults(maxCandidates)

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("youtube search %q: %w", query, err)
	}

	seen := make(map[string]bool)
	var videos []Video
	var ids []string
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		id := item.Id.VideoId
		if seen[id] {
			continue
		}
		seen[id] = true

		published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		videos = append(videos, Video{
			VideoID:     id,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Thumbnail:   thumbnailURL(item.Snippet.Thumbnails),
			PublishedAt: published,
		})
		ids = append(ids, id)
		if len(videos) == maxCandidates {
			break
		}
	}
	if len(videos) == 0 {
		return nil, nil
	}

	// One batched statistics call for all candidates.
	statsResp, err := c.service.Videos.List([]string{"statistics"}).
		Context(ctx).
		Id(ids...).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube statistics: %w", err)
	}
	viewsByID := make(map[string]uint64, len(statsResp.Items))
	for _, item := range statsResp.Items {
		if item.Statistics != nil {
			viewsByID[item.Id] = item.Statistics.ViewCount
		}
	}
	for i := range videos {
		videos[i].ViewCount = viewsByID[videos[i].VideoID]
	}
	return videos, nil
}

func thumbnailURL(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	switch {
	case t.High != nil:
		return t.High.Url
	case t.Medium != nil:
		return t.Medium.Url
	case t.Default != nil:
		return t.Default.Url
	}
	return ""
}

// withRetry runs fn up to attempts times with exponential backoff between
// failures. A no-results outcome is not a failure and is never retried.
func withRetry(ctx context.Context, log *logger.Logger, attempts int, base time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		sleepFor := base * (1 << i)
		log.Warn("YouTube request retrying",
			"attempt", i+1,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
	}
	return err
}
