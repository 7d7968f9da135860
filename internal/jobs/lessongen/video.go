package lessongen

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/courseforge/courseforge-backend/internal/clients/youtube"
	"github.com/courseforge/courseforge-backend/internal/types"
)

// Recency horizon for the video score: videos older than this contribute
// no recency weight.
const recencyHorizonDays = 1825

type videoHandler struct {
	deps Deps
}

func (h *videoHandler) Type() string { return TypeVideo }

func (h *videoHandler) Run(ctx context.Context, raw json.RawMessage) error {
	return run(ctx, h.deps, raw, h.generate)
}

func (h *videoHandler) generate(ctx context.Context, p Payload) error {
	query := fmt.Sprintf("%s - %s", p.ModuleTitle, p.LessonTitle)

	candidates, err := h.deps.YouTube.Search(ctx, query)
	if err != nil {
		return err
	}

	best := pickBestVideo(candidates, time.Now())
	content := types.VideoContent{
		VideoID:     best.VideoID,
		Title:       best.Title,
		Description: best.Description,
		Thumbnail:   best.Thumbnail,
		URL:         "https://www.youtube.com/watch?v=" + best.VideoID,
	}
	return finishLesson(ctx, h.deps, p, content.Fields())
}

// pickBestVideo returns the highest-scoring candidate; ties go to the
// earlier candidate. candidates must be non-empty.
func pickBestVideo(candidates []youtube.Video, now time.Time) youtube.Video {
	best := candidates[0]
	bestScore := scoreVideo(best, now)
	for _, v := range candidates[1:] {
		if s := scoreVideo(v, now); s > bestScore {
			best = v
			bestScore = s
		}
	}
	return best
}

// scoreVideo weighs recency linearly over a 5-year horizon against view
// count scaled down by 1000 and up-weighted 1.2x.
func scoreVideo(v youtube.Video, now time.Time) float64 {
	ageDays := now.Sub(v.PublishedAt).Hours() / 24
	recency := float64(recencyHorizonDays) - ageDays
	if recency < 0 {
		recency = 0
	}
	return recency + float64(v.ViewCount)/1000*1.2
}
