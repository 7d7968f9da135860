package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

func testService(t *testing.T, handler http.HandlerFunc) *yt.Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := yt.NewService(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func TestSearchRequestsTenCandidates(t *testing.T) {
	var gotMaxResults string
	svc := testService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Path, "search") {
			gotMaxResults = r.URL.Query().Get("maxResults")
			w.Write([]byte(`{"items":[
				{"id":{"videoId":"v1"},"snippet":{"title":"First","publishedAt":"2024-01-01T00:00:00Z"}},
				{"id":{"videoId":"v1"},"snippet":{"title":"First again","publishedAt":"2024-01-01T00:00:00Z"}},
				{"id":{"videoId":"v2"},"snippet":{"title":"Second","publishedAt":"2023-06-01T00:00:00Z"}}
			]}`))
			return
		}
		w.Write([]byte(`{"items":[
			{"id":"v1","statistics":{"viewCount":"1000"}},
			{"id":"v2","statistics":{"viewCount":"250"}}
		]}`))
	})

	c := &client{log: logger.NewNop(), service: svc}
	videos, err := c.searchOnce(context.Background(), "algebra - span")
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if gotMaxResults != "10" {
		t.Errorf("search maxResults = %q, want 10", gotMaxResults)
	}
	if len(videos) != 2 {
		t.Fatalf("candidates = %d, want 2 after dedupe", len(videos))
	}
	if videos[0].VideoID != "v1" || videos[0].ViewCount != 1000 {
		t.Errorf("first candidate = %+v", videos[0])
	}
	if videos[1].VideoID != "v2" || videos[1].ViewCount != 250 {
		t.Errorf("second candidate = %+v", videos[1])
	}
}
