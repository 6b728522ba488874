package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/go-chi/chi/v5"
)

func fakeAPI(t *testing.T, userHits *atomic.Int32) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/user", func(w http.ResponseWriter, r *http.Request) {
		userHits.Add(1)
		if r.URL.Query().Get("login") != "streamer" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"42","login":"streamer","display_name":"Streamer"}]}`))
	})
	r.Get("/livestream", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("username") != "streamer" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"s1","user_login":"streamer","title":"Live now","started_at":"2025-03-01T18:00:00Z"}]}`))
	})
	r.Get("/vods/{userID}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "userID") != "42" {
			http.Error(w, "unknown", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"v2","stream_id":"s1","title":"Live now"},{"id":"v1","stream_id":"s0","title":"Yesterday"}]}`))
	})
	r.Get("/video/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "v1" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"v1","user_login":"streamer","title":"Yesterday","stream_id":"s0"}]}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type mapCache struct {
	m map[string]string
}

func (c *mapCache) GetCachedUserID(_ context.Context, login string) (string, error) {
	return c.m[login], nil
}

func (c *mapCache) CacheUserID(_ context.Context, login, id string, _ time.Duration) error {
	c.m[login] = id
	return nil
}

func TestClientLiveStream(t *testing.T) {
	var hits atomic.Int32
	c := NewClient(Options{BaseURL: fakeAPI(t, &hits).URL}, logger.Nop())
	ctx := context.Background()

	live, ok, err := c.LiveStream(ctx, "streamer")
	if err != nil || !ok {
		t.Fatalf("LiveStream() = %v, %v", ok, err)
	}
	want := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	if live.ID != "s1" || !live.StartedAt.Equal(want) {
		t.Errorf("live = %+v", live)
	}

	if _, ok, err := c.LiveStream(ctx, "offline"); ok || err != nil {
		t.Errorf("LiveStream(offline) = %v, %v; want not live", ok, err)
	}
}

func TestClientVideos(t *testing.T) {
	var hits atomic.Int32
	c := NewClient(Options{BaseURL: fakeAPI(t, &hits).URL}, logger.Nop())

	vods, err := c.Videos(context.Background(), "42")
	if err != nil {
		t.Fatalf("Videos() error = %v", err)
	}
	if len(vods) != 2 || vods[0].StreamID != "s1" {
		t.Errorf("vods = %+v", vods)
	}

	if _, err := c.Videos(context.Background(), "7"); err == nil {
		t.Error("Videos() on a 404 returned no error")
	}
}

func TestClientVideo(t *testing.T) {
	var hits atomic.Int32
	c := NewClient(Options{BaseURL: fakeAPI(t, &hits).URL}, logger.Nop())

	v, err := c.Video(context.Background(), "v1")
	if err != nil || v.UserLogin != "streamer" || v.Title != "Yesterday" {
		t.Errorf("Video() = %+v, %v", v, err)
	}
	if _, err := c.Video(context.Background(), "zz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Video(missing) error = %v, want ErrNotFound", err)
	}
}

func TestClientUserIDUsesCache(t *testing.T) {
	var hits atomic.Int32
	cache := &mapCache{m: map[string]string{}}
	c := NewClient(Options{BaseURL: fakeAPI(t, &hits).URL, Cache: cache, CacheTTL: time.Hour}, logger.Nop())
	ctx := context.Background()

	for range 3 {
		id, err := c.UserID(ctx, "streamer")
		if err != nil || id != "42" {
			t.Fatalf("UserID() = %q, %v", id, err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("user endpoint hit %d times, want 1", hits.Load())
	}

	if _, err := c.UserID(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UserID(ghost) error = %v, want ErrNotFound", err)
	}
}
