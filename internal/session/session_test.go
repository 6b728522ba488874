package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/player"
	"github.com/MrSnakeDoc/vodmark/internal/protocol"
	"github.com/MrSnakeDoc/vodmark/internal/store/memory"
	"github.com/MrSnakeDoc/vodmark/internal/timestamps"
)

var (
	liveStart = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	fixedNow  = liveStart.Add(2 * time.Hour)
)

type recordingPusher struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (p *recordingPusher) Push(msg protocol.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPusher) count(kind protocol.Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, m := range p.msgs {
		if m.Type == kind {
			n++
		}
	}
	return n
}

func (p *recordingPusher) last(kind protocol.Kind) (protocol.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.msgs) - 1; i >= 0; i-- {
		if p.msgs[i].Type == kind {
			return p.msgs[i], true
		}
	}
	return protocol.Message{}, false
}

func (p *recordingPusher) find(kind protocol.Kind, match func(protocol.Message) bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.msgs {
		if m.Type == kind && match(m) {
			return true
		}
	}
	return false
}

var contexts = map[string]domain.StreamContext{
	"vod":     {ChannelName: "streamer", VideoID: "111", StreamTitle: "Old run"},
	"vod2":    {ChannelName: "streamer", VideoID: "112"},
	"live":    {ChannelName: "streamer", VideoID: "222", LiveStartedAt: liveStart},
	"pending": {ChannelName: "fresh", LiveStartedAt: liveStart},
	"home":    {},
}

func resolveFake(_ context.Context, url string) domain.StreamContext {
	return contexts[url]
}

type fixture struct {
	m     *Manager
	s     *Session
	svc   *timestamps.Service
	store *memory.Store
	page  *recordingPusher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	svc := timestamps.NewService(store, nil)
	m := NewManager(context.Background(), svc, resolveFake, Options{
		Debounce: 5 * time.Millisecond,
		Now:      func() time.Time { return fixedNow },
	}, logger.Nop())
	t.Cleanup(m.Close)

	page := &recordingPusher{}
	s := m.Session("tab-1")
	s.Attach("conn-1", page)
	return &fixture{m: m, s: s, svc: svc, store: store, page: page}
}

func (f *fixture) navigate(t *testing.T, url string) {
	t.Helper()
	want := contexts[url]
	f.s.Navigate(url)
	deadline := time.Now().Add(2 * time.Second)
	for !f.s.Context().Equal(want) || (f.s.Context().Generation == 0 && url != "home") {
		if time.Now().After(deadline) {
			t.Fatalf("context for %s never arrived, have %+v", url, f.s.Context())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (f *fixture) send(t *testing.T, kind protocol.Kind, payload any) protocol.Response {
	t.Helper()
	raw := map[string]any{"id": "r1", "type": kind}
	if payload != nil {
		raw["payload"] = payload
	}
	data, _ := json.Marshal(raw)
	req, err := protocol.DecodeRequest(data)
	if err != nil {
		t.Fatalf("DecodeRequest() error = %v", err)
	}
	return f.s.Handle(context.Background(), req)
}

func list(t *testing.T, resp protocol.Response) []domain.Timestamp {
	t.Helper()
	if !resp.OK {
		t.Fatalf("%s failed: %s", resp.Type, resp.Error)
	}
	ts, ok := resp.Payload.([]domain.Timestamp)
	if !ok {
		t.Fatalf("%s payload is %T, want list", resp.Type, resp.Payload)
	}
	return ts
}

func TestNavigatePushesContext(t *testing.T) {
	f := newFixture(t)
	f.navigate(t, "vod")

	deadline := time.Now().Add(2 * time.Second)
	for !f.page.find(protocol.ContextChanged, func(m protocol.Message) bool {
		p := m.Payload.(protocol.ContextChangedPayload)
		return p.CanBookmark && p.Context.VideoID != nil && *p.Context.VideoID == "111"
	}) {
		if time.Now().After(deadline) {
			t.Fatal("no CONTEXT_CHANGED pushed for the video")
		}
		time.Sleep(2 * time.Millisecond)
	}

	resp := f.send(t, protocol.GetStreamData, nil)
	data := resp.Payload.(protocol.StreamData)
	if *data.VideoID != "111" || *data.ChannelName != "streamer" || data.LiveBroadcastStartTime != nil {
		t.Errorf("stream data = %+v", data)
	}
}

func TestNavigateRightAfterSessionCreation(t *testing.T) {
	m := NewManager(context.Background(), timestamps.NewService(memory.NewStore(), nil), resolveFake,
		Options{Debounce: 5 * time.Millisecond}, logger.Nop())
	defer m.Close()

	s := m.Session("fresh-tab")
	s.Navigate("vod")

	deadline := time.Now().Add(2 * time.Second)
	for s.Context().VideoID != "111" {
		if time.Now().After(deadline) {
			t.Fatalf("first navigation of a new tab was lost, context = %+v", s.Context())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestContextChangeForgetsPlayer(t *testing.T) {
	f := newFixture(t)
	f.navigate(t, "vod")
	f.send(t, protocol.PlayerState, map[string]any{"currentTime": 3000, "duration": 3600, "hasControls": true})

	f.navigate(t, "vod2")
	if _, ok := f.s.Player().State(); ok {
		t.Error("player state survived navigation to another video")
	}
	resp := f.send(t, protocol.AddTimestamp, map[string]any{"note": "stale"})
	if resp.OK || !strings.Contains(resp.Error, player.ErrNoPlayer.Error()) {
		t.Errorf("ADD_TIMESTAMP after navigation = %+v, want no player error", resp)
	}
	if got, _ := f.svc.List(context.Background(), timestamps.Key{Channel: "streamer", VideoID: "112"}); len(got) != 0 {
		t.Errorf("bookmark written with the previous video's position: %+v", got)
	}
}

func TestAddTimestampArchived(t *testing.T) {
	f := newFixture(t)
	f.navigate(t, "vod")

	f.send(t, protocol.PlayerState, map[string]any{"currentTime": 52, "duration": 3600, "hasControls": true})
	got := list(t, f.send(t, protocol.AddTimestamp, map[string]any{"note": " nice "}))
	if len(got) != 1 || got[0].Offset != 52 || got[0].Note != "nice" {
		t.Fatalf("list = %+v", got)
	}

	resp := f.send(t, protocol.AddTimestamp, map[string]any{"note": "again"})
	if resp.OK || !strings.Contains(resp.Error, "already saved") {
		t.Errorf("duplicate response = %+v", resp)
	}
	notice, ok := f.page.last(protocol.Notice)
	if !ok || notice.Payload.(protocol.NoticePayload).Message != DuplicateNotice {
		t.Errorf("notice = %+v", notice)
	}

	ch, _ := f.svc.Channel(context.Background(), "streamer")
	if ch.Bucket("111").StreamTitle != "Old run" {
		t.Errorf("bucket title = %q", ch.Bucket("111").StreamTitle)
	}
}

func TestAddTimestampLiveUsesElapsedTime(t *testing.T) {
	f := newFixture(t)
	f.navigate(t, "live")

	got := list(t, f.send(t, protocol.AddTimestamp, nil))
	if len(got) != 1 || got[0].Offset != 7200 {
		t.Errorf("list = %+v, want offset 7200", got)
	}
}

func TestAddTimestampNotBookmarkable(t *testing.T) {
	f := newFixture(t)
	f.navigate(t, "pending")

	resp := f.send(t, protocol.AddTimestamp, map[string]any{"note": "x"})
	if resp.OK {
		t.Fatal("bookmark accepted without an archive")
	}
	if names, _ := f.store.ListChannels(context.Background()); len(names) != 0 {
		t.Errorf("store written: %v", names)
	}

	if resp := f.send(t, protocol.OpenNoteField, nil); resp.OK {
		t.Error("OPEN_NOTE_FIELD accepted without an archive")
	}
}

func TestDeleteTimestamp(t *testing.T) {
	f := newFixture(t)
	f.navigate(t, "vod")
	ctx := context.Background()
	key := timestamps.Key{Channel: "streamer", VideoID: "111"}
	_, _ = f.svc.Insert(ctx, key, "", 10, "")
	_, _ = f.svc.Insert(ctx, key, "", 20, "")

	got := list(t, f.send(t, protocol.DeleteTimestamp, map[string]any{"time": 10}))
	if len(got) != 1 || got[0].Offset != 20 {
		t.Errorf("list = %+v", got)
	}

	f.navigate(t, "home")
	if got := list(t, f.send(t, protocol.DeleteTimestamp, map[string]any{"time": 20})); len(got) != 0 {
		t.Errorf("no video: list = %+v, want []", got)
	}

	if resp := f.send(t, protocol.DeleteTimestamp, nil); resp.OK {
		t.Error("DELETE_TIMESTAMP without payload accepted")
	}
}

func TestDeleteVideo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.svc.Insert(ctx, timestamps.Key{Channel: "streamer", VideoID: "111"}, "", 10, "")
	_, _ = f.svc.Insert(ctx, timestamps.Key{Channel: "streamer", VideoID: "112"}, "", 10, "")
	_, _ = f.svc.Insert(ctx, timestamps.Key{Channel: "streamer", VideoID: "113"}, "", 10, "")
	f.navigate(t, "vod")

	if got := list(t, f.send(t, protocol.DeleteVideo, nil)); len(got) != 0 {
		t.Errorf("current video: payload = %+v, want []", got)
	}

	resp := f.send(t, protocol.DeleteVideo, map[string]any{"videoId": "112"})
	ch, ok := resp.Payload.(domain.Channel)
	if !resp.OK || !ok {
		t.Fatalf("response = %+v", resp)
	}
	if len(ch) != 1 || ch.Bucket("113") == nil {
		t.Errorf("remaining channel = %+v", ch)
	}
}

func TestClearChannelInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.svc.Insert(ctx, timestamps.Key{Channel: "streamer", VideoID: "111"}, "", 10, "")
	f.navigate(t, "vod")

	resp := f.send(t, protocol.ClearChannelInfo, nil)
	data, _ := json.Marshal(resp.Payload)
	if !resp.OK || string(data) != "{}" {
		t.Errorf("response = %+v (%s)", resp, data)
	}
	if all, _ := f.svc.Channels(ctx); len(all) != 0 {
		t.Errorf("channels = %v", all)
	}
}

func TestSeekVideo(t *testing.T) {
	f := newFixture(t)
	f.navigate(t, "vod")
	f.send(t, protocol.PlayerState, map[string]any{"currentTime": 0, "duration": 100, "hasControls": true})

	f.send(t, protocol.SeekVideo, map[string]any{"time": 500})
	if n := f.page.count(protocol.SeekVideo); n != 0 {
		t.Errorf("seek past duration pushed %d seeks", n)
	}

	resp := f.send(t, protocol.SeekVideo, map[string]any{"time": 42})
	if !resp.OK {
		t.Fatalf("SEEK_VIDEO failed: %s", resp.Error)
	}
	msg, ok := f.page.last(protocol.SeekVideo)
	if !ok || msg.Payload.(protocol.TimePayload).Time != 42 {
		t.Errorf("seek push = %+v", msg)
	}
}

func TestSeekNextAndPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := timestamps.Key{Channel: "streamer", VideoID: "111"}
	for _, off := range []float64{10, 50, 100} {
		_, _ = f.svc.Insert(ctx, key, "", off, "")
	}
	f.navigate(t, "vod")
	f.send(t, protocol.PlayerState, map[string]any{"currentTime": 60, "duration": 3600, "hasControls": true})

	resp := f.send(t, protocol.SeekNext, nil)
	if ts, ok := resp.Payload.(domain.Timestamp); !ok || ts.Offset != 100 {
		t.Fatalf("SEEK_NEXT = %+v", resp)
	}

	// within 3s of 50, previous skips to 10
	f.send(t, protocol.PlayerState, map[string]any{"currentTime": 52, "duration": 3600, "hasControls": true})
	resp = f.send(t, protocol.SeekPrevious, nil)
	if ts, ok := resp.Payload.(domain.Timestamp); !ok || ts.Offset != 10 {
		t.Fatalf("SEEK_PREVIOUS = %+v", resp)
	}

	f.send(t, protocol.PlayerState, map[string]any{"currentTime": 150, "duration": 3600, "hasControls": true})
	if resp := f.send(t, protocol.SeekNext, nil); !resp.OK || resp.Payload != nil {
		t.Errorf("SEEK_NEXT at end = %+v, want ok with no target", resp)
	}
}

func TestSeekRelativeWhileLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := timestamps.Key{Channel: "streamer", VideoID: "222"}
	for _, off := range []float64{10, 7000, 8000} {
		_, _ = f.svc.Insert(ctx, key, "", off, "")
	}
	f.navigate(t, "live")
	// a stale position must not win over the broadcast clock
	f.send(t, protocol.PlayerState, map[string]any{"currentTime": 5, "duration": 0, "hasControls": true})

	resp := f.send(t, protocol.SeekPrevious, nil)
	if ts, ok := resp.Payload.(domain.Timestamp); !ok || ts.Offset != 7000 {
		t.Errorf("SEEK_PREVIOUS while live = %+v, want 7000", resp)
	}
	resp = f.send(t, protocol.SeekNext, nil)
	if ts, ok := resp.Payload.(domain.Timestamp); !ok || ts.Offset != 8000 {
		t.Errorf("SEEK_NEXT while live = %+v, want 8000", resp)
	}
}

func TestNavigatedMessage(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, protocol.Navigated, map[string]any{"url": "vod2"})
	if !resp.OK {
		t.Fatalf("NAVIGATED failed: %s", resp.Error)
	}
	deadline := time.Now().Add(2 * time.Second)
	for f.s.Context().VideoID != "112" {
		if time.Now().After(deadline) {
			t.Fatal("NAVIGATED did not trigger a resolution")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestListMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.svc.Insert(ctx, timestamps.Key{Channel: "streamer", VideoID: "111"}, "", 10, "")

	if got := list(t, f.send(t, protocol.ListTimestamps, nil)); len(got) != 0 {
		t.Errorf("before resolution: %+v, want []", got)
	}

	f.navigate(t, "vod")
	if got := list(t, f.send(t, protocol.ListTimestamps, nil)); len(got) != 1 {
		t.Errorf("list = %+v", got)
	}
	resp := f.send(t, protocol.ListChannel, nil)
	if ch, ok := resp.Payload.(domain.Channel); !ok || ch.Bucket("111") == nil {
		t.Errorf("LIST_CHANNEL = %+v", resp)
	}
}

type countingRecorder struct {
	mu  sync.Mutex
	bad int
}

func (c *countingRecorder) MessageHandled(_ string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.bad++
	}
}

func TestHandleRecordsFailures(t *testing.T) {
	rec := &countingRecorder{}
	m := NewManager(context.Background(), timestamps.NewService(memory.NewStore(), nil), resolveFake,
		Options{Recorder: rec}, logger.Nop())
	defer m.Close()

	resp := m.Session("t").Handle(context.Background(), protocol.Request{Type: protocol.Kind("BOGUS")})
	if resp.OK || resp.Error == "" {
		t.Errorf("response = %+v", resp)
	}
	if rec.bad != 1 {
		t.Errorf("failures recorded = %d, want 1", rec.bad)
	}
}

func TestEvictIdle(t *testing.T) {
	now := fixedNow
	m := NewManager(context.Background(), timestamps.NewService(memory.NewStore(), nil), resolveFake,
		Options{Now: func() time.Time { return now }}, logger.Nop())
	defer m.Close()

	m.Session("idle")
	connected := m.Session("connected")
	connected.Attach("c", &recordingPusher{})

	evicted := m.EvictIdle(now.Add(time.Hour), 30*time.Minute)
	if len(evicted) != 1 || evicted[0] != "idle" {
		t.Errorf("evicted = %v, want [idle]", evicted)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
	if _, ok := m.Lookup("connected"); !ok {
		t.Error("connected session was evicted")
	}
}
