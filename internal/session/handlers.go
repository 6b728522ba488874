package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/player"
	"github.com/MrSnakeDoc/vodmark/internal/protocol"
	"github.com/MrSnakeDoc/vodmark/internal/timestamps"
)

type handlerFunc func(s *Session, ctx context.Context, req protocol.Request) (any, error)

var handlers = map[protocol.Kind]handlerFunc{
	protocol.GetStreamData:    (*Session).getStreamData,
	protocol.OpenNoteField:    (*Session).openNoteField,
	protocol.SeekVideo:        (*Session).seekVideo,
	protocol.DeleteTimestamp:  (*Session).deleteTimestamp,
	protocol.DeleteVideo:      (*Session).deleteVideo,
	protocol.ClearChannelInfo: (*Session).clearChannelInfo,
	protocol.AddTimestamp:     (*Session).addTimestamp,
	protocol.ListTimestamps:   (*Session).listTimestamps,
	protocol.ListChannel:      (*Session).listChannel,
	protocol.SeekNext:         (*Session).seekNext,
	protocol.SeekPrevious:     (*Session).seekPrevious,
	protocol.Navigated:        (*Session).navigated,
	protocol.PlayerState:      (*Session).playerState,
}

// Handle runs one request and returns the authoritative result.
func (s *Session) Handle(ctx context.Context, req protocol.Request) protocol.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	h, ok := handlers[req.Type]
	if !ok {
		return s.finish(req, nil, fmt.Errorf("%w: %s", protocol.ErrUnknownKind, req.Type))
	}

	payload, err := h(s, ctx, req)
	return s.finish(req, payload, err)
}

func (s *Session) finish(req protocol.Request, payload any, err error) protocol.Response {
	if s.rec != nil {
		s.rec.MessageHandled(string(req.Type), err == nil)
	}
	if err != nil {
		s.log.Debug("request failed",
			logger.String("tab_id", s.tabID),
			logger.String("type", string(req.Type)),
			logger.Error(err))
		return req.Fail(err)
	}
	return req.Reply(payload)
}

func (s *Session) getStreamData(_ context.Context, _ protocol.Request) (any, error) {
	return protocol.NewStreamData(s.Context()), nil
}

func (s *Session) openNoteField(_ context.Context, _ protocol.Request) (any, error) {
	if !s.Context().CanBookmark() {
		return nil, domain.ErrNotBookmarkable
	}
	s.push(protocol.Message{Type: protocol.OpenNoteField})
	return nil, nil
}

func (s *Session) seekVideo(_ context.Context, req protocol.Request) (any, error) {
	var p protocol.TimePayload
	if err := req.Decode(&p); err != nil {
		return nil, err
	}
	s.seekTo(p.Time)
	return nil, nil
}

// seekTo pushes a seek unless the player rejects the target.
func (s *Session) seekTo(offset float64) bool {
	target, ok := s.player.Seek(offset)
	if !ok {
		return false
	}
	s.push(protocol.Message{Type: protocol.SeekVideo, Payload: protocol.TimePayload{Time: target}})
	return true
}

func (s *Session) deleteTimestamp(ctx context.Context, req protocol.Request) (any, error) {
	var p protocol.TimePayload
	if err := req.Decode(&p); err != nil {
		return nil, err
	}

	sc := s.Context()
	key := timestamps.KeyOf(sc)
	if !key.Resolved() {
		return []domain.Timestamp{}, nil
	}

	list, err := s.svc.Delete(ctx, key, p.Time)
	if err != nil {
		return nil, err
	}
	s.pushList(sc, list)
	return list, nil
}

func (s *Session) deleteVideo(ctx context.Context, req protocol.Request) (any, error) {
	var p protocol.DeleteVideoPayload
	if req.HasPayload() {
		if err := req.Decode(&p); err != nil {
			return nil, err
		}
	}

	sc := s.Context()

	if p.VideoID == "" {
		if !sc.CanBookmark() {
			return []domain.Timestamp{}, nil
		}
		if _, err := s.svc.DeleteVideo(ctx, sc.ChannelName, sc.VideoID); err != nil {
			return nil, err
		}
		s.pushList(sc, nil)
		return []domain.Timestamp{}, nil
	}

	if sc.ChannelName == "" {
		return nil, timestamps.ErrUnresolved
	}
	ch, err := s.svc.DeleteVideo(ctx, sc.ChannelName, p.VideoID)
	if err != nil {
		return nil, err
	}
	if p.VideoID == sc.VideoID {
		s.pushList(sc, nil)
	}
	return ch, nil
}

func (s *Session) clearChannelInfo(ctx context.Context, _ protocol.Request) (any, error) {
	sc := s.Context()
	if sc.ChannelName != "" {
		if err := s.svc.DeleteChannel(ctx, sc.ChannelName); err != nil {
			return nil, err
		}
		s.pushList(sc, nil)
	}
	return domain.Channel{}, nil
}

func (s *Session) addTimestamp(ctx context.Context, req protocol.Request) (any, error) {
	var p protocol.AddTimestampPayload
	if req.HasPayload() {
		if err := req.Decode(&p); err != nil {
			return nil, err
		}
	}

	sc := s.Context()
	if !sc.CanBookmark() {
		return nil, domain.ErrNotBookmarkable
	}

	offset, err := s.player.BookmarkOffset(sc, s.now())
	if err != nil {
		return nil, err
	}

	list, err := s.svc.Insert(ctx, timestamps.KeyOf(sc), sc.StreamTitle, offset, p.Note)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateOffset) {
			s.notice(DuplicateNotice)
		}
		return nil, err
	}

	s.pushList(sc, list)
	return list, nil
}

func (s *Session) listTimestamps(ctx context.Context, _ protocol.Request) (any, error) {
	return s.svc.List(ctx, timestamps.KeyOf(s.Context()))
}

func (s *Session) listChannel(ctx context.Context, _ protocol.Request) (any, error) {
	return s.svc.Channel(ctx, s.Context().ChannelName)
}

func (s *Session) seekNext(ctx context.Context, _ protocol.Request) (any, error) {
	return s.seekRelative(ctx, s.svc.FindNext)
}

func (s *Session) seekPrevious(ctx context.Context, _ protocol.Request) (any, error) {
	return s.seekRelative(ctx, s.svc.FindPrevious)
}

type finder func(ctx context.Context, key timestamps.Key, current float64) (domain.Timestamp, bool, error)

func (s *Session) seekRelative(ctx context.Context, find finder) (any, error) {
	sc := s.Context()
	var current float64
	if sc.Kind() == domain.KindLive {
		current = player.LiveOffset(sc.LiveStartedAt, s.now())
	} else {
		state, ok := s.player.State()
		if !ok {
			return nil, nil
		}
		current = state.CurrentTime
	}

	ts, found, err := find(ctx, timestamps.KeyOf(sc), current)
	if err != nil {
		return nil, err
	}
	if !found || !s.seekTo(ts.Offset) {
		return nil, nil
	}
	return ts, nil
}

func (s *Session) navigated(_ context.Context, req protocol.Request) (any, error) {
	var p protocol.NavigatedPayload
	if err := req.Decode(&p); err != nil {
		return nil, err
	}
	s.feed.Publish(p.URL)
	return nil, nil
}

func (s *Session) playerState(_ context.Context, req protocol.Request) (any, error) {
	var p protocol.PlayerStatePayload
	if err := req.Decode(&p); err != nil {
		return nil, err
	}
	s.player.Update(playerStateOf(p))
	return nil, nil
}

// pushList refreshes the page's list after a mutation of the current video.
func (s *Session) pushList(sc domain.StreamContext, list []domain.Timestamp) {
	if s.Context().Generation != sc.Generation {
		return
	}
	s.push(protocol.Message{Type: protocol.ContextChanged, Payload: protocol.NewContextChanged(sc, list)})
}
