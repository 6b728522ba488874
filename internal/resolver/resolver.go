package resolver

import (
	"context"
	"strings"

	"github.com/MrSnakeDoc/vodmark/internal/domain"
	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/metadata"
)

// Metadata is the subset of the metadata client the resolver needs.
type Metadata interface {
	Video(ctx context.Context, id string) (metadata.Video, error)
	LiveStream(ctx context.Context, login string) (metadata.LiveStream, bool, error)
	UserID(ctx context.Context, login string) (string, error)
	Videos(ctx context.Context, userID string) ([]metadata.Video, error)
}

// Recorder counts resolutions by context kind. Implemented by metrics.
type Recorder interface {
	ContextResolved(kind string)
}

// Resolver computes the stream context of a page address.
type Resolver struct {
	meta     Metadata
	hosts    map[string]struct{}
	log      logger.Logger
	recorder Recorder
}

// New creates a resolver. Empty hosts falls back to DefaultHosts; recorder may be nil.
func New(meta Metadata, hosts []string, log logger.Logger, recorder Recorder) *Resolver {
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}
	set := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		set[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	return &Resolver{
		meta:     meta,
		hosts:    set,
		log:      log,
		recorder: recorder,
	}
}

// ParseAddress classifies rawURL as an archived video, a channel page or
// anything else.
func (r *Resolver) ParseAddress(rawURL string) (Address, error) {
	return parseAddress(rawURL, r.hosts)
}

// Resolve never fails: anything it cannot resolve degrades to a partial or
// empty context.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) domain.StreamContext {
	var sc domain.StreamContext

	addr, err := r.ParseAddress(rawURL)
	if err != nil {
		r.log.Debug("address not resolvable", logger.String("url", rawURL), logger.Error(err))
	} else {
		switch addr.Kind {
		case AddressVideo:
			sc = r.resolveVideo(ctx, addr.VideoID)
		case AddressChannel:
			sc = r.resolveChannel(ctx, addr.Channel)
		}
	}

	if r.recorder != nil {
		r.recorder.ContextResolved(sc.Kind().String())
	}
	return sc
}

func (r *Resolver) resolveVideo(ctx context.Context, videoID string) domain.StreamContext {
	sc := domain.StreamContext{VideoID: videoID}

	v, err := r.meta.Video(ctx, videoID)
	if err != nil {
		r.log.Warn("video lookup failed", logger.String("video_id", videoID), logger.Error(err))
		return sc
	}

	sc.ChannelName = strings.ToLower(v.UserLogin)
	sc.StreamTitle = v.Title
	return sc
}

func (r *Resolver) resolveChannel(ctx context.Context, channel string) domain.StreamContext {
	live, ok, err := r.meta.LiveStream(ctx, channel)
	if err != nil {
		r.log.Warn("live stream lookup failed", logger.String("channel", channel), logger.Error(err))
		return domain.StreamContext{}
	}
	if !ok {
		return domain.StreamContext{}
	}

	userID, err := r.meta.UserID(ctx, channel)
	if err != nil {
		r.log.Warn("user lookup failed", logger.String("channel", channel), logger.Error(err))
		return domain.StreamContext{}
	}
	vods, err := r.meta.Videos(ctx, userID)
	if err != nil {
		r.log.Warn("archive lookup failed", logger.String("channel", channel), logger.Error(err))
		return domain.StreamContext{}
	}

	sc := domain.StreamContext{
		ChannelName:   channel,
		StreamTitle:   live.Title,
		LiveStartedAt: live.StartedAt,
	}

	// the archive must belong to this very broadcast session
	for _, v := range vods {
		if v.StreamID != "" && v.StreamID == live.ID {
			sc.VideoID = v.ID
			if v.Title != "" {
				sc.StreamTitle = v.Title
			}
			return sc
		}
	}

	r.log.Debug("no archive for live session",
		logger.String("channel", channel),
		logger.String("stream_id", live.ID))
	return sc
}
