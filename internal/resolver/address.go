package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// AddressKind classifies a page address.
type AddressKind int

const (
	AddressOther AddressKind = iota
	AddressVideo
	AddressChannel
)

func (k AddressKind) String() string {
	switch k {
	case AddressVideo:
		return "video"
	case AddressChannel:
		return "channel"
	default:
		return "other"
	}
}

// Address is a classified page address. Exactly one of VideoID or Channel
// is set, matching Kind.
type Address struct {
	Kind    AddressKind
	VideoID string
	Channel string
}

// DefaultHosts are the platform hosts recognized when none are configured.
var DefaultHosts = []string{"twitch.tv", "www.twitch.tv", "m.twitch.tv"}

// reservedPaths are first-level platform pages that are not channels.
var reservedPaths = map[string]struct{}{
	"directory":     {},
	"settings":      {},
	"search":        {},
	"videos":        {},
	"downloads":     {},
	"subscriptions": {},
	"inventory":     {},
	"wallet":        {},
	"drops":         {},
	"p":             {},
	"turbo":         {},
}

var errForeignHost = errors.New("not a platform address")

// parseAddress classifies rawURL against hosts.
// An archived-video path always wins, so the channel path is never taken
// for a video address.
func parseAddress(rawURL string, hosts map[string]struct{}) (Address, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Address{}, fmt.Errorf("parse address: %w", err)
	}
	if _, ok := hosts[strings.ToLower(u.Hostname())]; !ok {
		return Address{}, errForeignHost
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")

	if len(segments) >= 2 && segments[0] == "videos" && isDigits(segments[1]) {
		return Address{Kind: AddressVideo, VideoID: segments[1]}, nil
	}

	if len(segments) == 1 && segments[0] != "" {
		name := strings.ToLower(segments[0])
		if _, reserved := reservedPaths[name]; !reserved && isLogin(name) {
			return Address{Kind: AddressChannel, Channel: name}, nil
		}
	}

	return Address{Kind: AddressOther}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isLogin accepts platform login names: ascii letters, digits, underscore.
func isLogin(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return s != ""
}
