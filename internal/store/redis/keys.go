package redis

import (
	"fmt"
	"strings"
)

const (
	// KeyPrefixChannel is the prefix for channel store keys
	KeyPrefixChannel = "vodmark:channel:"
	// KeyAllChannels is the key for the set of all channel names
	KeyAllChannels = "vodmark:channels:all"
	// KeyPrefixUserID is the prefix for cached login -> user id lookups
	KeyPrefixUserID = "vodmark:cache:userid:"
)

// ChannelKey returns the Redis key holding a channel's video buckets
func ChannelKey(channel string) string {
	return KeyPrefixChannel + channel
}

// AllChannelsKey returns the key for the set of all channels
func AllChannelsKey() string {
	return KeyAllChannels
}

// UserIDKey returns the Redis key for a cached user id lookup
func UserIDKey(login string) string {
	return KeyPrefixUserID + strings.ToLower(login)
}

// ExtractChannel extracts the channel name from a channel key
func ExtractChannel(key string) (string, error) {
	if !strings.HasPrefix(key, KeyPrefixChannel) || len(key) == len(KeyPrefixChannel) {
		return "", fmt.Errorf("invalid channel key: %s", key)
	}
	return key[len(KeyPrefixChannel):], nil
}
