package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
)

// DefaultBaseURL is the metadata proxy the extension ships with.
const DefaultBaseURL = "http://localhost:3000"

var (
	// ErrNotFound is returned when a lookup yields no record.
	ErrNotFound = errors.New("metadata: not found")
)

// Cache stores login -> user id lookups. A miss returns "" and no error.
type Cache interface {
	GetCachedUserID(ctx context.Context, login string) (string, error)
	CacheUserID(ctx context.Context, login, userID string, ttl time.Duration) error
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	Cache    Cache         // optional
	CacheTTL time.Duration // used with Cache
}

// Client talks to the metadata proxy.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	cacheTTL   time.Duration
	log        logger.Logger
}

func NewClient(opts Options, log logger.Logger) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		log:        log,
	}
}

func getJSON[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", path, resp.StatusCode)
	}

	var env apiEnvelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return env.Data, nil
}

// User looks up an account by login.
func (c *Client) User(ctx context.Context, login string) (User, error) {
	data, err := getJSON[apiUser](ctx, c, "/user?login="+url.QueryEscape(login))
	if err != nil {
		return User{}, err
	}
	if len(data) == 0 {
		return User{}, fmt.Errorf("user %s: %w", login, ErrNotFound)
	}
	return convertUser(data[0]), nil
}

// UserID resolves a login to its id, through the cache when configured.
func (c *Client) UserID(ctx context.Context, login string) (string, error) {
	if c.cache != nil {
		id, err := c.cache.GetCachedUserID(ctx, login)
		if err != nil {
			c.log.Warn("user id cache read failed", logger.String("login", login), logger.Error(err))
		} else if id != "" {
			return id, nil
		}
	}

	u, err := c.User(ctx, login)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		if err := c.cache.CacheUserID(ctx, login, u.ID, c.cacheTTL); err != nil {
			c.log.Warn("user id cache write failed", logger.String("login", login), logger.Error(err))
		}
	}
	return u.ID, nil
}

// LiveStream returns the channel's ongoing broadcast. ok is false when the
// channel is not live.
func (c *Client) LiveStream(ctx context.Context, login string) (LiveStream, bool, error) {
	data, err := getJSON[apiStream](ctx, c, "/livestream?username="+url.QueryEscape(login))
	if err != nil {
		return LiveStream{}, false, err
	}
	if len(data) == 0 {
		return LiveStream{}, false, nil
	}
	return convertStream(data[0]), true, nil
}

// Videos lists the archived broadcasts of a user id.
func (c *Client) Videos(ctx context.Context, userID string) ([]Video, error) {
	data, err := getJSON[apiVideo](ctx, c, "/vods/"+url.PathEscape(userID))
	if err != nil {
		return nil, err
	}
	out := make([]Video, 0, len(data))
	for _, v := range data {
		out = append(out, convertVideo(v))
	}
	return out, nil
}

// Video looks up one archived broadcast.
func (c *Client) Video(ctx context.Context, id string) (Video, error) {
	data, err := getJSON[apiVideo](ctx, c, "/video/"+url.PathEscape(id))
	if err != nil {
		return Video{}, err
	}
	if len(data) == 0 {
		return Video{}, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return convertVideo(data[0]), nil
}
