package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
	DefaultAPIBase  = "https://api.twitch.tv/helix"
)

var ErrNotConfigured = errors.New("twitch credentials are not configured")

type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBase      string
}

// Stream is the subset of a Helix stream the announcer needs.
type Stream struct {
	UserLogin    string
	UserName     string
	Title        string
	GameName     string
	ThumbnailURL string
	ViewerCount  int
	StartedAt    time.Time
}

// Thumbnail fills the {width}x{height} template of the preview URL.
func (s Stream) Thumbnail(width, height int) string {
	r := strings.NewReplacer("{width}", fmt.Sprint(width), "{height}", fmt.Sprint(height))
	return r.Replace(s.ThumbnailURL)
}

type Client struct {
	clientID string
	apiBase  string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient builds an app-token client. The token is requested with the
// credentials in the query string, as Twitch expects, and refreshed by oauth2
// when it expires.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 15 * time.Second})
	httpClient := cc.Client(ctx)
	httpClient.Timeout = 15 * time.Second

	return &Client{
		clientID: cfg.ClientID,
		apiBase:  strings.TrimRight(cfg.APIBase, "/"),
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 2),
	}, nil
}

type streamsResponse struct {
	Data []struct {
		UserLogin    string    `json:"user_login"`
		UserName     string    `json:"user_name"`
		GameID       string    `json:"game_id"`
		GameName     string    `json:"game_name"`
		Title        string    `json:"title"`
		ViewerCount  int       `json:"viewer_count"`
		StartedAt    time.Time `json:"started_at"`
		ThumbnailURL string    `json:"thumbnail_url"`
	} `json:"data"`
}

// LiveStream returns the current stream of login, or nil when offline.
func (c *Client) LiveStream(ctx context.Context, login string) (*Stream, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" {
		return nil, errors.New("twitch: empty login")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.apiBase + "/streams?" + url.Values{"user_login": {login}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-ID", c.clientID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("helix /streams: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("helix /streams failed (HTTP %d)", resp.StatusCode)
	}

	var payload streamsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("helix /streams: decode: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}

	s := payload.Data[0]
	game := s.GameName
	if game == "" {
		game = s.GameID
	}
	return &Stream{
		UserLogin:    s.UserLogin,
		UserName:     s.UserName,
		Title:        s.Title,
		GameName:     game,
		ThumbnailURL: s.ThumbnailURL,
		ViewerCount:  s.ViewerCount,
		StartedAt:    s.StartedAt,
	}, nil
}
