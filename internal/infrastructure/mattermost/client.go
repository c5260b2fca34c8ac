package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-read-marker/internal/config"
	"github.com/go-read-marker/internal/domain"
	"golang.org/x/time/rate"
)

// Client talks to the Mattermost REST API v4 on behalf of one user.
// Reaction writes go through a token bucket so bursts of view events cannot
// flood the server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter

	mu     sync.RWMutex
	userID string
}

func NewClient(cfg *config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: cfg.MattermostURL,
		token:   cfg.MattermostToken,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.ReactionRateLimit), cfg.ReactionBurst),
	}
}

// appError is the error body Mattermost returns with non-2xx responses.
type appError struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type postList struct {
	Order []string                  `json:"order"`
	Posts map[string]domain.Message `json:"posts"`
}

// messages returns the posts in server order, then any posts missing from order.
func (p postList) messages() []domain.Message {
	out := make([]domain.Message, 0, len(p.Posts))
	seen := make(map[string]bool, len(p.Order))
	for _, id := range p.Order {
		if m, ok := p.Posts[id]; ok && !seen[id] {
			out = append(out, m)
			seen[id] = true
		}
	}
	for id, m := range p.Posts {
		if !seen[id] {
			out = append(out, m)
		}
	}
	return out
}

type reactionRequest struct {
	UserID    string `json:"user_id"`
	PostID    string `json:"post_id"`
	EmojiName string `json:"emoji_name"`
}

// FetchCurrentUser loads the token owner's profile and remembers its id for reaction calls.
func (c *Client) FetchCurrentUser(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/api/v4/users/me", nil, &u); err != nil {
		return nil, fmt.Errorf("fetch current user: %w", err)
	}
	c.mu.Lock()
	c.userID = u.UserID
	c.mu.Unlock()
	return &u, nil
}

func (c *Client) AddReaction(ctx context.Context, messageID, emoji string) error {
	userID, err := c.currentUserID()
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	req := reactionRequest{UserID: userID, PostID: messageID, EmojiName: emoji}
	if err := c.do(ctx, http.MethodPost, "/api/v4/reactions", req, nil); err != nil {
		return fmt.Errorf("add reaction %s on %s: %w", emoji, messageID, err)
	}
	return nil
}

func (c *Client) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	userID, err := c.currentUserID()
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	path := fmt.Sprintf("/api/v4/users/%s/posts/%s/reactions/%s",
		url.PathEscape(userID), url.PathEscape(messageID), url.PathEscape(emoji))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("remove reaction %s from %s: %w", emoji, messageID, err)
	}
	return nil
}

// FetchThread returns the root and every reply of threadID.
func (c *Client) FetchThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	var pl postList
	path := fmt.Sprintf("/api/v4/posts/%s/thread", url.PathEscape(threadID))
	if err := c.do(ctx, http.MethodGet, path, nil, &pl); err != nil {
		return nil, err
	}
	return pl.messages(), nil
}

// FetchLastMessage returns the newest message of channelID.
func (c *Client) FetchLastMessage(ctx context.Context, channelID string) (domain.Message, error) {
	var pl postList
	path := fmt.Sprintf("/api/v4/channels/%s/posts?page=0&per_page=1", url.PathEscape(channelID))
	if err := c.do(ctx, http.MethodGet, path, nil, &pl); err != nil {
		return domain.Message{}, fmt.Errorf("fetch last message of %s: %w", channelID, err)
	}
	msgs := pl.messages()
	if len(msgs) == 0 {
		return domain.Message{}, fmt.Errorf("channel %s has no messages: %w", channelID, domain.ErrNotFound)
	}
	return msgs[0], nil
}

func (c *Client) currentUserID() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.userID == "" {
		return "", errors.New("current user not loaded")
	}
	return c.userID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, err, domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// statusError maps an HTTP failure onto the domain sentinels.
func statusError(resp *http.Response) error {
	var ae appError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&ae)
	msg := ae.Message
	if msg == "" {
		msg = resp.Status
	}

	var sentinel error
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		sentinel = domain.ErrBadRequest
	case resp.StatusCode == http.StatusUnauthorized:
		sentinel = domain.ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		sentinel = domain.ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		sentinel = domain.ErrConflict
	default:
		sentinel = domain.ErrUnavailable
	}
	return fmt.Errorf("%s: %w", msg, sentinel)
}
