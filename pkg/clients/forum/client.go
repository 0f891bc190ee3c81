// Package forum fetches the active user list from a Discourse-style forum
// admin API.
package forum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"go.uber.org/zap"
)

// User is a single record of the admin user list. Only the fields used for
// reconciliation are decoded.
type User struct {
	Id        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     *string `json:"email"`
	PostCount uint64  `json:"post_count"`
}

// GetEmail returns the user's email, or "" when the field is absent.
func (u *User) GetEmail() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

type ClientConfig struct {
	BaseUrl     string
	UsersPath   string
	ApiKey      string
	ApiUsername string
	// MaxPages > 1 requests successive pages until one comes back empty.
	MaxPages int
	Timeout  time.Duration
}

type Client struct {
	httpClient *http.Client
	config     *ClientConfig
	logger     *zap.Logger
}

func DefaultHttpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
	}
}

func NewClient(cfg *ClientConfig, httpClient *http.Client, l *zap.Logger) *Client {
	if cfg.ApiUsername == "" {
		cfg.ApiUsername = "system"
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     l,
	}
}

// FetchActiveUsers returns the raw user records from the forum. Any transport,
// status or decoding failure is returned as a *rewardsTypes.SourceUnavailableError.
func (c *Client) FetchActiveUsers(ctx context.Context) ([]*User, error) {
	users := make([]*User, 0)

	for page := 0; page < c.config.MaxPages; page++ {
		pageUsers, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, &rewardsTypes.SourceUnavailableError{Err: err}
		}
		users = append(users, pageUsers...)

		if len(pageUsers) == 0 {
			break
		}
	}

	c.logger.Sugar().Infow("Fetched forum users", zap.Int("count", len(users)))
	return users, nil
}

func (c *Client) buildUrl(page int) (string, error) {
	u, err := url.Parse(c.config.BaseUrl + c.config.UsersPath)
	if err != nil {
		return "", fmt.Errorf("failed to parse users url: %w", err)
	}
	if c.config.MaxPages > 1 {
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]*User, error) {
	reqUrl, err := c.buildUrl(page)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", c.config.ApiKey)
	req.Header.Set("Api-Username", c.config.ApiUsername)

	c.logger.Sugar().Debugw("Making forum request",
		zap.String("url", reqUrl),
		zap.Int("page", page),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var users []*User
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return users, nil
}
