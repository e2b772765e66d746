package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBodySize caps how much of an upstream response is read.
const maxBodySize = 1 << 20

// Criteria are the matching preferences stored on a profile.
type Criteria struct {
	Language string   `json:"language,omitempty"`
	Fluency  string   `json:"fluency,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	Dating   bool     `json:"dating,omitempty"`
}

// Profile is a user profile as stored by the gateway.
type Profile struct {
	UserID   int64    `json:"user_id"`
	Username string   `json:"username,omitempty"`
	Nickname string   `json:"nickname,omitempty"`
	Gender   string   `json:"gender,omitempty"`
	Language string   `json:"language,omitempty"`
	Fluency  string   `json:"fluency,omitempty"`
	Topics   []string `json:"topics,omitempty"`
	Dating   bool     `json:"dating,omitempty"`
	LangCode string   `json:"lang_code,omitempty"`
}

// UserInfo is the public view of a profile returned by the user_info endpoint.
type UserInfo struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Gender   string   `json:"gender"`
	Criteria Criteria `json:"criteria"`
	LangCode string   `json:"lang_code"`
}

// Client talks to the external profile gateway.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client. A zero timeout defaults to 5s.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// UserExists asks the gateway whether userID has a profile.
func (c *Client) UserExists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, ErrMissingUserID
	}
	var exists bool
	if err := c.get(ctx, "/user_exists", url.Values{"user_id": {userID}}, &exists); err != nil {
		return false, fmt.Errorf("check user %s: %w", userID, err)
	}
	return exists, nil
}

// Nickname returns the nickname stored for userID.
func (c *Client) Nickname(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrMissingUserID
	}
	var body struct {
		Nickname string `json:"nickname"`
	}
	query := url.Values{"user_id": {userID}, "target_field": {"nickname"}}
	if err := c.get(ctx, "/users", query, &body); err != nil {
		return "", fmt.Errorf("fetch nickname for %s: %w", userID, err)
	}
	if body.Nickname == "" {
		return "", ErrNoNickname
	}
	return body.Nickname, nil
}

// UserInfo fetches the full profile of userID and reshapes it into the
// public view.
func (c *Client) UserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	var p Profile
	query := url.Values{"user_id": {userID}, "target_field": {"all"}}
	if err := c.get(ctx, "/users", query, &p); err != nil {
		return nil, fmt.Errorf("fetch user info for %s: %w", userID, err)
	}
	return &UserInfo{
		UserID:   userID,
		Username: p.Username,
		Gender:   p.Gender,
		Criteria: Criteria{
			Language: p.Language,
			Fluency:  p.Fluency,
			Topics:   p.Topics,
			Dating:   p.Dating,
		},
		LangCode: p.LangCode,
	}, nil
}

// UpdateProfile stores p at the gateway.
func (c *Client) UpdateProfile(ctx context.Context, p *Profile) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/update_profile", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build update_profile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("update profile %d: %w", p.UserID, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do sends req and returns the body of a 200 response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
