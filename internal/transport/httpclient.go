package transport

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

	"github.com/and161185/retro-board/internal/model"
)

const defaultTimeout = 15 * time.Second

// TokenSource supplies the bearer token attached to every request; an empty
// string sends the request unauthenticated.
type TokenSource func() string

// Client is the HTTP JSON implementation of API.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
}

var _ API = (*Client)(nil)

// NewClient constructs a Client against baseURL. token may be nil.
func NewClient(baseURL string, token TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		token:   token,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Status: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// errorMessage extracts a human-readable message from an error body: a bare
// string, {"message": "..."}, {"message": [...]} or {"error": "..."}.
func errorMessage(body []byte) string {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return strings.TrimSpace(string(body))
	}
	switch payload := v.(type) {
	case string:
		return strings.TrimSpace(payload)
	case map[string]any:
		switch msg := payload["message"].(type) {
		case string:
			if s := strings.TrimSpace(msg); s != "" {
				return s
			}
		case []any:
			var details []string
			for _, entry := range msg {
				if s, ok := entry.(string); ok {
					details = append(details, s)
				}
			}
			if len(details) > 0 {
				return strings.Join(details, ", ")
			}
		}
		if s, ok := payload["error"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func (c *Client) ListBoards(ctx context.Context, userID string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/retro/boards?userId="+url.QueryEscape(userID), nil)
}

func (c *Client) GetBoardColumns(ctx context.Context, boardID int64) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf("/retro/boards/%d/columns", boardID), nil)
}

func (c *Client) CreateColumn(ctx context.Context, boardID int64, req CreateColumnRequest) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/retro/boards/%d/columns", boardID), req)
}

func (c *Client) UpdateColumnName(ctx context.Context, columnID int64, name string) error {
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/retro/columns/%d/name", columnID), map[string]string{"name": name})
	return err
}

func (c *Client) UpdateColumnDescription(ctx context.Context, columnID int64, description string) error {
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/retro/columns/%d/description", columnID), map[string]string{"description": description})
	return err
}

func (c *Client) UpdateColumnColor(ctx context.Context, columnID int64, color model.ColumnColor) error {
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/retro/columns/%d/color", columnID), map[string]model.ColumnColor{"color": color})
	return err
}

func (c *Client) DeleteColumn(ctx context.Context, columnID int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/retro/columns/%d", columnID), nil)
	return err
}

func (c *Client) CreateItem(ctx context.Context, columnID int64, description string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/retro/columns/%d/items", columnID), map[string]string{"description": description})
}

func (c *Client) UpdateItemDescription(ctx context.Context, itemID int64, description string) error {
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/retro/items/%d/description", itemID), map[string]string{"description": description})
	return err
}

func (c *Client) ToggleItemLike(ctx context.Context, itemID int64) error {
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/retro/items/%d/like", itemID), nil)
	return err
}

func (c *Client) UpdateItemColor(ctx context.Context, itemID int64, color string) error {
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/retro/items/%d/color", itemID), map[string]string{"color": color})
	return err
}

func (c *Client) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/retro/items/%d", itemID), nil)
	return err
}

func (c *Client) SyncItemPositions(ctx context.Context, boardID int64, changes []PositionChangeRequest) error {
	body := map[string][]PositionChangeRequest{"changes": changes}
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/retro/boards/%d/items/positions", boardID), body)
	return err
}

func (c *Client) GetItemComments(ctx context.Context, itemID int64) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, fmt.Sprintf("/retro/items/%d/comments", itemID), nil)
}

func (c *Client) CreateItemComment(ctx context.Context, itemID int64, text string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/retro/items/%d/comments", itemID), map[string]string{"text": text})
}

func (c *Client) UpdateComment(ctx context.Context, commentID int64, text string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/retro/comments/%d", commentID), map[string]string{"text": text})
}

func (c *Client) DeleteComment(ctx context.Context, commentID int64) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/retro/comments/%d", commentID), nil)
}

func (c *Client) GetCurrentUser(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/me", nil)
}

func (c *Client) GetCurrentUserLegacy(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/auth/me", nil)
}
