package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fieldreport/chatsync/internal/store"
)

const defaultTimeout = 30 * time.Second

// Client talks to the remote chat service over HTTP/JSON.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the service at baseURL. The token is sent
// as a bearer credential on every request.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sync performs the batched differential sync call.
func (c *Client) Sync(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.do(ctx, http.MethodPost, "/api/sync", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListConversations fetches all conversations visible to the user.
func (c *Client) ListConversations(ctx context.Context) ([]store.Conversation, error) {
	var out []store.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation fetches one conversation by id.
func (c *Client) GetConversation(ctx context.Context, id string) (store.Conversation, error) {
	var out store.Conversation
	err := c.do(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(id), nil, &out)
	return out, err
}

// CreateConversation creates a conversation and returns the server record.
func (c *Client) CreateConversation(ctx context.Context, req *CreateConversationRequest) (store.Conversation, error) {
	var out store.Conversation
	err := c.do(ctx, http.MethodPost, "/api/conversations", req, &out)
	return out, err
}

// GetMessages performs a full message load for one conversation.
func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]store.Message, error) {
	var out []store.Message
	err := c.do(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(conversationID)+"/messages", nil, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts a new message and returns the canonical server record.
func (c *Client) SendMessage(ctx context.Context, conversationID string, req *SendMessageRequest) (store.Message, error) {
	var out store.Message
	err := c.do(ctx, http.MethodPost, "/api/conversations/"+url.PathEscape(conversationID)+"/messages", req, &out)
	return out, err
}

// MarkAsRead clears the unread count server-side.
func (c *Client) MarkAsRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/api/conversations/"+url.PathEscape(conversationID)+"/read", nil, nil)
}

// GetOpenConversation fetches the default open channel.
func (c *Client) GetOpenConversation(ctx context.Context) (store.Conversation, error) {
	var out store.Conversation
	err := c.do(ctx, http.MethodGet, "/api/conversations/open", nil, &out)
	return out, err
}

// AddParticipant adds a user to a conversation and returns the updated record.
func (c *Client) AddParticipant(ctx context.Context, conversationID, userID string) (store.Conversation, error) {
	var out store.Conversation
	err := c.do(ctx, http.MethodPost, "/api/conversations/"+url.PathEscape(conversationID)+"/participants",
		map[string]string{"userId": userID}, &out)
	return out, err
}

// RemoveParticipant removes a user from a conversation and returns the updated record.
func (c *Client) RemoveParticipant(ctx context.Context, conversationID, userID string) (store.Conversation, error) {
	var out store.Conversation
	err := c.do(ctx, http.MethodDelete,
		"/api/conversations/"+url.PathEscape(conversationID)+"/participants/"+url.PathEscape(userID), nil, &out)
	return out, err
}

// Heartbeat announces this client's liveness. Fire-and-forget, no payload.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/presence/heartbeat", nil, nil)
}

// do performs one JSON round trip and maps failures onto the APIError
// taxonomy: network errors are transport failures, 400 is validation,
// 401/403 is authorization, any other non-2xx is an application failure.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &APIError{Kind: KindValidation, Message: "marshal request", Err: err}
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &APIError{Kind: KindValidation, Message: "build request", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: "read response", Err: err}
	}

	if resp.StatusCode >= 300 {
		msg := string(data)
		var apiMsg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiMsg) == nil && apiMsg.Message != "" {
			msg = apiMsg.Message
		}
		return &APIError{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Kind: KindTransport, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	return nil
}
