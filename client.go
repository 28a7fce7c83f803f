package toolchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// Client issues chat-completion requests to one agent endpoint. It holds a
// pooled HTTP client and is safe for concurrent use.
type Client struct {
	endpoint Endpoint
	http     *resty.Client
	logger   *slog.Logger
}

// NewClient creates a Client for the given endpoint.
func NewClient(endpoint Endpoint, opts ...ClientOption) *Client {
	o := defaultClientOptions()
	for _, opt := range opts {
		opt(&o)
	}
	hc := resty.New().
		SetBaseURL(endpoint.BaseURL()).
		SetTimeout(o.timeout).
		SetHeader("Content-Type", "application/json")
	if o.apiKey != "" {
		hc.SetAuthToken(o.apiKey)
	}
	return &Client{
		endpoint: endpoint,
		http:     hc,
		logger:   o.logger,
	}
}

// Endpoint returns the endpoint this client talks to.
func (c *Client) Endpoint() Endpoint { return c.endpoint }

// Close releases idle pooled connections. The client must not be used afterwards.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
}

// CompletionRequest is one chat-completion call. Tools are omitted from the
// request body when empty, and ToolChoice is only sent alongside tools.
type CompletionRequest struct {
	Messages    []Message
	Tools       []ToolDescriptor
	ToolChoice  ToolChoice
	Temperature float64
	MaxTokens   int
}

// ChatResponse is a complete chat-completion response.
type ChatResponse struct {
	ID      string   `json:"id,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion alternative; the orchestrator only ever reads the first.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Usage reports token accounting as returned by the endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatRequestBody struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
	Stream      bool             `json:"stream"`
	Tools       []ToolDescriptor `json:"tools,omitempty"`
	ToolChoice  *ToolChoice      `json:"tool_choice,omitempty"`
}

func (c *Client) requestBody(req CompletionRequest, stream bool) chatRequestBody {
	body := chatRequestBody{
		Model:       c.endpoint.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if len(req.Tools) > 0 {
		body.Tools = req.Tools
		tc := req.ToolChoice
		if tc.IsZero() {
			tc = ToolChoiceAuto
		}
		body.ToolChoice = &tc
	}
	return body
}

// Complete performs one blocking chat-completion call. Failures map to the
// transport taxonomy: ErrTimeout, ErrUnreachable, or *RemoteError for a non-2xx
// status (carrying the server's error body).
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*ChatResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(c.requestBody(req, false)).
		Post("/chat/completions")
	if err != nil {
		return nil, c.transportError(err)
	}
	if resp.IsError() {
		return nil, &RemoteError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	var out ChatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	return &out, nil
}

// CompleteStream performs a streaming chat-completion call and invokes yield
// once per decoded chunk. The connection is held open until the stream is
// exhausted or yield returns an error, and is closed on every return path, so
// abandoning a partially-consumed stream never leaks the socket. The produced
// sequence is finite and cannot be restarted; issue a new call instead.
func (c *Client) CompleteStream(ctx context.Context, req CompletionRequest, yield func(ChatChunk) error) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(c.requestBody(req, true)).
		SetDoNotParseResponse(true).
		Post("/chat/completions")
	if err != nil {
		return c.transportError(err)
	}
	raw := resp.RawBody()
	defer raw.Close()
	if resp.StatusCode() >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(raw, 64<<10))
		return &RemoteError{StatusCode: resp.StatusCode(), Body: string(body)}
	}
	return decodeEventStream(raw, yield)
}

// Models probes the endpoint's GET /models route and returns the served model
// ids. Useful as a connectivity check before starting a conversation.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/models")
	if err != nil {
		return nil, c.transportError(err)
	}
	if resp.IsError() {
		return nil, &RemoteError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}
	ids := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// transportError maps a request error onto the transport taxonomy. Timeouts
// (context deadline or http.Client timeout) become ErrTimeout; dial and
// connection-level failures become ErrUnreachable.
func (c *Client) transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, c.endpoint.Name)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %s", ErrTimeout, c.endpoint.Name)
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return fmt.Errorf("%w: %s at %s: %v", ErrUnreachable, c.endpoint.Name, c.endpoint.BaseURL(), oe.Err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s at %s: connection closed", ErrUnreachable, c.endpoint.Name, c.endpoint.BaseURL())
	}
	return err
}
