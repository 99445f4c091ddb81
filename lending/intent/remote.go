package intent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultModel   = "mistralai/Mistral-7B-Instruct-v0.3"
	defaultTimeout = 30 * time.Second
	maxReplyBytes  = 1 << 20
)

var (
	// ErrClassifierRequestFailed is returned when the classifier endpoint cannot be reached.
	ErrClassifierRequestFailed = errors.New("classifier request failed")

	// ErrClassifierRejected is returned when the classifier endpoint answers with a non-200 status.
	ErrClassifierRejected = errors.New("classifier rejected the request")

	// ErrEmptyClassifierReply is returned when the answer carries no text.
	ErrEmptyClassifierReply = errors.New("classifier reply is empty")
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatChoice struct {
	Message *chatMessage `json:"message"`
	Text    string       `json:"text"`
}

type chatCompletionResponse struct {
	Choices       []chatChoice `json:"choices"`
	GeneratedText string       `json:"generated_text"`
}

// RemoteClassifier asks a chat-completions endpoint to classify text and parses the answer
// with ParseResolution.
type RemoteClassifier struct {
	endpoint   string
	model      string
	apiToken   string
	httpClient *http.Client
}

// RemoteOption defines a functional option for configuring RemoteClassifier.
type RemoteOption func(*RemoteClassifier)

// WithModel sets the model name sent with every request.
func WithModel(model string) RemoteOption {
	return func(c *RemoteClassifier) {
		if model != "" {
			c.model = model
		}
	}
}

// WithAPIToken sets the bearer token.
func WithAPIToken(token string) RemoteOption {
	return func(c *RemoteClassifier) {
		c.apiToken = token
	}
}

// WithHTTPClient replaces the default client, which times out after 30 seconds.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(c *RemoteClassifier) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewRemoteClassifier creates a classifier posting to endpoint.
func NewRemoteClassifier(endpoint string, options ...RemoteOption) (*RemoteClassifier, error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	c := &RemoteClassifier{
		endpoint:   endpoint,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, option := range options {
		option(c)
	}

	return c, nil
}

// Resolve sends Prompt(text) as a single user message. Empty text resolves to Unknown without a
// request. An answer without a readable JSON object also resolves to Unknown.
func (c *RemoteClassifier) Resolve(ctx context.Context, text string) (Resolution, error) {
	if text == "" {
		return UnknownResolution(), nil
	}

	reply, err := c.complete(ctx, Prompt(text))
	if err != nil {
		return Resolution{}, err
	}

	return ParseResolution(reply), nil
}

func (c *RemoteClassifier) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", errors.Join(ErrClassifierRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Join(ErrClassifierRequestFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Join(ErrClassifierRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", errors.Join(ErrClassifierRequestFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrClassifierRejected, resp.StatusCode)
	}

	return replyText(respBody)
}

// replyText extracts the answer from the chat-completions shapes in use, falling back to the
// raw body.
func replyText(body []byte) (string, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return "", ErrEmptyClassifierReply
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body), nil
	}

	if len(decoded.Choices) > 0 {
		choice := decoded.Choices[0]
		if choice.Message != nil && choice.Message.Content != "" {
			return choice.Message.Content, nil
		}

		if choice.Text != "" {
			return choice.Text, nil
		}
	}

	if decoded.GeneratedText != "" {
		return decoded.GeneratedText, nil
	}

	return string(body), nil
}
