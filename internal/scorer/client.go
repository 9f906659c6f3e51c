package scorer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/postsieve/postsieve/internal/setup/config"
	"github.com/postsieve/postsieve/pkg/utils"
	"go.uber.org/zap"
)

// AuthHeader carries the shared secret for service-to-service authentication.
const AuthHeader = "X-Moderation-Token"

// Client is a stateless HTTP client for the remote scoring service. It owns
// the timeout, retry, and auth-header policy and classifies every failure
// into a *Error before surfacing it.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	retry   utils.RetryOptions
	logger  *zap.Logger
}

// NewClient creates a scoring client from configuration. Connect and total
// timeouts are fixed per call; the transport retry policy uses a bounded
// attempt count with a fixed inter-attempt delay.
func NewClient(cfg *config.Scorer, logger *zap.Logger) *Client {
	dialer := &net.Dialer{
		Timeout: time.Duration(cfg.ConnectTimeout) * time.Millisecond,
	}

	requestTimeout := time.Duration(cfg.RequestTimeout) * time.Millisecond
	retryDelay := time.Duration(cfg.RetryDelay) * time.Millisecond

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: dialer.DialContext,
			},
		},
		retry: utils.ConstantRetryOptions(
			cfg.MaxRetries,
			retryDelay,
			time.Duration(cfg.MaxRetries+1)*(requestTimeout+retryDelay),
		),
		logger: logger.Named("scorer"),
	}
}

// ScoreText submits post text for scoring. The language hint is optional and
// sent as null when empty.
func (c *Client) ScoreText(ctx context.Context, text, lang string) (*ProviderResult, error) {
	req := textRequest{Text: text}
	if lang != "" {
		req.Lang = &lang
	}

	payload, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal text request: %w", err)
	}

	return utils.WithRetry(ctx, func() (*ProviderResult, error) {
		result, err := c.post(ctx, "/moderate/text", "application/json", bytes.NewReader(payload))
		return result, retryClass(err)
	}, c.retry)
}

// ScoreImage submits an image file for scoring as a multipart upload. The
// file is reopened on every attempt so retries always send the full content.
func (c *Client) ScoreImage(ctx context.Context, localPath string) (*ProviderResult, error) {
	return utils.WithRetry(ctx, func() (*ProviderResult, error) {
		f, err := os.Open(localPath)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to open image: %w", err))
		}
		defer f.Close()

		var body bytes.Buffer

		mw := multipart.NewWriter(&body)

		part, err := mw.CreateFormFile("image", filepath.Base(localPath))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create multipart field: %w", err))
		}

		if _, err := io.Copy(part, f); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to read image: %w", err))
		}

		if err := mw.Close(); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to finalize multipart body: %w", err))
		}

		result, err := c.post(ctx, "/moderate/image", mw.FormDataContentType(), &body)
		return result, retryClass(err)
	}, c.retry)
}

// post performs one scoring call and classifies its outcome.
func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*ProviderResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, &Error{Code: CodeServiceError, Message: err.Error()}
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set(AuthHeader, c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Code: CodeConnectionError, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: CodeConnectionError, Message: err.Error(), Status: resp.StatusCode}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyResponse(resp.StatusCode, data)
	}

	var payload scorePayload
	if err := sonic.Unmarshal(data, &payload); err != nil {
		return nil, &Error{
			Code:    CodeServiceError,
			Message: "malformed response body: " + err.Error(),
			Status:  resp.StatusCode,
		}
	}

	result := &ProviderResult{
		Scores:        make(map[string]float64, len(payload.Scores)+3),
		Labels:        payload.Labels,
		ModelVersions: payload.ModelVersions,
	}

	for name, score := range payload.Scores {
		result.Scores[name] = score
	}

	if payload.ToxicityScore != nil {
		result.Scores["toxicity_score"] = *payload.ToxicityScore
	}

	if payload.HateScore != nil {
		result.Scores["hate_score"] = *payload.HateScore
	}

	if payload.NSFWScore != nil {
		result.Scores["nsfw_score"] = *payload.NSFWScore
	}

	c.logger.Debug("Scored content",
		zap.String("path", path),
		zap.Int("scores", len(result.Scores)))

	return result, nil
}

// classifyResponse turns a non-2xx response into a classified error,
// preferring the provider-supplied code from the error envelope.
func classifyResponse(status int, body []byte) *Error {
	var envelope errorEnvelope
	if err := sonic.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		return &Error{
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
			Status:  status,
		}
	}

	return &Error{
		Code:    CodeServiceError,
		Message: fmt.Sprintf("unexpected response: %s", utils.TruncateRunes(string(body), 120)),
		Status:  status,
	}
}

// retryClass wraps non-retryable classified errors so the backoff helper
// stops immediately instead of re-sending a request the provider already
// rejected.
func retryClass(err error) error {
	if err == nil {
		return nil
	}

	if serr, ok := err.(*Error); ok && !serr.Retryable() {
		return backoff.Permanent(err)
	}

	return err
}
