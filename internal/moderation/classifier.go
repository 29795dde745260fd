package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// ClassifierClient calls an NSFW image classifier over HTTP. The endpoint
// accepts the raw image body and answers with a JSON array of predictions.
type ClassifierClient struct {
	endpoint  string
	threshold float64
	client    *retryablehttp.Client
}

// NewClassifierClient creates a new ClassifierClient
func NewClassifierClient(endpoint string, threshold float64, timeout time.Duration, log logrus.FieldLogger) *ClassifierClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	if log != nil {
		client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			if attempt > 0 {
				log.WithField("attempt", attempt).Warn("retrying moderation request")
			}
		}
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &ClassifierClient{endpoint: endpoint, threshold: threshold, client: client}
}

func (c *ClassifierClient) Check(ctx context.Context, image []byte, contentType string) (*Verdict, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, models.Wrap(models.ErrModerationUnavailable, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, models.Wrap(models.ErrModerationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, models.Wrap(models.ErrModerationUnavailable, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, body))
	}

	var predictions []Prediction
	if err := json.NewDecoder(resp.Body).Decode(&predictions); err != nil {
		return nil, models.Wrap(models.ErrModerationUnavailable, fmt.Errorf("invalid classifier response: %w", err))
	}
	return Evaluate(predictions, c.threshold), nil
}
