// Package prediction calls the remote consumption model.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/common"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// DefaultURL is the hosted consumption model.
const DefaultURL = "https://gorogrid-backend-ceembfhbdkfabahz.brazilsouth-01.azurewebsites.net/predict"

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 1 << 20

// Consumption is a predicted energy consumption in kWh.
type Consumption float64

// Predictor predicts consumption from a feature vector.
type Predictor interface {
	Predict(ctx context.Context, features types.FeatureVector) (Consumption, error)
}

// Request is the body sent to the model.
type Request struct {
	Features types.FeatureVector `json:"features"`
}

// Response is the body returned by the model.
type Response struct {
	Prediction *float64 `json:"prediction"`
}

// Client is a Predictor backed by the HTTP prediction endpoint. It is safe for
// concurrent use and never retries or caches.
type Client struct {
	url    string
	client *http.Client
}

// NewClient returns a Client posting to predictURL. A nil client uses
// common.HTTPClient without a timeout.
func NewClient(predictURL string, client *http.Client) *Client {
	if client == nil {
		client = common.HTTPClient(0)
	}
	return &Client{url: predictURL, client: client}
}

// Configured sets up a Client based on flags.
func Configured() *Client {
	c := &Client{}
	predictURL := lflag.String("prediction-url", DefaultURL, "URL of the consumption prediction endpoint")
	timeout := lflag.Duration("prediction-timeout", 0, "Timeout for prediction requests (0 means none)")

	lflag.Do(func() {
		c.url = *predictURL
		c.client = common.HTTPClient(*timeout)
	})
	return c
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Validate ensures the configuration is valid.
func (c *Client) Validate() error {
	if c.url == "" {
		return fmt.Errorf("prediction-url is required")
	}
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("failed to parse prediction url (%s): %w", c.url, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("prediction url must be http or https: %s", c.url)
	}
	return nil
}

// Predict implements Predictor.
func (c *Client) Predict(ctx context.Context, features types.FeatureVector) (Consumption, error) {
	body, err := json.Marshal(Request{Features: features})
	if err != nil {
		return 0, &PredictionError{Kind: KindMalformed, Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, &PredictionError{Kind: KindNetwork, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	log.Ctx(ctx).DebugContext(ctx, "requesting prediction", slog.String("url", c.url))

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &PredictionError{Kind: KindNetwork, Err: fmt.Errorf("failed to request prediction: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return 0, &PredictionError{
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("prediction service returned status: %d", resp.StatusCode),
		}
	}

	var res Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&res); err != nil {
		return 0, &PredictionError{Kind: KindMalformed, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if res.Prediction == nil {
		return 0, &PredictionError{Kind: KindMalformed, StatusCode: resp.StatusCode, Err: fmt.Errorf("response is missing prediction")}
	}

	log.Ctx(ctx).DebugContext(
		ctx,
		"received prediction",
		slog.Float64("prediction", *res.Prediction),
		slog.Duration("took", time.Since(start)),
	)
	return Consumption(*res.Prediction), nil
}
