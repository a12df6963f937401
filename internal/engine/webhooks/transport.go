package webhooks

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

const (
	SignatureHeader = "X-MonitorFlow-Signature"
	userAgent       = "MonitorFlow-Webhook/1.0"
	defaultTimeout  = 10 * time.Second
)

// DeliveryResult is the structured outcome of one send attempt. Transport
// failures (DNS, refused connection, timeout) populate Error with
// Success=false; a completed exchange always carries the status code and
// response body, with Success true iff the status is 2xx.
type DeliveryResult struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	Error        string
}

// Client delivers signed payloads to webhook endpoints. Exactly one
// attempt per call; retries are deliberately not provided.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send POSTs body to url with the signature computed over those exact
// bytes. extraHeaders are merged in after the reserved headers, so
// Content-Type, the signature header and User-Agent always win over
// user-supplied values. Send never returns an error; every outcome is
// expressed in the DeliveryResult.
func (c *Client) Send(ctx context.Context, url string, body []byte, secret string, extraHeaders map[string]string) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return DeliveryResult{Success: false, Error: err.Error()}
	}

	for key, value := range extraHeaders {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(secret, body))
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DeliveryResult{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return DeliveryResult{
			Success:    false,
			StatusCode: resp.StatusCode,
			Error:      err.Error(),
		}
	}

	return DeliveryResult{
		Success:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode:   resp.StatusCode,
		ResponseBody: string(responseBody),
	}
}
