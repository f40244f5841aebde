// Package notify pings an external consumer after a match report was
// committed, so league pages can refresh without polling this service.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ttleague/livesync/internal/platform/logging"
	"github.com/ttleague/livesync/internal/platform/resilience"
)

var errWebhookTransient = crerr.New("webhook transient failure")

type WebhookConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
	Breaker resilience.BreakerConfig
}

type finalizedPayload struct {
	MatchID string `json:"matchId"`
	Status  string `json:"status"`
}

// WebhookNotifier POSTs a small JSON body to the configured URL. Failures
// are reported to the caller but never block finalization; the breaker keeps
// a dead endpoint from slowing every submit down.
type WebhookNotifier struct {
	client         *http.Client
	url            string
	token          string
	logger         *logging.Logger
	breaker        *resilience.Breaker
	breakerEnabled bool
}

func NewWebhookNotifier(cfg WebhookConfig, logger *logging.Logger) (*WebhookNotifier, error) {
	targetURL, err := validateHTTPURL(cfg.URL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid webhook url")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	breakerCfg := resilience.NormalizeBreakerConfig(cfg.Breaker)

	return &WebhookNotifier{
		client:         &http.Client{Timeout: timeout},
		url:            targetURL,
		token:          strings.TrimSpace(cfg.Token),
		logger:         logger,
		breaker:        resilience.NewBreaker(breakerCfg),
		breakerEnabled: breakerCfg.Enabled,
	}, nil
}

func (n *WebhookNotifier) MatchFinalized(ctx context.Context, matchID, status string) error {
	body, err := sonic.Marshal(finalizedPayload{MatchID: matchID, Status: status})
	if err != nil {
		return crerr.Wrap(err, "marshal webhook payload")
	}

	preview := buildCurlPreview(n.url, string(body), n.token != "")
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("webhook.url", n.url),
			attribute.String("webhook.request_curl_preview", preview),
		)
	}
	n.logger.DebugContext(ctx, "webhook request", "url", n.url, "curl_preview", preview)

	call := func() error { return n.post(ctx, body) }
	if n.breakerEnabled {
		err = n.breaker.Do(call)
		if crerr.Is(err, resilience.ErrBreakerOpen) {
			n.logger.WarnContext(ctx, "webhook breaker rejected request", "state", n.breaker.State())
			return fmt.Errorf("webhook is temporarily unavailable: %w", err)
		}
		return err
	}
	return call()
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(string(body)))
	if err != nil {
		return crerr.Wrap(err, "create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: post webhook url=%s: %v", errWebhookTransient, n.url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if isRetryableStatus(resp.StatusCode) {
			return fmt.Errorf("%w: post webhook status=%d body=%s", errWebhookTransient, resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return fmt.Errorf("post webhook status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return nil
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}

func validateHTTPURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}

	return strings.TrimRight(candidate, "/"), nil
}

func buildCurlPreview(targetURL, body string, withToken bool) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	appendPart := func(part string) {
		if buf.Len() > 0 {
			_ = buf.WriteByte(' ')
		}
		_, _ = buf.WriteString(part)
	}

	appendPart("curl")
	appendPart("-X")
	appendPart("POST")
	appendPart(shellQuote(targetURL))
	appendPart("-H")
	appendPart(shellQuote("Content-Type: application/json"))
	if withToken {
		appendPart("-H")
		appendPart(shellQuote("Authorization: Bearer ***"))
	}
	appendPart("-d")
	appendPart(shellQuote(body))

	return buf.String()
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
