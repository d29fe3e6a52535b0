package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/use-agent/jobscout/retry"
	"github.com/use-agent/jobscout/scheduler"
)

const (
	EventCycleCompleted = "cycle.completed"
	EventSourceCaptcha  = "source.captcha"

	SignatureHeader = "X-Jobscout-Signature"
)

// Event is the payload sent to the webhook endpoint.
type Event struct {
	Type      string `json:"type"`
	CycleID   string `json:"cycle_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Sign returns the signature header value for body: sha256=<hex hmac>.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notifier posts events to one endpoint. Delivery is asynchronous and
// retried with backoff.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	policy retry.Policy
	now    func() time.Time

	wg sync.WaitGroup
}

// New creates a Notifier. The body is signed with HMAC-SHA256 when secret
// is non-empty.
func New(url, secret string) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		policy: retry.Policy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 30 * time.Second},
		now:    time.Now,
	}
}

// Deliver sends one event synchronously.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return retry.Permanent(fmt.Errorf("webhook: marshal event: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("webhook: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Jobscout-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode))
	}
	return nil
}

// Notify delivers event in the background. Failures are logged.
func (n *Notifier) Notify(event *Event) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		attempts := 0
		err := retry.Do(ctx, n.policy, func(ctx context.Context) error {
			attempts++
			return n.Deliver(ctx, event)
		})
		if err != nil {
			slog.Error("webhook delivery failed",
				"url", n.url,
				"event", event.Type,
				"cycle", event.CycleID,
				"attempts", attempts,
				"error", err,
			)
			return
		}
		slog.Info("webhook delivered",
			"event", event.Type,
			"cycle", event.CycleID,
			"attempts", attempts,
		)
	}()
}

// Wait blocks until pending deliveries finish.
func (n *Notifier) Wait() { n.wg.Wait() }

// CycleHook announces a finished cycle, plus one event per source that
// served a CAPTCHA. It satisfies scheduler.Hook.
func (n *Notifier) CycleHook(_ context.Context, report *scheduler.CycleReport) {
	ts := n.now().Unix()
	for _, src := range report.Captchas {
		n.Notify(&Event{
			Type:      EventSourceCaptcha,
			CycleID:   report.ID,
			Timestamp: ts,
			Data:      map[string]string{"source": src},
		})
	}
	n.Notify(&Event{
		Type:      EventCycleCompleted,
		CycleID:   report.ID,
		Timestamp: ts,
		Data:      report,
	})
}
