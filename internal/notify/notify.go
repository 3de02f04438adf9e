package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"gigline/internal/domain"
)

const defaultTimeout = 5 * time.Second

// Notifier tells the external accounting system that a contract was settled.
// Delivery is best effort: callers log failures and never roll back on them.
type Notifier interface {
	NotifyContractDone(ctx context.Context, c domain.Contract) error
}

type Nop struct{}

func (Nop) NotifyContractDone(context.Context, domain.Contract) error { return nil }

// Log writes settled contracts to a logger instead of a remote endpoint.
type Log struct {
	Logger *log.Logger
}

func (l Log) NotifyContractDone(_ context.Context, c domain.Contract) error {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("notify: contract %s done amount=%s customer=%s executor=%s", c.ID, c.Amount.String(), c.CustomerID, c.ExecutorID)
	return nil
}

// Webhook posts a JSON report per settled contract.
type Webhook struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Client  *http.Client
	Now     func() time.Time
}

type contractDoneReport struct {
	Type       string `json:"type"`
	ContractID string `json:"contract_id"`
	TaskID     string `json:"task_id"`
	CustomerID string `json:"customer_id"`
	ExecutorID string `json:"executor_id"`
	Amount     string `json:"amount"`
	ClosedAt   string `json:"closed_at,omitempty"`
	SentAt     string `json:"sent_at"`
}

const EventContractDone = "contract.done"

func (w Webhook) NotifyContractDone(ctx context.Context, c domain.Contract) error {
	if strings.TrimSpace(w.URL) == "" {
		return fmt.Errorf("webhook url required")
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	body := contractDoneReport{
		Type:       EventContractDone,
		ContractID: c.ID,
		TaskID:     c.TaskID,
		CustomerID: c.CustomerID,
		ExecutorID: c.ExecutorID,
		Amount:     c.Amount.String(),
		ClosedAt:   domain.Deref(c.ClosedAt),
		SentAt:     now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	client := w.Client
	if client == nil {
		timeout := w.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Gigline-Event", EventContractDone)
	req.Header.Set("X-Gigline-Delivery", c.ID)
	if strings.TrimSpace(w.Secret) != "" {
		req.Header.Set("X-Gigline-Signature", Sign(w.Secret, data))
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body, prefixed with the algorithm name.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
