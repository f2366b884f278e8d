package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdanelson/bondora-auto-investor/internal/bidder"
)

const (
	EventPassFailed    = "pass_failed"
	EventBidsSubmitted = "bids_submitted"
)

type Notifier interface {
	Notify(ctx context.Context, p Payload) error
}

type Payload struct {
	Project   string    `json:"project"`
	Event     string    `json:"event"`
	Message   string    `json:"message"`
	PassID    string    `json:"pass_id,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Bids      int       `json:"bids,omitempty"`
	Committed string    `json:"committed,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Webhook posts JSON payloads to one URL. An empty URL disables it.
type Webhook struct {
	URL     string
	Project string
	HTTP    *http.Client
}

func (w *Webhook) Notify(ctx context.Context, p Payload) error {
	if w == nil || strings.TrimSpace(w.URL) == "" {
		return nil
	}
	if p.Project == "" {
		p.Project = w.Project
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("webhook http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (w *Webhook) httpClient() *http.Client {
	if w.HTTP != nil {
		return w.HTTP
	}
	return &http.Client{Timeout: 5 * time.Second}
}

// ForPass builds the payload for a finished pass. ok is false when the pass
// is not worth a notification.
func ForPass(res *bidder.PassResult, passErr error) (Payload, bool) {
	if res == nil {
		return Payload{}, false
	}
	p := Payload{
		PassID:  res.ID,
		Outcome: string(res.Outcome),
		At:      res.FinishedAt,
	}
	switch {
	case passErr != nil:
		p.Event = EventPassFailed
		p.Error = passErr.Error()
		p.Message = "bidding pass failed"
		if len(res.Bids) > 0 && res.Outcome == bidder.OutcomeSubmitted {
			p.Message = "bidding pass submitted bids but did not finish cleanly"
		}
		return p, true
	case res.Outcome == bidder.OutcomeSubmitted:
		p.Event = EventBidsSubmitted
		p.Bids = len(res.Bids)
		p.Committed = res.Committed().StringFixed(2)
		p.Message = fmt.Sprintf("%d bids submitted, %s committed, %s left", p.Bids, p.Committed, res.Remaining.StringFixed(2))
		return p, true
	}
	return Payload{}, false
}
