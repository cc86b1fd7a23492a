package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type webhookPayload struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Status   string `json:"status"`
	JobID    string `json:"jobId,omitempty"`
	TableID  string `json:"tableId,omitempty"`
	Dates    int    `json:"dates"`
	Rows     int    `json:"rows"`
	Location string `json:"location,omitempty"`
}

// Webhook POSTs events as JSON to a URL
type Webhook struct {
	url    string
	client *resty.Client
}

func NewWebhook(url string) *Webhook {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetHeader("Content-Type", "application/json")
	return &Webhook{url: url, client: client}
}

func (w *Webhook) Notify(ctx context.Context, ev Event) error {
	status := "completed"
	if ev.Failed() {
		status = "failed"
	}

	res, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{
			Title:    Title,
			Message:  ev.Message(),
			Status:   status,
			JobID:    ev.JobID,
			TableID:  ev.SchemaID,
			Dates:    ev.Dates,
			Rows:     ev.Rows,
			Location: ev.Location,
		}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("webhook returned status %d", res.StatusCode())
	}
	return nil
}
