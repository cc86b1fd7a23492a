package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrysluch/eva-table-reactor/logger"
)

func TestMessage(t *testing.T) {
	assert.Equal(t, "Export for Rates completed (1 date).", Event{SchemaName: "Rates", Dates: 1}.Message())
	assert.Equal(t, "Export for Rates completed (3 dates).", Event{SchemaName: "Rates", Dates: 3}.Message())
	assert.Equal(t, "Export for table completed (0 dates).", Event{}.Message())
	assert.Equal(t, "boom", Event{Err: errors.New("boom")}.Message())
	assert.Equal(t, "Export failed.", Event{Err: errors.New("")}.Message())
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func TestTelegram(t *testing.T) {
	sender := &fakeSender{}
	tg := NewTelegramWithSender(sender, 42)

	require.NoError(t, tg.Notify(context.Background(), Event{SchemaName: "Rates", Dates: 2, Location: "s3://b/k.csv"}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "Export for Rates completed (2 dates).")
	assert.Contains(t, sender.sent[0].Text, "s3://b/k.csv")

	sender.err = errors.New("blocked")
	assert.ErrorContains(t, tg.Notify(context.Background(), Event{}), "blocked")
}

func TestWebhook(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Notify(context.Background(), Event{JobID: "job-1", SchemaID: "table-1", SchemaName: "Rates", Dates: 1, Rows: 4})
	require.NoError(t, err)

	assert.Equal(t, Title, got.Title)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, "table-1", got.TableID)
	assert.Equal(t, 4, got.Rows)
	assert.Equal(t, "Export for Rates completed (1 date).", got.Message)
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Notify(context.Background(), Event{Err: errors.New("x")})
	assert.ErrorContains(t, err, "502")
}

func TestMulti(t *testing.T) {
	ok := &fakeSender{}
	failing := &fakeSender{err: errors.New("down")}
	m := Multi{NewLog(logger.Discard()), NewTelegramWithSender(failing, 1), NewTelegramWithSender(ok, 2)}

	err := m.Notify(context.Background(), Event{SchemaName: "Rates", Dates: 1})
	assert.ErrorContains(t, err, "down")
	assert.Len(t, ok.sent, 1)
}
