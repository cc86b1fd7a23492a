package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrysluch/eva-table-reactor/exporter"
	"github.com/dmitrysluch/eva-table-reactor/logger"
	"github.com/dmitrysluch/eva-table-reactor/models"
	"github.com/dmitrysluch/eva-table-reactor/scheduler"
)

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	updates chan tgbotapi.Update
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type fakeTables []models.TableSchema

func (f fakeTables) List(context.Context) ([]models.TableSchema, error) { return f, nil }

type fakeExports struct {
	submitted [][]string
	events    chan scheduler.Event
	jobs      map[string]scheduler.Job
}

func (f *fakeExports) Submit(schemaID string, dates []string) (scheduler.Job, error) {
	f.submitted = append(f.submitted, append([]string{schemaID}, dates...))
	return scheduler.Job{ID: "job-1", SchemaID: schemaID, Status: scheduler.StatusCreated}, nil
}

func (f *fakeExports) Job(id string) (scheduler.Job, bool) {
	job, ok := f.jobs[id]
	return job, ok
}

func (f *fakeExports) Subscribe() <-chan scheduler.Event { return f.events }

func command(userID int64, text string) *tgbotapi.Message {
	cmd := strings.SplitN(text, " ", 2)[0]
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func newBot() (*Bot, *fakeAPI, *fakeExports) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update)}
	exports := &fakeExports{events: make(chan scheduler.Event, 4), jobs: map[string]scheduler.Job{}}
	tables := fakeTables{{ID: "table-1", Name: "Rates", URLTemplate: "https://x.test/{{date}}", Columns: []models.ColumnRule{{Name: "A"}}}}
	return New(api, tables, exports, []int64{1}, logger.Discard()), api, exports
}

func TestUnauthorizedUser(t *testing.T) {
	b, api, exports := newBot()
	b.handleMessage(context.Background(), command(2, "/export table-1 2024-01-01"))

	sent := api.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "not authorized")
	assert.Empty(t, exports.submitted)
}

func TestTablesCommand(t *testing.T) {
	b, api, _ := newBot()
	b.handleMessage(context.Background(), command(1, "/tables"))

	sent := api.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "1. Rates")
	assert.Contains(t, sent[0].Text, "ID: table-1")
	assert.Contains(t, sent[0].Text, "Columns: 1")
}

func TestExportCommandReportsCompletion(t *testing.T) {
	b, api, exports := newBot()
	b.handleMessage(context.Background(), command(1, "/export table-1 2024-01-01, 2024-01-02"))

	require.Equal(t, [][]string{{"table-1", "2024-01-01", "2024-01-02"}}, exports.submitted)
	sent := api.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "job-1")
	assert.Equal(t, 7, sent[0].ReplyToMessageID)

	// Intermediate statuses are not reported
	b.handleEvent(scheduler.Event{Job: scheduler.Job{ID: "job-1", Status: scheduler.StatusInProgress}})
	b.handleEvent(scheduler.Event{Job: scheduler.Job{
		ID:     "job-1",
		Status: scheduler.StatusDone,
		Result: &exporter.Result{SchemaName: "Rates", Dates: 2, Location: "exports/Rates.csv"},
	}})

	sent = api.messages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Text, "Export for Rates completed (2 dates).")
	assert.Contains(t, sent[1].Text, "exports/Rates.csv")

	// Each job is reported once
	b.handleEvent(scheduler.Event{Job: scheduler.Job{ID: "job-1", Status: scheduler.StatusDone}})
	assert.Len(t, api.messages(), 2)
}

func TestExportCommandUsage(t *testing.T) {
	b, api, exports := newBot()
	b.handleMessage(context.Background(), command(1, "/export table-1"))

	assert.Empty(t, exports.submitted)
	assert.Contains(t, api.messages()[0].Text, "Usage")
}

func TestStatusCommand(t *testing.T) {
	b, api, exports := newBot()
	exports.jobs["job-9"] = scheduler.Job{ID: "job-9", Status: scheduler.StatusFailed, Error: "no dates provided"}

	b.handleMessage(context.Background(), command(1, "/status job-9"))
	b.handleMessage(context.Background(), command(1, "/status job-x"))

	sent := api.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, "Job job-9: failed\nno dates provided", sent[0].Text)
	assert.Equal(t, "Job not found.", sent[1].Text)
}

func TestRunStopsOnCancel(t *testing.T) {
	b, api, exports := newBot()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	api.updates <- tgbotapi.Update{Message: command(1, "/help")}
	exports.events <- scheduler.Event{Job: scheduler.Job{ID: "job-unknown", Status: scheduler.StatusDone}}
	require.Eventually(t, func() bool { return len(api.messages()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	assert.Contains(t, api.messages()[0].Text, "/export")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	parts := splitMessage("aaaa\nbbbb\ncccc", 10)
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc\n"}, parts)

	for _, p := range splitMessage(strings.Repeat("x", 25), 10) {
		assert.LessOrEqual(t, len(p), 10)
	}
}
