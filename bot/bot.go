// Package bot serves table listing and exports over Telegram.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dmitrysluch/eva-table-reactor/dates"
	"github.com/dmitrysluch/eva-table-reactor/models"
	"github.com/dmitrysluch/eva-table-reactor/notify"
	"github.com/dmitrysluch/eva-table-reactor/scheduler"
)

// Telegram rejects messages longer than this
const maxMessageLen = 4096

const helpText = "Commands:\n" +
	"/start - Start the bot\n" +
	"/help - Show this help\n" +
	"/tables - List saved tables\n" +
	"/export <tableId> <dates> - Export a table for comma or newline separated dates\n" +
	"/status <jobId> - Show the status of an export"

// API is the part of the Telegram bot API the bot uses
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Tables lists saved table schemas
type Tables interface {
	List(ctx context.Context) ([]models.TableSchema, error)
}

// Exports queues exports and reports their progress
type Exports interface {
	Submit(schemaID string, dates []string) (scheduler.Job, error)
	Job(id string) (scheduler.Job, bool)
	Subscribe() <-chan scheduler.Event
}

type origin struct {
	chatID    int64
	messageID int
}

// Bot answers commands from allowed users
type Bot struct {
	api     API
	tables  Tables
	exports Exports
	allowed map[int64]bool
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]origin
}

func New(api API, tables Tables, exports Exports, allowedUserIDs []int64, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[int64]bool, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		allowed[id] = true
	}
	return &Bot{
		api:     api,
		tables:  tables,
		exports: exports,
		allowed: allowed,
		logger:  logger,
		pending: make(map[string]origin),
	}
}

// Run handles updates and export events until ctx is cancelled
func (b *Bot) Run(ctx context.Context) {
	events := b.exports.Subscribe()

	// Start from the latest update to skip old ones
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updateConfig.Offset = -1
	updates := b.api.GetUpdatesChan(updateConfig)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleMessage(ctx, update.Message)
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			b.handleEvent(ev)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !b.allowed[userID] {
		b.logger.Warn("unauthorized user attempted to use bot", "user_id", userID)
		b.send(chatID, "Sorry, you are not authorized to use this bot.")
		return
	}

	if !msg.IsCommand() {
		b.send(chatID, "Unknown command. Use /help for available commands.")
		return
	}

	switch msg.Command() {
	case "start":
		b.send(chatID, "Welcome! Use /tables to see saved tables and /export to download one for a list of dates.")
	case "help":
		b.send(chatID, helpText)
	case "tables":
		b.listTables(ctx, chatID)
	case "export":
		b.startExport(chatID, msg.MessageID, msg.CommandArguments())
	case "status":
		b.jobStatus(chatID, strings.TrimSpace(msg.CommandArguments()))
	default:
		b.send(chatID, "Unknown command. Use /help for available commands.")
	}
}

func (b *Bot) listTables(ctx context.Context, chatID int64) {
	tables, err := b.tables.List(ctx)
	if err != nil {
		b.send(chatID, fmt.Sprintf("❌ Error loading tables: %v", err))
		return
	}
	if len(tables) == 0 {
		b.send(chatID, "No tables saved yet.")
		return
	}

	var sb strings.Builder
	for i, t := range tables {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, t.Name))
		sb.WriteString(fmt.Sprintf("   ID: %s\n", t.ID))
		sb.WriteString(fmt.Sprintf("   Columns: %d\n", len(t.Columns)))
		if t.URLTemplate != "" {
			sb.WriteString(fmt.Sprintf("   URL: %s\n", t.URLTemplate))
		}
		sb.WriteString("\n")
	}

	for _, part := range splitMessage(sb.String(), maxMessageLen) {
		b.send(chatID, part)
	}
}

func (b *Bot) startExport(chatID int64, messageID int, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.send(chatID, "Usage: /export <tableId> <date1,date2,...>")
		return
	}

	list := dates.Parse(strings.Join(fields[1:], ","))
	if len(list) == 0 {
		b.send(chatID, fmt.Sprintf("❌ %v", models.ErrNoDates))
		return
	}

	job, err := b.exports.Submit(fields[0], list)
	if err != nil {
		b.send(chatID, fmt.Sprintf("❌ Error: Failed to start export: %v", err))
		return
	}

	b.mu.Lock()
	b.pending[job.ID] = origin{chatID: chatID, messageID: messageID}
	b.mu.Unlock()

	b.logger.Info("export requested over telegram", "job_id", job.ID, "schema_id", job.SchemaID, "chat_id", chatID)
	b.reply(chatID, messageID, fmt.Sprintf("📝 Export queued as %s for %d date(s). You'll receive a message when it finishes.", job.ID, len(list)))
}

func (b *Bot) jobStatus(chatID int64, id string) {
	job, ok := b.exports.Job(id)
	if !ok {
		b.send(chatID, "Job not found.")
		return
	}
	text := fmt.Sprintf("Job %s: %s", job.ID, job.Status)
	if job.Error != "" {
		text += "\n" + job.Error
	}
	b.send(chatID, text)
}

// handleEvent reports finished exports back to the chat that requested them
func (b *Bot) handleEvent(ev scheduler.Event) {
	job := ev.Job
	if job.Status != scheduler.StatusDone && job.Status != scheduler.StatusFailed {
		return
	}

	b.mu.Lock()
	o, ok := b.pending[job.ID]
	delete(b.pending, job.ID)
	b.mu.Unlock()
	if !ok {
		return
	}

	if job.Status == scheduler.StatusFailed {
		b.reply(o.chatID, o.messageID, fmt.Sprintf("❌ Error processing export: %s", job.Error))
		return
	}

	ne := notify.Event{JobID: job.ID, SchemaID: job.SchemaID}
	if job.Result != nil {
		ne.SchemaName = job.Result.SchemaName
		ne.Dates = job.Result.Dates
		ne.Rows = job.Result.Rows
		ne.Location = job.Result.Location
	}
	text := "✅ " + ne.Message()
	if ne.Location != "" {
		text += "\n\n" + ne.Location
	}
	b.reply(o.chatID, o.messageID, text)
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, messageID int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = messageID
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send reply", "chat_id", chatID, "error", err)
	}
}

// splitMessage splits a message into chunks of at most maxLen bytes, on line breaks where possible
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	var current strings.Builder

	for _, line := range strings.Split(text, "\n") {
		if current.Len()+len(line)+1 <= maxLen {
			current.WriteString(line)
			current.WriteString("\n")
			continue
		}

		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		// If a single line is too long, split it
		for len(line) >= maxLen {
			parts = append(parts, line[:maxLen])
			line = line[maxLen:]
		}
		if len(line) > 0 {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
