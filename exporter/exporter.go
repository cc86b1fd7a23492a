// Package exporter renders every dated instance of a table, one at a time,
// and aggregates the extracted rows into a single CSV download.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrysluch/eva-table-reactor/csvcodec"
	"github.com/dmitrysluch/eva-table-reactor/dates"
	"github.com/dmitrysluch/eva-table-reactor/download"
	"github.com/dmitrysluch/eva-table-reactor/fetcher"
	"github.com/dmitrysluch/eva-table-reactor/logger"
	"github.com/dmitrysluch/eva-table-reactor/models"
	"github.com/dmitrysluch/eva-table-reactor/urltemplate"
)

var tracer = otel.Tracer("github.com/dmitrysluch/eva-table-reactor/exporter")

// StatusCompleted is reported for every successful export
const StatusCompleted = "completed"

// Schemas resolves table schemas by id
type Schemas interface {
	Get(ctx context.Context, id string) (models.TableSchema, error)
}

// Result summarizes a completed export
type Result struct {
	Status     string `json:"status"`
	SchemaID   string `json:"tableId"`
	SchemaName string `json:"tableName"`
	Filename   string `json:"filename"`
	Location   string `json:"location,omitempty"`
	Rows       int    `json:"rows"`
	Dates      int    `json:"dates"`
}

// Exporter runs exports against a rendering host and hands the CSV to a sink
type Exporter struct {
	schemas Schemas
	host    fetcher.Host
	sink    download.Sink
	logger  *slog.Logger
	now     func() time.Time
}

func New(schemas Schemas, host fetcher.Host, sink download.Sink, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		schemas: schemas,
		host:    host,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
}

// run tracks the state of one export invocation
type run struct {
	log   *slog.Logger
	state State
}

func (r *run) enter(s State, args ...any) {
	r.log.Debug("export state", append([]any{"from", r.state.String(), "to", s.String()}, args...)...)
	r.state = s
}

// Export renders the schema's page once per date, strictly in order, and
// downloads the aggregated CSV. Any failing date aborts the whole export and
// nothing is downloaded.
func (e *Exporter) Export(ctx context.Context, schemaID string, dateList []string) (Result, error) {
	ctx, span := tracer.Start(ctx, "Export", trace.WithAttributes(
		attribute.String("schema_id", schemaID),
		attribute.Int("dates.requested", len(dateList)),
	))
	defer span.End()

	r := &run{log: logger.FromContext(ctx, e.logger).With("schema_id", schemaID)}

	res, err := e.export(ctx, r, schemaID, dateList)
	if err != nil {
		r.enter(StateFailed, "error", err)
		r.log.Error("export failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	r.enter(StateDone)
	r.log.Info("export completed", "rows", res.Rows, "dates", res.Dates, "location", res.Location)
	span.SetAttributes(attribute.Int("rows", res.Rows))
	return res, nil
}

func (e *Exporter) export(ctx context.Context, r *run, schemaID string, dateList []string) (Result, error) {
	r.enter(StateValidating)

	schema, err := e.schemas.Get(ctx, schemaID)
	if err != nil {
		return Result{}, err
	}
	if len(schema.Columns) == 0 {
		return Result{}, models.ErrNoColumns
	}
	filtered := dates.Filter(dateList)
	if len(filtered) == 0 {
		return Result{}, models.ErrNoDates
	}

	var aggregate []models.TaggedRow
	for _, date := range filtered {
		rows, err := e.collect(ctx, r, schema, date)
		if err != nil {
			return Result{}, err
		}
		for _, row := range rows {
			aggregate = append(aggregate, models.TaggedRow{Date: date, Values: row})
		}
	}

	r.enter(StateSerializing, "rows", len(aggregate))
	content := csvcodec.Serialize(schema.Columns, aggregate)
	filename := csvcodec.Filename(schema.Name, e.now())

	location, err := e.sink.Download(ctx, filename, content)
	if err != nil {
		return Result{}, fmt.Errorf("failed to download %s: %w", filename, err)
	}

	return Result{
		Status:     StatusCompleted,
		SchemaID:   schema.ID,
		SchemaName: schema.Name,
		Filename:   filename,
		Location:   location,
		Rows:       len(aggregate),
		Dates:      len(filtered),
	}, nil
}

// collect renders one instance, extracts its rows and always tears it down
func (e *Exporter) collect(ctx context.Context, r *run, schema models.TableSchema, date string) (rows []models.Row, err error) {
	ctx, span := tracer.Start(ctx, "Collect", trace.WithAttributes(attribute.String("date", date)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := r.log.With("date", date)

	url := urltemplate.BuildInstanceURL(schema.URLTemplate, date, schema.Page.Origin)
	if url == "" {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidURL, schema.URLTemplate)
	}

	r.enter(StateRendering, "date", date, "url", url)
	inst, err := e.host.Open(ctx, url)
	if err != nil {
		r.enter(StateInstanceFailed, "date", date)
		return nil, &models.ExtractionError{Date: date, Reason: err.Error()}
	}
	defer func() {
		if cerr := e.host.Close(context.WithoutCancel(ctx), inst); cerr != nil {
			log.Warn("failed to close instance", "instance", inst.ID(), "error", cerr)
		}
	}()

	r.enter(StateWaitingReady, "date", date)
	if err := e.host.WaitReady(ctx, inst); err != nil {
		r.enter(StateInstanceFailed, "date", date)
		return nil, &models.ExtractionError{Date: date, Reason: err.Error()}
	}

	r.enter(StateExtracting, "date", date)
	resp, err := fetcher.Scrape(ctx, inst, models.ScrapeRequest{Schema: schema, Date: date})
	if err != nil {
		r.enter(StateInstanceFailed, "date", date)
		return nil, &models.ExtractionError{Date: date, Reason: err.Error()}
	}
	if resp.Error != "" {
		r.enter(StateInstanceFailed, "date", date)
		log.Warn("extraction failed", "error", resp.Error)
		return nil, &models.ExtractionError{Date: date, Reason: resp.Error}
	}

	r.enter(StateCollected, "date", date, "rows", len(resp.Rows))
	return resp.Rows, nil
}
