// Package api exposes table authoring and export commands as tagged JSON requests.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/dmitrysluch/eva-table-reactor/dates"
	"github.com/dmitrysluch/eva-table-reactor/models"
	"github.com/dmitrysluch/eva-table-reactor/repository"
	"github.com/dmitrysluch/eva-table-reactor/scheduler"
)

// Request kinds
const (
	KindGetTablesForURL = "GET_TABLES_FOR_URL"
	KindCreateTable     = "CREATE_TABLE"
	KindSaveColumn      = "SAVE_COLUMN"
	KindRemoveColumn    = "REMOVE_COLUMN"
	KindUpdateTable     = "UPDATE_TABLE"
	KindDeleteTable     = "DELETE_TABLE"
	KindGetAllTables    = "GET_ALL_TABLES"
	KindExportTable     = "EXPORT_TABLE"
)

// ErrBadRequest wraps malformed request payloads
var ErrBadRequest = errors.New("bad request")

// Tables is the schema store behind the commands
type Tables interface {
	List(ctx context.Context) ([]models.TableSchema, error)
	Get(ctx context.Context, id string) (models.TableSchema, error)
	FindByURL(ctx context.Context, rawURL string) ([]models.TableSchema, error)
	Create(ctx context.Context, seed models.TableSchema, sourceURL string) (models.TableSchema, error)
	Update(ctx context.Context, id string, patch models.TableSchema) (models.TableSchema, error)
	Delete(ctx context.Context, id string) error
	UpsertColumn(ctx context.Context, tableID string, col models.ColumnRule, loc repository.Locator) (models.TableSchema, error)
	RemoveColumn(ctx context.Context, tableID, columnID string) (models.TableSchema, error)
}

// Exports starts exports in the background and tracks them
type Exports interface {
	Submit(schemaID string, dates []string) (scheduler.Job, error)
	Job(id string) (scheduler.Job, bool)
}

type tablesResponse struct {
	Tables []models.TableSchema `json:"tables"`
}

type tableResponse struct {
	Table models.TableSchema `json:"table"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type exportResponse struct {
	Status string `json:"status"`
	JobID  string `json:"jobId"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

type createTableRequest struct {
	Name          string             `json:"name"`
	SourceURL     string             `json:"sourceUrl"`
	TableSelector string             `json:"tableSelector"`
	DataSection   models.DataSection `json:"dataSection"`
}

type saveColumnRequest struct {
	TableID       string             `json:"tableId"`
	TableSelector string             `json:"tableSelector"`
	DataSection   models.DataSection `json:"dataSection"`
	Column        models.ColumnRule  `json:"column"`
}

type removeColumnRequest struct {
	TableID  string `json:"tableId"`
	ColumnID string `json:"columnId"`
}

type updateTableRequest struct {
	Table models.TableSchema `json:"table"`
}

// Dispatcher routes a request to its handler by the "type" field
type Dispatcher struct {
	tables  Tables
	exports Exports
	logger  *slog.Logger
}

func NewDispatcher(tables Tables, exports Exports, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{tables: tables, exports: exports, logger: logger}
}

// Handle runs one request. Failures are returned as an ErrorResponse next
// to the error itself so transports can pick a status code.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) (any, error) {
	res, err := d.dispatch(ctx, raw)
	if err != nil {
		d.logger.Warn("request failed", "type", gjson.GetBytes(raw, "type").String(), "error", err)
		return ErrorResponse{Error: err.Error()}, err
	}
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, raw []byte) (any, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrBadRequest)
	}

	switch kind := gjson.GetBytes(raw, "type").String(); kind {
	case KindGetTablesForURL:
		tables, err := d.tables.FindByURL(ctx, gjson.GetBytes(raw, "url").String())
		if err != nil {
			return nil, err
		}
		return tablesResponse{Tables: tables}, nil

	case KindCreateTable:
		var req createTableRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		table, err := d.tables.Create(ctx, models.TableSchema{
			Name:          req.Name,
			TableSelector: req.TableSelector,
			DataSection:   req.DataSection,
		}, req.SourceURL)
		if err != nil {
			return nil, err
		}
		return tableResponse{Table: table}, nil

	case KindSaveColumn:
		var req saveColumnRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		table, err := d.tables.UpsertColumn(ctx, req.TableID, req.Column, repository.Locator{
			TableSelector: req.TableSelector,
			DataSection:   req.DataSection,
		})
		if err != nil {
			return nil, err
		}
		return tableResponse{Table: table}, nil

	case KindRemoveColumn:
		var req removeColumnRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		table, err := d.tables.RemoveColumn(ctx, req.TableID, req.ColumnID)
		if err != nil {
			return nil, err
		}
		return tableResponse{Table: table}, nil

	case KindUpdateTable:
		var req updateTableRequest
		if err := decode(raw, &req); err != nil {
			return nil, err
		}
		table, err := d.tables.Update(ctx, req.Table.ID, req.Table)
		if err != nil {
			return nil, err
		}
		return tableResponse{Table: table}, nil

	case KindDeleteTable:
		if err := d.tables.Delete(ctx, gjson.GetBytes(raw, "tableId").String()); err != nil {
			return nil, err
		}
		return successResponse{Success: true}, nil

	case KindGetAllTables:
		tables, err := d.tables.List(ctx)
		if err != nil {
			return nil, err
		}
		return tablesResponse{Tables: tables}, nil

	case KindExportTable:
		return d.export(ctx, raw)

	default:
		return nil, models.ErrUnknownRequest
	}
}

// export validates what it can up front and hands the run to the scheduler
func (d *Dispatcher) export(ctx context.Context, raw []byte) (any, error) {
	tableID := gjson.GetBytes(raw, "tableId").String()

	table, err := d.tables.Get(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if len(table.Columns) == 0 {
		return nil, models.ErrNoColumns
	}

	list := dateList(gjson.GetBytes(raw, "dates"))
	if len(list) == 0 {
		return nil, models.ErrNoDates
	}

	job, err := d.exports.Submit(table.ID, list)
	if err != nil {
		return nil, err
	}
	return exportResponse{Status: "started", JobID: job.ID}, nil
}

// dateList accepts either a JSON array of dates or a newline/comma separated string
func dateList(v gjson.Result) []string {
	if v.IsArray() {
		var tokens []string
		for _, item := range v.Array() {
			tokens = append(tokens, item.String())
		}
		return dates.Filter(tokens)
	}
	return dates.Parse(v.String())
}

func decode(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
