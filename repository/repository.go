// Package repository keeps the list of table schemas in a db.Store.
// Every operation reads the whole list, modifies it and writes it back;
// a mutex keeps those read-modify-write cycles from interleaving inside
// one process. Nothing protects against other processes sharing the store.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"dario.cat/mergo"
	"github.com/oklog/ulid/v2"

	"github.com/dmitrysluch/eva-table-reactor/db"
	"github.com/dmitrysluch/eva-table-reactor/models"
)

// DefaultKey is the store key holding the schema list
const DefaultKey = "tables"

// Repository is CRUD over the persisted schema list
type Repository struct {
	store  db.Store
	key    string
	logger *slog.Logger
	mu     sync.Mutex

	// newID is swapped in tests for deterministic ids
	newID func(prefix string) string
}

// Locator carries the table locator captured together with a column.
// Empty fields leave the stored values alone.
type Locator struct {
	TableSelector string
	DataSection   models.DataSection
}

// New creates a repository storing the list under key
func New(store db.Store, key string, logger *slog.Logger) *Repository {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		store:  store,
		key:    key,
		logger: logger,
		newID:  newID,
	}
}

func newID(prefix string) string {
	return prefix + "-" + strings.ToLower(ulid.Make().String())
}

// Init persists an empty list when the store has none yet
func (r *Repository) Init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok, err := r.store.Get(ctx, r.key)
	if err != nil {
		return fmt.Errorf("failed to read tables: %w", err)
	}
	if ok {
		return nil
	}
	return r.save(ctx, []models.TableSchema{})
}

// List returns every schema with defaults applied
func (r *Repository) List(ctx context.Context) ([]models.TableSchema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Get returns the schema with the given id
func (r *Repository) Get(ctx context.Context, id string) (models.TableSchema, error) {
	tables, err := r.List(ctx)
	if err != nil {
		return models.TableSchema{}, err
	}
	if i := indexOf(tables, id); i >= 0 {
		return tables[i], nil
	}
	return models.TableSchema{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
}

// Create assigns an id to seed, fills defaults and appends it.
// sourceURL is the page the schema is being authored on.
func (r *Repository) Create(ctx context.Context, seed models.TableSchema, sourceURL string) (models.TableSchema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables, err := r.load(ctx)
	if err != nil {
		return models.TableSchema{}, err
	}

	seed.ID = r.newID("table")
	if seed.Name == "" {
		seed.Name = defaultName(len(tables))
	}
	if seed.URLTemplate == "" {
		seed.URLTemplate = sourceURL
	}
	seed.Page = models.PageLocation{}
	seed.Columns = nil

	table := models.ApplyDefaults(seed, sourceURL)
	tables = append(tables, table)

	if err := r.save(ctx, tables); err != nil {
		return models.TableSchema{}, err
	}

	r.logger.Info("table created", "schema_id", table.ID, "name", table.Name)
	return table, nil
}

// Update merges the non-zero fields of patch onto the stored schema.
// The page location is recomputed from the effective URL template.
func (r *Repository) Update(ctx context.Context, id string, patch models.TableSchema) (models.TableSchema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables, err := r.load(ctx)
	if err != nil {
		return models.TableSchema{}, err
	}

	i := indexOf(tables, id)
	if i < 0 {
		return models.TableSchema{}, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	old := tables[i]

	merged := old
	patch.ID = ""
	if err := mergo.Merge(&merged, patch, mergo.WithOverride); err != nil {
		return models.TableSchema{}, fmt.Errorf("failed to merge table patch: %w", err)
	}
	merged.ID = old.ID

	// Patched columns are folded one by one so names stay unique
	patched := merged.Columns
	merged.Columns = []models.ColumnRule{}
	for _, col := range patched {
		merged.Columns = r.mergeColumn(merged, col)
	}

	template := patch.URLTemplate
	if template == "" {
		template = old.URLTemplate
	}
	if loc, ok := models.NormalizeLocation(template); ok {
		merged.Page = loc
	} else {
		merged.Page = old.Page
	}

	tables[i] = models.ApplyDefaults(merged, "")
	if err := r.save(ctx, tables); err != nil {
		return models.TableSchema{}, err
	}
	return tables[i], nil
}

// Delete removes the schema with the given id; unknown ids are ignored
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables, err := r.load(ctx)
	if err != nil {
		return err
	}

	filtered := tables[:0]
	for _, t := range tables {
		if t.ID != id {
			filtered = append(filtered, t)
		}
	}
	if err := r.save(ctx, filtered); err != nil {
		return err
	}

	r.logger.Info("table deleted", "schema_id", id)
	return nil
}

// UpsertColumn merges col into the schema's columns.
// A column matching by id or by name is replaced in place, otherwise col is appended.
func (r *Repository) UpsertColumn(ctx context.Context, tableID string, col models.ColumnRule, loc Locator) (models.TableSchema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables, err := r.load(ctx)
	if err != nil {
		return models.TableSchema{}, err
	}

	i := indexOf(tables, tableID)
	if i < 0 {
		return models.TableSchema{}, fmt.Errorf("%w: %s", models.ErrNotFound, tableID)
	}
	table := tables[i]

	if loc.TableSelector != "" {
		table.TableSelector = loc.TableSelector
	}
	if loc.DataSection.Valid() {
		table.DataSection = loc.DataSection
	}
	table.Columns = r.mergeColumn(table, col)

	tables[i] = table
	if err := r.save(ctx, tables); err != nil {
		return models.TableSchema{}, err
	}
	return table, nil
}

// RemoveColumn drops the column with the given id; unknown column ids are ignored
func (r *Repository) RemoveColumn(ctx context.Context, tableID, columnID string) (models.TableSchema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables, err := r.load(ctx)
	if err != nil {
		return models.TableSchema{}, err
	}

	i := indexOf(tables, tableID)
	if i < 0 {
		return models.TableSchema{}, fmt.Errorf("%w: %s", models.ErrNotFound, tableID)
	}
	table := tables[i]

	kept := make([]models.ColumnRule, 0, len(table.Columns))
	for _, c := range table.Columns {
		if c.ID != columnID {
			kept = append(kept, c)
		}
	}
	table.Columns = kept

	tables[i] = table
	if err := r.save(ctx, tables); err != nil {
		return models.TableSchema{}, err
	}
	return table, nil
}

// FindByLocation returns the schemas authored on the given location.
// An empty location matches nothing.
func (r *Repository) FindByLocation(ctx context.Context, loc models.PageLocation) ([]models.TableSchema, error) {
	if loc.Origin == "" || loc.Pathname == "" {
		return []models.TableSchema{}, nil
	}

	tables, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := []models.TableSchema{}
	for _, t := range tables {
		if t.Page.Origin == loc.Origin && t.Page.Pathname == loc.Pathname {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

// FindByURL normalizes rawURL and calls FindByLocation
func (r *Repository) FindByURL(ctx context.Context, rawURL string) ([]models.TableSchema, error) {
	loc, _ := models.NormalizeLocation(rawURL)
	return r.FindByLocation(ctx, loc)
}

// load must be called with r.mu held
func (r *Repository) load(ctx context.Context) ([]models.TableSchema, error) {
	raw, ok, err := r.store.Get(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}
	if !ok || len(raw) == 0 {
		return []models.TableSchema{}, nil
	}

	var tables []models.TableSchema
	if err := json.Unmarshal(raw, &tables); err != nil {
		return nil, fmt.Errorf("failed to decode tables: %w", err)
	}

	for i := range tables {
		if tables[i].Name == "" {
			tables[i].Name = defaultName(i)
		}
		tables[i] = models.ApplyDefaults(tables[i], "")
	}
	return tables, nil
}

// save must be called with r.mu held
func (r *Repository) save(ctx context.Context, tables []models.TableSchema) error {
	if tables == nil {
		tables = []models.TableSchema{}
	}
	raw, err := json.Marshal(tables)
	if err != nil {
		return fmt.Errorf("failed to encode tables: %w", err)
	}
	if err := r.store.Set(ctx, r.key, raw); err != nil {
		return fmt.Errorf("failed to write tables: %w", err)
	}
	return nil
}

// mergeColumn returns table's columns with col replacing the first column
// matching its id or name, or appended when none matches. Other columns
// sharing col's id or name are dropped.
func (r *Repository) mergeColumn(table models.TableSchema, col models.ColumnRule) []models.ColumnRule {
	if !col.Section.Valid() {
		col.Section = models.SectionTBody
	}
	if col.SampleRowIndex < 0 {
		col.SampleRowIndex = 0
	}

	j := table.ColumnIndexOf(col.ID, col.Name)
	if j < 0 {
		if col.ID == "" {
			col.ID = r.newID("col")
		}
		return append(table.Columns, col)
	}

	// Matched by name: the stored id survives when the caller sent none
	if col.ID == "" {
		col.ID = table.Columns[j].ID
	}
	columns := make([]models.ColumnRule, 0, len(table.Columns))
	for k, c := range table.Columns {
		switch {
		case k == j:
			columns = append(columns, col)
		case c.ID == col.ID || c.Name == col.Name:
			// a second match would collide with col after the replace
		default:
			columns = append(columns, c)
		}
	}
	return columns
}

// defaultName is the placeholder name of the schema at position i
func defaultName(i int) string {
	return fmt.Sprintf("Table %d", i+1)
}

func indexOf(tables []models.TableSchema, id string) int {
	for i, t := range tables {
		if t.ID == id {
			return i
		}
	}
	return -1
}
