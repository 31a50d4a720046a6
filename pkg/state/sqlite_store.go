package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

const tracerName = "github.com/goliatone/go-strata/pkg/state"

const schema = `
CREATE TABLE IF NOT EXISTS layer_snapshots (
	entity_id TEXT NOT NULL,
	layer TEXT NOT NULL,
	payload TEXT NOT NULL,
	snapshot_id TEXT NOT NULL,
	etag TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	extra TEXT,
	PRIMARY KEY (entity_id, layer)
);
CREATE INDEX IF NOT EXISTS idx_layer_snapshots_layer ON layer_snapshots(layer);
`

// SQLiteStore persists layers in a SQLite database, one row per entity and
// layer. Values are stored as JSON.
type SQLiteStore struct {
	db     *sql.DB
	tracer trace.Tracer
	now    func() time.Time
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithTracer replaces the tracer obtained from the global provider.
func WithTracer(tracer trace.Tracer) SQLiteOption {
	return func(s *SQLiteStore) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock sets the time source used to stamp saved layers.
func WithClock(now func() time.Time) SQLiteOption {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// OpenSQLite opens or creates the database at path. Use ":memory:" for a
// throwaway store.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite %q: %w", path, err)
	}
	// an in-memory database lives as long as its connection
	db.SetMaxOpenConns(1)
	store, err := NewSQLiteStore(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an open database and applies the schema.
func NewSQLiteStore(db *sql.DB, opts ...SQLiteOption) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("state: database is required")
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("state: apply schema: %w", err)
	}
	s := &SQLiteStore{db: db, tracer: otel.Tracer(tracerName), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, ref Ref) (values map[string]any, meta Meta, ok bool, err error) {
	ctx, span := s.start(ctx, "state.sqlite.load", ref)
	defer func() { finish(span, err) }()

	if _, err = ref.Identifier(); err != nil {
		return nil, Meta{}, false, err
	}

	var (
		payload   string
		updatedAt int64
		extra     sql.NullString
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT payload, snapshot_id, etag, updated_at, extra
		 FROM layer_snapshots WHERE entity_id = ? AND layer = ?`,
		ref.EntityID, ref.Layer,
	).Scan(&payload, &meta.SnapshotID, &meta.ETag, &updatedAt, &extra)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("strata.state.found", false))
		return nil, Meta{}, false, nil
	}
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: load %q/%q: %w", ref.Layer, ref.EntityID, err)
	}

	if err = json.Unmarshal([]byte(payload), &values); err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: decode %q/%q: %w", ref.Layer, ref.EntityID, err)
	}
	if extra.Valid && extra.String != "" {
		if err = json.Unmarshal([]byte(extra.String), &meta.Extra); err != nil {
			return nil, Meta{}, false, fmt.Errorf("state: decode meta %q/%q: %w", ref.Layer, ref.EntityID, err)
		}
	}
	meta.UpdatedAt = time.Unix(0, updatedAt).UTC()
	span.SetAttributes(attribute.Bool("strata.state.found", true), attribute.String("strata.state.etag", meta.ETag))
	return values, meta, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, ref Ref, values map[string]any, meta Meta) (saved Meta, err error) {
	ctx, span := s.start(ctx, "state.sqlite.save", ref)
	defer func() { finish(span, err) }()

	if _, err = ref.Identifier(); err != nil {
		return Meta{}, err
	}
	if values == nil {
		values = map[string]any{}
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %q/%q: %w", ref.Layer, ref.EntityID, err)
	}
	saved, err = stamp(values, meta, s.now())
	if err != nil {
		return Meta{}, err
	}
	var extra sql.NullString
	if len(saved.Extra) > 0 {
		raw, err := json.Marshal(saved.Extra)
		if err != nil {
			return Meta{}, fmt.Errorf("state: encode meta %q/%q: %w", ref.Layer, ref.EntityID, err)
		}
		extra = sql.NullString{String: string(raw), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO layer_snapshots (entity_id, layer, payload, snapshot_id, etag, updated_at, extra)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entity_id, layer) DO UPDATE SET
			payload = excluded.payload,
			snapshot_id = excluded.snapshot_id,
			etag = excluded.etag,
			updated_at = excluded.updated_at,
			extra = excluded.extra`,
		ref.EntityID, ref.Layer, string(payload), saved.SnapshotID, saved.ETag, saved.UpdatedAt.UnixNano(), extra,
	)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %q/%q: %w", ref.Layer, ref.EntityID, err)
	}
	span.SetAttributes(attribute.String("strata.state.etag", saved.ETag))
	return saved, nil
}

// Delete removes the stored layer. Deleting a missing row is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, ref Ref) (err error) {
	ctx, span := s.start(ctx, "state.sqlite.delete", ref)
	defer func() { finish(span, err) }()

	if _, err = ref.Identifier(); err != nil {
		return err
	}
	if _, err = s.db.ExecContext(ctx,
		`DELETE FROM layer_snapshots WHERE entity_id = ? AND layer = ?`,
		ref.EntityID, ref.Layer,
	); err != nil {
		return fmt.Errorf("state: delete %q/%q: %w", ref.Layer, ref.EntityID, err)
	}
	return nil
}

// Refs lists the stored references of layer, ordered by entity id.
func (s *SQLiteStore) Refs(ctx context.Context, layer string) (refs []Ref, err error) {
	ctx, span := s.start(ctx, "state.sqlite.refs", Ref{Layer: layer})
	defer func() { finish(span, err) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id FROM layer_snapshots WHERE layer = ? ORDER BY entity_id`,
		layer,
	)
	if err != nil {
		return nil, fmt.Errorf("state: list %q: %w", layer, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("state: list %q: %w", layer, err)
		}
		refs = append(refs, Ref{EntityID: id, Layer: layer})
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("state: list %q: %w", layer, err)
	}
	return refs, nil
}

func (s *SQLiteStore) start(ctx context.Context, name string, ref Ref) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "sqlite"),
		attribute.String("strata.layer", ref.Layer),
	)
	if ref.EntityID != "" {
		span.SetAttributes(attribute.String("strata.entity_id", ref.EntityID))
	}
	return ctx, span
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
