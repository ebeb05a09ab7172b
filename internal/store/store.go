// Package store is the Postgres adapter of §4.3: window/polygon containment
// reads, magnet updates, and the LISTEN/NOTIFY change feed magnets are
// broadcast over.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/swlody/fridge-poetry/internal/apperr"
	"github.com/swlody/fridge-poetry/internal/geometry"
	"github.com/swlody/fridge-poetry/internal/wire"
)

// ChangeChannel is the Postgres NOTIFY channel magnet mutations are
// published on (§4.3).
const ChangeChannel = "magnet_updates"

// Change is a single magnet mutation notification, decoded from the JSON
// payload a trigger publishes on ChangeChannel.
type Change struct {
	ID       int32  `json:"id"`
	NewX     int32  `json:"new_x"`
	NewY     int32  `json:"new_y"`
	OldX     int32  `json:"old_x"`
	OldY     int32  `json:"old_y"`
	Rotation int32  `json:"rotation"`
	ZIndex   int64  `json:"z_index"`
	Word     string `json:"word"`
}

// Store wraps a Postgres connection pool and the LISTEN/NOTIFY listener
// magnet change events are streamed through.
type Store struct {
	db       *sqlx.DB
	listener *pq.Listener
}

// Open connects to databaseURL with a pool sized per §5 (5-10 connections)
// and starts listening on ChangeChannel. The returned Store owns both the
// pool and the listener; Close releases them.
func Open(ctx context.Context, databaseURL string, maxConns int) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.Store, "connect to postgres", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	listener := pq.NewListener(databaseURL, 10*time.Second, time.Minute, nil)
	if err := listener.Listen(ChangeChannel); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.Store, "listen on "+ChangeChannel, err)
	}

	return &Store{db: db, listener: listener}, nil
}

// Close releases the listener and connection pool.
func (s *Store) Close() error {
	lerr := s.listener.Close()
	derr := s.db.Close()
	if lerr != nil {
		return lerr
	}
	return derr
}

// IsClosed reports whether the underlying pool is no longer usable, for the
// health endpoint (§4 supplemented features).
func (s *Store) IsClosed() bool {
	return s.db.Ping() != nil
}

// MagnetsForShape dispatches to MagnetsInWindow or MagnetsInPolygon
// depending on which field of shape is populated.
func (s *Store) MagnetsForShape(ctx context.Context, shape *geometry.Shape) ([]wire.Magnet, error) {
	switch {
	case shape.Window != nil:
		return s.MagnetsInWindow(ctx, *shape.Window)
	case shape.Polygon != nil:
		return s.MagnetsInPolygon(ctx, *shape.Polygon)
	default:
		return nil, fmt.Errorf("shape has neither window nor polygon")
	}
}

const magnetColumns = `id, coords[0]::int AS x, coords[1]::int AS y, rotation, word, z_index`

// MagnetsInWindow returns every magnet whose coordinates fall within the
// closed rectangle w, using Postgres's native box containment operator.
func (s *Store) MagnetsInWindow(ctx context.Context, w geometry.Window) ([]wire.Magnet, error) {
	const q = `SELECT ` + magnetColumns + `
		FROM magnets
		WHERE coords <@ box(point($1::int, $2::int), point($3::int, $4::int))`

	var rows []magnetRow
	if err := s.db.SelectContext(ctx, &rows, q, w.X1, w.Y1, w.X2, w.Y2); err != nil {
		return nil, apperr.Wrap(apperr.Store, "query magnets in window", err)
	}
	return toMagnets(rows), nil
}

// MagnetsInPolygon returns every magnet contained in the six-vertex polygon
// p, built as a literal Postgres polygon value.
func (s *Store) MagnetsInPolygon(ctx context.Context, p geometry.Polygon) ([]wire.Magnet, error) {
	const q = `SELECT ` + magnetColumns + `
		FROM magnets
		WHERE coords <@ polygon(
			'(' ||
			'(' || $1::int  || ',' || $2::int  || '),' ||
			'(' || $3::int  || ',' || $4::int  || '),' ||
			'(' || $5::int  || ',' || $6::int  || '),' ||
			'(' || $7::int  || ',' || $8::int  || '),' ||
			'(' || $9::int  || ',' || $10::int || '),' ||
			'(' || $11::int || ',' || $12::int || ')' ||
			')')`

	var rows []magnetRow
	err := s.db.SelectContext(ctx, &rows, q,
		p.P1.X, p.P1.Y, p.P2.X, p.P2.Y, p.P3.X, p.P3.Y,
		p.P4.X, p.P4.Y, p.P5.X, p.P5.Y, p.P6.X, p.P6.Y)
	if err != nil {
		return nil, apperr.Wrap(apperr.Store, "query magnets in polygon", err)
	}
	return toMagnets(rows), nil
}

// UpdateMagnet relocates magnet id, bumping its z-index to the front via the
// shared sequence and recording sessionID as the last modifier. A missing id
// is reported as an OutOfBounds apperr, matching the session handler's
// bounds-check semantics for an update naming a magnet that doesn't exist.
func (s *Store) UpdateMagnet(ctx context.Context, id int32, x, y, rotation int32, sessionID string) error {
	const q = `UPDATE magnets
		SET coords = point($1::int, $2::int),
		    rotation = $3,
		    z_index = nextval('magnets_z_index_seq'),
		    last_modifier = $4
		WHERE id = $5`

	res, err := s.db.ExecContext(ctx, q, x, y, rotation, sessionID, id)
	if err != nil {
		return apperr.Wrap(apperr.Store, "update magnet", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.Store, "update magnet rows affected", err)
	}
	if n == 0 {
		return apperr.New(apperr.OutOfBounds, fmt.Sprintf("no magnet with id %d", id))
	}
	return nil
}

// ErrListenerClosed signals that the underlying pq.Listener is no longer
// usable (its notification channel closed, or a health ping failed) — a
// fatal condition the broadcaster must not retry past, distinct from a
// single malformed payload (which is logged and skipped).
var ErrListenerClosed = errors.New("postgres listener closed")

// Listen streams decoded change notifications until ctx is cancelled or the
// listener fails terminally. It is meant to be driven from a single
// long-lived goroutine (the broadcaster); reconnection against Postgres is
// handled internally by *pq.Listener — transient disconnects never reach
// errs. What does reach errs: a decode error for each malformed payload
// (the stream continues), ctx.Err() on cancellation, and the unrecoverable
// conditions wrapping ErrListenerClosed; changes is closed after the last two.
func (s *Store) Listen(ctx context.Context) (<-chan Change, <-chan error) {
	changes := make(chan Change)
	errs := make(chan error, 1)

	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case n, ok := <-s.listener.Notify:
				if !ok {
					errs <- fmt.Errorf("%w: notification channel closed", ErrListenerClosed)
					return
				}
				if n == nil {
					// pq reconnected; nothing to deliver.
					continue
				}
				var c Change
				if err := json.Unmarshal([]byte(n.Extra), &c); err != nil {
					errs <- fmt.Errorf("decode change payload: %w", err)
					continue
				}
				select {
				case changes <- c:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			case <-time.After(90 * time.Second):
				// Idle ping keeps pq.Listener's connection-health check alive
				// per its documented Ping usage.
				if err := s.listener.Ping(); err != nil {
					errs <- fmt.Errorf("%w: %v", ErrListenerClosed, err)
					return
				}
			}
		}
	}()

	return changes, errs
}

type magnetRow struct {
	ID       int32  `db:"id"`
	X        int32  `db:"x"`
	Y        int32  `db:"y"`
	Rotation int32  `db:"rotation"`
	Word     string `db:"word"`
	ZIndex   int64  `db:"z_index"`
}

func toMagnets(rows []magnetRow) []wire.Magnet {
	out := make([]wire.Magnet, len(rows))
	for i, r := range rows {
		out[i] = wire.Magnet{
			ID:       r.ID,
			X:        r.X,
			Y:        r.Y,
			Rotation: r.Rotation,
			ZIndex:   r.ZIndex,
			Word:     r.Word,
		}
	}
	return out
}
