package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// runRepo implements RunRepo on the runs table.
type runRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

const runColumns = `id, sequence, timestamp, card_type, target, produced, provider, model, from_cache, data`

func (r *runRepo) Save(ctx context.Context, run *Run) error {
	if run.Sequence == 0 {
		seq, err := r.seq.Next(ctx)
		if err != nil {
			return err
		}
		run.Sequence = seq
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(run.Data)
	if err != nil {
		return fmt.Errorf("marshal run data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Sequence, run.Timestamp.UnixMilli(), run.CardType, run.Target,
		run.Produced, run.Provider, run.Model, run.FromCache, string(data))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (r *runRepo) Latest(ctx context.Context) (*Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY timestamp DESC, sequence DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	return run, nil
}

func (r *runRepo) List(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY timestamp DESC, sequence DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func (r *runRepo) Prune(ctx context.Context, keep int) error {
	// Delete everything past the newest keep rows.
	_, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY timestamp DESC, sequence DESC LIMIT ?
	)`, keep)
	if err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}
	return nil
}

func scanRun(s rowScanner) (*Run, error) {
	var (
		run  Run
		ts   int64
		data string
	)
	err := s.Scan(&run.ID, &run.Sequence, &ts, &run.CardType, &run.Target, &run.Produced,
		&run.Provider, &run.Model, &run.FromCache, &data)
	if err != nil {
		return nil, err
	}
	run.Timestamp = time.UnixMilli(ts).UTC()
	if err := json.Unmarshal([]byte(data), &run.Data); err != nil {
		return nil, fmt.Errorf("unmarshal run data: %w", err)
	}
	return &run, nil
}
