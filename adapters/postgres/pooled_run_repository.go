package postgres

import (
	"context"
	"database/sql"
	"errors"

	"mipool/domain/core"
	"mipool/domain/pooling"
	"mipool/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Connect opens a PostgreSQL connection pool
func Connect(databaseURL string) (*sqlx.DB, error) {
	return sqlx.Connect("postgres", databaseURL)
}

// PooledRunRepositoryImpl implements PooledRunRepository for PostgreSQL
type PooledRunRepositoryImpl struct {
	db *sqlx.DB
}

// NewPooledRunRepository creates a new PostgreSQL pooled-run repository
func NewPooledRunRepository(db *sqlx.DB) ports.PooledRunRepository {
	return &PooledRunRepositoryImpl{db: db}
}

// resultRow is the flat row shape for pooled_results
type resultRow struct {
	RunID    string  `db:"run_id"`
	Position int     `db:"position"`
	Term     string  `db:"term"`
	M        int     `db:"m"`
	Qbar     float64 `db:"qbar"`
	Ubar     float64 `db:"ubar"`
	B        float64 `db:"b"`
	T        float64 `db:"t"`
	R        float64 `db:"r"`
	Lambda   float64 `db:"lambda"`
	DFCom    float64 `db:"dfcom"`
	DFOld    float64 `db:"df_old"`
	DFObs    float64 `db:"df_obs"`
	DF       float64 `db:"df"`
	FMI      float64 `db:"fmi"`
}

// Save persists a run and its result rows atomically
func (r *PooledRunRepositoryImpl) Save(ctx context.Context, run *pooling.PooledRun) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	warnings := make([]string, len(run.Warnings))
	for i, w := range run.Warnings {
		warnings[i] = string(w)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pooled_runs (id, method, m, warnings, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID.String(), string(run.Method), run.M, pq.Array(warnings), run.CreatedAt.Time())
	if err != nil {
		return err
	}

	for i, row := range run.Results {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO pooled_results (run_id, position, term, m, qbar, ubar, b, t, r, lambda, dfcom, df_old, df_obs, df, fmi)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`, run.ID.String(), i, row.Term, row.M, row.Qbar, row.Ubar, row.B, row.T, row.R,
			row.Lambda, row.DFCom, row.DFOld, row.DFObs, row.DF, row.FMI)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Get retrieves a run with its result rows in stored order
func (r *PooledRunRepositoryImpl) Get(ctx context.Context, id core.RunID) (*pooling.PooledRun, error) {
	var header struct {
		ID        string         `db:"id"`
		Method    string         `db:"method"`
		M         int            `db:"m"`
		Warnings  pq.StringArray `db:"warnings"`
		CreatedAt sql.NullTime   `db:"created_at"`
	}
	err := r.db.GetContext(ctx, &header, `
		SELECT id, method, m, warnings, created_at
		FROM pooled_runs
		WHERE id = $1
	`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("pooled run", id.String())
	}
	if err != nil {
		return nil, err
	}

	var rows []resultRow
	err = r.db.SelectContext(ctx, &rows, `
		SELECT run_id, position, term, m, qbar, ubar, b, t, r, lambda, dfcom, df_old, df_obs, df, fmi
		FROM pooled_results
		WHERE run_id = $1
		ORDER BY position
	`, id.String())
	if err != nil {
		return nil, err
	}

	run := &pooling.PooledRun{
		ID:      core.RunID(header.ID),
		Method:  pooling.Method(header.Method),
		M:       header.M,
		Results: make([]pooling.PooledResult, 0, len(rows)),
	}
	if header.CreatedAt.Valid {
		run.CreatedAt = core.NewTimestamp(header.CreatedAt.Time)
	}
	for _, w := range header.Warnings {
		run.Warnings = append(run.Warnings, pooling.WarningCode(w))
	}
	for _, row := range rows {
		run.Results = append(run.Results, toDomain(row))
	}
	return run, nil
}

// List returns run headers matching the filters, newest first. Result rows
// are not loaded; use Get for the full run.
func (r *PooledRunRepositoryImpl) List(ctx context.Context, filters ports.RunFilters) ([]*pooling.PooledRun, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, method, m, warnings, created_at
		FROM pooled_runs
	`
	args := []interface{}{}
	if filters.Method != nil {
		query += ` WHERE method = $1`
		args = append(args, string(*filters.Method))
	}
	query += ` ORDER BY created_at DESC`
	args = append(args, limit, filters.Offset)
	if filters.Method != nil {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}

	var headers []struct {
		ID        string         `db:"id"`
		Method    string         `db:"method"`
		M         int            `db:"m"`
		Warnings  pq.StringArray `db:"warnings"`
		CreatedAt sql.NullTime   `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &headers, query, args...); err != nil {
		return nil, err
	}

	runs := make([]*pooling.PooledRun, 0, len(headers))
	for _, h := range headers {
		run := &pooling.PooledRun{
			ID:     core.RunID(h.ID),
			Method: pooling.Method(h.Method),
			M:      h.M,
		}
		if h.CreatedAt.Valid {
			run.CreatedAt = core.NewTimestamp(h.CreatedAt.Time)
		}
		for _, w := range h.Warnings {
			run.Warnings = append(run.Warnings, pooling.WarningCode(w))
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func toDomain(row resultRow) pooling.PooledResult {
	return pooling.PooledResult{
		Term:   row.Term,
		M:      row.M,
		Qbar:   row.Qbar,
		Ubar:   row.Ubar,
		B:      row.B,
		T:      row.T,
		R:      row.R,
		Lambda: row.Lambda,
		DFCom:  row.DFCom,
		DFOld:  row.DFOld,
		DFObs:  row.DFObs,
		DF:     row.DF,
		FMI:    row.FMI,
	}
}
