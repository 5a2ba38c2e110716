package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warecover/backend/internal/models"
)

// Store persists session-scoped snapshots: the speed matrix, sales and
// the active warehouse set, each partitioned by session id. A new
// upload of a kind replaces that session's data wholesale.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS regions (
	session_id  TEXT NOT NULL,
	region_code TEXT NOT NULL,
	region_name TEXT NOT NULL,
	PRIMARY KEY (session_id, region_code)
);

CREATE TABLE IF NOT EXISTS warehouses (
	session_id     TEXT NOT NULL,
	warehouse_id   TEXT NOT NULL,
	warehouse_name TEXT NOT NULL,
	PRIMARY KEY (session_id, warehouse_id)
);

CREATE TABLE IF NOT EXISTS speeds (
	session_id   TEXT NOT NULL,
	region_code  TEXT NOT NULL,
	warehouse_id TEXT NOT NULL,
	time_hours   DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (session_id, region_code, warehouse_id)
);

CREATE TABLE IF NOT EXISTS sales (
	session_id  TEXT NOT NULL,
	region_code TEXT NOT NULL,
	orders      DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (session_id, region_code)
);

CREATE TABLE IF NOT EXISTS active_warehouses (
	session_id   TEXT NOT NULL,
	warehouse_id TEXT NOT NULL,
	PRIMARY KEY (session_id, warehouse_id)
);

CREATE TABLE IF NOT EXISTS uploads (
	id            BIGSERIAL PRIMARY KEY,
	session_id    TEXT NOT NULL,
	kind          TEXT NOT NULL,
	filename      TEXT NOT NULL,
	format        TEXT NOT NULL,
	rows_parsed   INT NOT NULL,
	problem_cells INT NOT NULL,
	uploaded_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schemaSQL)
	return err
}

// ReplaceSpeeds swaps a session's matrix wholesale. Active ids that no
// longer exist in the new matrix are pruned in the same transaction, so
// the caller-owned set stays a subset of known warehouses.
func (s *Store) ReplaceSpeeds(ctx context.Context, sessionID string, m *models.SpeedMatrix) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, table := range []string{"speeds", "regions", "warehouses"} {
			if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE session_id = $1", sessionID); err != nil {
				return err
			}
		}

		regionRows := make([][]any, 0, len(m.Regions))
		for _, code := range m.RegionCodes() {
			regionRows = append(regionRows, []any{sessionID, code, m.Regions[code]})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"regions"},
			[]string{"session_id", "region_code", "region_name"}, pgx.CopyFromRows(regionRows)); err != nil {
			return err
		}

		whRows := make([][]any, 0, len(m.Warehouses))
		for _, id := range m.WarehouseIDs() {
			whRows = append(whRows, []any{sessionID, id, m.Warehouses[id]})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"warehouses"},
			[]string{"session_id", "warehouse_id", "warehouse_name"}, pgx.CopyFromRows(whRows)); err != nil {
			return err
		}

		entries := m.Entries()
		speedRows := make([][]any, 0, len(entries))
		for _, e := range entries {
			speedRows = append(speedRows, []any{sessionID, e.RegionCode, e.WarehouseID, e.TimeHours})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"speeds"},
			[]string{"session_id", "region_code", "warehouse_id", "time_hours"}, pgx.CopyFromRows(speedRows)); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			DELETE FROM active_warehouses
			WHERE session_id = $1 AND warehouse_id NOT IN (
				SELECT warehouse_id FROM warehouses WHERE session_id = $1
			)`, sessionID)
		return err
	})
}

func (s *Store) ReplaceSales(ctx context.Context, sessionID string, records []models.SalesRecord) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM sales WHERE session_id = $1", sessionID); err != nil {
			return err
		}
		for _, rec := range records {
			if _, err := tx.Exec(ctx, `
				INSERT INTO sales (session_id, region_code, orders)
				VALUES ($1, $2, $3)
				ON CONFLICT (session_id, region_code) DO UPDATE SET orders = sales.orders + EXCLUDED.orders
			`, sessionID, rec.RegionCode, rec.Orders); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadMatrix reassembles the canonical matrix for a session.
func (s *Store) LoadMatrix(ctx context.Context, sessionID string) (*models.SpeedMatrix, error) {
	m := models.NewSpeedMatrix()

	rows, err := s.Pool.Query(ctx, `SELECT region_code, region_name FROM regions WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, err
		}
		m.Regions[code] = name
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	whRows, err := s.Pool.Query(ctx, `SELECT warehouse_id, warehouse_name FROM warehouses WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer whRows.Close()
	for whRows.Next() {
		var id, name string
		if err := whRows.Scan(&id, &name); err != nil {
			return nil, err
		}
		m.Warehouses[id] = name
	}
	if err := whRows.Err(); err != nil {
		return nil, err
	}

	speedRows, err := s.Pool.Query(ctx, `SELECT region_code, warehouse_id, time_hours FROM speeds WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer speedRows.Close()
	for speedRows.Next() {
		var code, id string
		var hours float64
		if err := speedRows.Scan(&code, &id, &hours); err != nil {
			return nil, err
		}
		m.Set(code, id, hours)
	}
	return m, speedRows.Err()
}

func (s *Store) SalesRecords(ctx context.Context, sessionID string) ([]models.SalesRecord, error) {
	rows, err := s.Pool.Query(ctx, `SELECT region_code, orders FROM sales WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SalesRecord
	for rows.Next() {
		var rec models.SalesRecord
		if err := rows.Scan(&rec.RegionCode, &rec.Orders); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// HasSpeeds is the cheap existence check callers run before
// reassembling a whole matrix.
func (s *Store) HasSpeeds(ctx context.Context, sessionID string) (bool, error) {
	var has bool
	err := s.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM speeds WHERE session_id = $1)`, sessionID).Scan(&has)
	return has, err
}

func (s *Store) ListWarehouses(ctx context.Context, sessionID string) ([]models.WarehouseStatus, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT w.warehouse_id, w.warehouse_name,
		       aw.warehouse_id IS NOT NULL AS active
		FROM warehouses w
		LEFT JOIN active_warehouses aw
		  ON aw.session_id = w.session_id AND aw.warehouse_id = w.warehouse_id
		WHERE w.session_id = $1
		ORDER BY w.warehouse_id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WarehouseStatus
	for rows.Next() {
		var ws models.WarehouseStatus
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Active); err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

func (s *Store) SetActive(ctx context.Context, sessionID string, ids []string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM active_warehouses WHERE session_id = $1`, sessionID); err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := tx.Exec(ctx, `
				INSERT INTO active_warehouses (session_id, warehouse_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING
			`, sessionID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) AddActive(ctx context.Context, sessionID, warehouseID string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO active_warehouses (session_id, warehouse_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING
	`, sessionID, warehouseID)
	return err
}

func (s *Store) RemoveActive(ctx context.Context, sessionID, warehouseID string) error {
	_, err := s.Pool.Exec(ctx, `
		DELETE FROM active_warehouses WHERE session_id = $1 AND warehouse_id = $2
	`, sessionID, warehouseID)
	return err
}

func (s *Store) ActiveIDs(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT warehouse_id FROM active_warehouses WHERE session_id = $1 ORDER BY warehouse_id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) AddUpload(ctx context.Context, u models.Upload) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO uploads (session_id, kind, filename, format, rows_parsed, problem_cells)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.SessionID, u.Kind, u.Filename, u.Format, u.RowsParsed, u.ProblemCells)
	return err
}

func (s *Store) ListUploads(ctx context.Context, sessionID string, limit int) ([]models.Upload, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, session_id, kind, filename, format, rows_parsed, problem_cells, uploaded_at
		FROM uploads WHERE session_id = $1
		ORDER BY uploaded_at DESC LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Upload
	for rows.Next() {
		var u models.Upload
		var at time.Time
		if err := rows.Scan(&u.ID, &u.SessionID, &u.Kind, &u.Filename, &u.Format, &u.RowsParsed, &u.ProblemCells, &at); err != nil {
			return nil, err
		}
		u.UploadedAt = at
		out = append(out, u)
	}
	return out, rows.Err()
}
