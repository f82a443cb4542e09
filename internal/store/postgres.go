package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// SQL stores results in a relational table. The same statements serve Postgres (pgx)
// and SQLite (modernc); SQLite receives ?N placeholders instead of $N.
type SQL struct {
	db     *sql.DB
	driver string
}

const schema = `CREATE TABLE IF NOT EXISTS cpp_results (
    instance_key TEXT NOT NULL,
    solver_label TEXT NOT NULL,
    time_sec     INTEGER NOT NULL,
    optimal      BOOLEAN NOT NULL,
    objective    TEXT,
    routes       TEXT NOT NULL,
    updated_at   TEXT NOT NULL,
    PRIMARY KEY (instance_key, solver_label)
)`

// NewPostgres connects to Postgres through the pgx stdlib driver.
func NewPostgres(dsn string) (*SQL, error) { return NewSQL("pgx", dsn) }

// NewSQLite opens (or creates) a SQLite database file.
func NewSQLite(path string) (*SQL, error) { return NewSQL("sqlite", path) }

// NewSQL opens db with driver, pings it and ensures the results table exists.
func NewSQL(driver, dsn string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// one writer at a time; avoids SQLITE_BUSY under database/sql pooling
		db.SetMaxOpenConns(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQL{db: db, driver: driver}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Open picks a backend from a DSN: postgres:// and postgresql:// use pgx,
// sqlite:// (or a path ending in .db / .sqlite) uses SQLite.
func Open(dsn string) (*SQL, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgres(dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return NewSQLite(strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return NewSQLite(dsn)
	}
	return nil, fmt.Errorf("unsupported database url %q", redactDSN(dsn))
}

func (s *SQL) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) Close() error { return s.db.Close() }

func (s *SQL) q(query string) string {
	if s.driver == "sqlite" {
		return strings.ReplaceAll(query, "$", "?")
	}
	return query
}

func (s *SQL) Save(ctx context.Context, key string, rec model.ResultRecord, merge bool) error {
	if rec.Label == "" {
		return fmt.Errorf("record for %s has no label", key)
	}
	routes, err := json.Marshal(nonNilRoutes(rec.Routes))
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if !merge {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM cpp_results WHERE instance_key=$1 AND solver_label<>$2`), key, rec.Label); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO cpp_results (instance_key, solver_label, time_sec, optimal, objective, routes, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (instance_key, solver_label) DO UPDATE SET
            time_sec=excluded.time_sec, optimal=excluded.optimal, objective=excluded.objective,
            routes=excluded.routes, updated_at=excluded.updated_at`),
		key, rec.Label, rec.Time, rec.Optimal, objectiveValue(rec.Objective), string(routes), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQL) Get(ctx context.Context, key string) (model.InstanceResults, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT solver_label, time_sec, optimal, objective, routes FROM cpp_results WHERE instance_key=$1`), key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := model.InstanceResults{}
	for rows.Next() {
		var (
			rec    model.ResultRecord
			obj    sql.NullString
			routes string
		)
		if err := rows.Scan(&rec.Label, &rec.Time, &rec.Optimal, &obj, &routes); err != nil {
			return nil, err
		}
		if obj.Valid {
			v, err := strconv.ParseFloat(obj.String, 64)
			if err != nil {
				return nil, fmt.Errorf("objective of %s/%s: %w", key, rec.Label, err)
			}
			rec.Objective = model.NewObjective(v)
		}
		if err := json.Unmarshal([]byte(routes), &rec.Routes); err != nil {
			return nil, fmt.Errorf("routes of %s/%s: %w", key, rec.Label, err)
		}
		out[rec.Label] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *SQL) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT instance_key FROM cpp_results`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	SortKeys(keys)
	return keys, nil
}

func objectiveValue(o model.Objective) any {
	if !o.Valid {
		return nil
	}
	return o.String()
}

func nonNilRoutes(r []model.Route) []model.Route {
	if r == nil {
		return []model.Route{}
	}
	return r
}

// redactDSN hides credentials before a DSN reaches an error message or log line.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	return dsn[:scheme+3] + "***" + dsn[at:]
}
