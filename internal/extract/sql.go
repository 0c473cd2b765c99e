package extract

import (
	"context"
	"database/sql"
	"fmt"

	// Drivers register themselves via blank import; both are always
	// linked in, and SQLConfig.Driver ("mysql" or "postgres") picks one.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// SQLConfig configures a SQLExtractor.
type SQLConfig struct {
	Driver string
	DSN    string
	Query  string
	Params []any
}

// SQLExtractor runs one query against a database/sql connection and
// streams each row as a map[string]any.
type SQLExtractor struct {
	cfg SQLConfig
	db  *sql.DB
}

// NewSQLExtractor builds a SQLExtractor from cfg.
func NewSQLExtractor(cfg SQLConfig) *SQLExtractor {
	return &SQLExtractor{cfg: cfg}
}

func (s *SQLExtractor) Start(ctx context.Context) error {
	db, err := sql.Open(s.cfg.Driver, s.cfg.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	s.db = db
	return nil
}

func (s *SQLExtractor) Finish(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLExtractor) ExtractRecords(ctx context.Context) (<-chan any, error) {
	rows, err := s.db.QueryContext(ctx, s.cfg.Query, s.cfg.Params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("columns: %w", err)
	}

	out := make(chan any, 100)
	go func() {
		defer close(out)
		defer rows.Close()

		for rows.Next() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			values := make([]any, len(columns))
			valuePtrs := make([]any, len(columns))
			for i := range values {
				valuePtrs[i] = &values[i]
			}
			if err := rows.Scan(valuePtrs...); err != nil {
				return
			}

			data := make(map[string]any, len(columns))
			for i, col := range columns {
				val := values[i]
				if b, ok := val.([]byte); ok {
					val = string(b)
				}
				data[col] = val
			}

			select {
			case out <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
