package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autocloud.com/car-insurance-estimator/internal/reference"
)

// VehicleTable mirrors the warehouse table name so both sources run the same query.
const VehicleTable = "vehicle_table"

// SQLiteStore is a local reference cost source for development and offline demos.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

func NewSQLiteStore(dataSourceName string, logger *zap.SugaredLogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS vehicle_table (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        Part TEXT,
        Avg_Cost_USD REAL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Source() string {
	return "SQLite"
}

func (s *SQLiteStore) FetchReferenceCosts(ctx context.Context) ([]reference.Row, error) {
	rows, err := s.db.QueryContext(ctx, reference.Query(VehicleTable))
	if err != nil {
		return nil, fmt.Errorf("failed to query reference costs: %w", err)
	}
	defer rows.Close()

	var result []reference.Row
	for rows.Next() {
		var r reference.Row
		if err := rows.Scan(&r.Part, &r.AvgCost); err != nil {
			return nil, fmt.Errorf("failed to scan reference cost: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reference costs: %w", err)
	}
	return result, nil
}

// InsertReferenceCost stores one row. A nil cost is stored as NULL.
func (s *SQLiteStore) InsertReferenceCost(part string, cost *decimal.Decimal) error {
	var value any
	if cost != nil {
		value = cost.InexactFloat64()
	}
	var partValue any
	if part != "" {
		partValue = part
	}
	if _, err := s.db.Exec("INSERT INTO vehicle_table (Part, Avg_Cost_USD) VALUES (?, ?)", partValue, value); err != nil {
		return fmt.Errorf("failed to insert reference cost: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearReferenceCosts() error {
	_, err := s.db.Exec("DELETE FROM vehicle_table")
	if err != nil {
		return fmt.Errorf("failed to delete reference costs: %w", err)
	}
	_, err = s.db.Exec("DELETE FROM sqlite_sequence WHERE name='vehicle_table'")
	if err != nil && !strings.Contains(err.Error(), "no such table") {
		s.logger.Warnf("could not reset sequence for vehicle_table: %v", err)
	}
	return nil
}

// IngestFromFile replaces the table contents with the rows of a two-column
// Markdown table (| Part | Avg_Cost_USD |). Empty cells are stored as NULL.
func (s *SQLiteStore) IngestFromFile(filePath string) (int, error) {
	contentBytes, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read data file %s: %w", filePath, err)
	}

	type record struct {
		part string
		cost *decimal.Decimal
	}
	var records []record
	for i, line := range strings.Split(string(contentBytes), "\n") {
		trimmedLine := strings.TrimSpace(line)
		if trimmedLine == "" {
			continue
		}
		if !strings.HasPrefix(trimmedLine, "|") || !strings.HasSuffix(trimmedLine, "|") {
			s.logger.Debugf("Skipping line %d not matching table row format: %s", i+1, trimmedLine)
			continue
		}

		cells := strings.Split(strings.Trim(trimmedLine, "|"), "|")
		if len(cells) != 2 {
			s.logger.Warnf("Skipping malformed table row %d (want 2 cells): %s", i+1, trimmedLine)
			continue
		}
		part := strings.TrimSpace(cells[0])
		costCell := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cells[1]), "$"))

		if strings.EqualFold(part, "part") || strings.HasPrefix(part, "---") {
			continue // header or separator
		}

		rec := record{part: part}
		if costCell != "" {
			cost, err := decimal.NewFromString(costCell)
			if err != nil {
				s.logger.Warnf("Skipping row %d with invalid cost %q: %v", i+1, costCell, err)
				continue
			}
			rec.cost = &cost
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		s.logger.Warnf("No rows found in %s. Expected a Markdown table with Part and Avg_Cost_USD columns.", filePath)
		return 0, nil
	}

	if err := s.ClearReferenceCosts(); err != nil {
		return 0, fmt.Errorf("failed to clear existing reference costs: %w", err)
	}

	count := 0
	for _, rec := range records {
		if err := s.InsertReferenceCost(rec.part, rec.cost); err != nil {
			return count, err
		}
		count++
	}
	s.logger.Infof("Successfully ingested %d reference cost rows.", count)
	return count, nil
}
