// Package reference fetches average repair costs and renders them into the
// block of text that is appended to the model instructions.
package reference

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"autocloud.com/car-insurance-estimator/internal/apperr"
	"autocloud.com/car-insurance-estimator/internal/metrics"
)

// MaxRows bounds every reference query.
const MaxRows = 100

// Row is one (part, average cost) pair from the reference table.
type Row struct {
	Part    string
	AvgCost decimal.Decimal
}

// Provider is a read-only source of reference cost rows.
type Provider interface {
	// Source names the backing store in the rendered heading.
	Source() string
	FetchReferenceCosts(ctx context.Context) ([]Row, error)
}

// Query returns the fixed reference query against table.
func Query(table string) string {
	return fmt.Sprintf("SELECT Part, Avg_Cost_USD FROM `%s` WHERE Part IS NOT NULL AND Avg_Cost_USD IS NOT NULL LIMIT %d", table, MaxRows)
}

// RenderBlock renders rows as "- <part>: $<cost>" lines under a fixed heading.
// With no rows only the heading is produced.
func RenderBlock(source string, rows []Row) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("- %s: $%s", r.Part, formatCost(r.AvgCost)))
	}
	return fmt.Sprintf("\n\n### Reference Repair Costs (from %s):\n%s", source, strings.Join(lines, "\n"))
}

// formatCost keeps at least one fractional digit, so 450 renders as "450.0"
// and 325.50 as "325.5".
func formatCost(d decimal.Decimal) string {
	s := d.String()
	if !strings.Contains(s, ".") {
		return d.StringFixed(1)
	}
	return s
}

// FetchBlock fetches rows from p and renders them. A nil provider means
// reference enrichment is disabled and yields an empty block.
func FetchBlock(ctx context.Context, p Provider) (string, error) {
	if p == nil {
		return "", nil
	}
	rows, err := p.FetchReferenceCosts(ctx)
	if err != nil {
		return "", apperr.New(apperr.KindDataSource, "fetch reference costs", err)
	}
	metrics.ReferenceRows.WithLabelValues(p.Source()).Observe(float64(len(rows)))
	return RenderBlock(p.Source(), rows), nil
}
