package reference

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"autocloud.com/car-insurance-estimator/internal/apperr"
)

type fakeProvider struct {
	rows []Row
	err  error
}

func (f fakeProvider) Source() string { return "BigQuery" }

func (f fakeProvider) FetchReferenceCosts(context.Context) ([]Row, error) {
	return f.rows, f.err
}

const heading = "\n\n### Reference Repair Costs (from BigQuery):\n"

func TestRenderBlockZeroRows(t *testing.T) {
	if got := RenderBlock("BigQuery", nil); got != heading {
		t.Fatalf("RenderBlock(nil) = %q, want %q", got, heading)
	}
}

func TestRenderBlock(t *testing.T) {
	rows := []Row{
		{Part: "Front Bumper", AvgCost: decimal.RequireFromString("450.00")},
		{Part: "Windshield", AvgCost: decimal.RequireFromString("325.50")},
		{Part: "Side Mirror", AvgCost: decimal.RequireFromString("87.125")},
	}
	want := heading + "- Front Bumper: $450.0\n- Windshield: $325.5\n- Side Mirror: $87.125"
	got := RenderBlock("BigQuery", rows)
	if got != want {
		t.Fatalf("RenderBlock = %q, want %q", got, want)
	}
	if again := RenderBlock("BigQuery", rows); again != got {
		t.Fatalf("rendering is not idempotent: %q vs %q", again, got)
	}
}

func TestRenderBlockLineCount(t *testing.T) {
	line := regexp.MustCompile(`^- .+: \$\d+(\.\d+)?$`)
	for _, n := range []int{0, 1, 37, MaxRows} {
		rows := make([]Row, n)
		for i := range rows {
			rows[i] = Row{Part: fmt.Sprintf("Part %d", i), AvgCost: decimal.NewFromInt(int64(100 + i))}
		}
		body := strings.TrimPrefix(RenderBlock("BigQuery", rows), heading)
		var lines []string
		if body != "" {
			lines = strings.Split(body, "\n")
		}
		if len(lines) != n {
			t.Fatalf("n=%d: got %d lines", n, len(lines))
		}
		for _, l := range lines {
			if !line.MatchString(l) {
				t.Fatalf("n=%d: malformed line %q", n, l)
			}
		}
	}
}

func TestFetchBlock(t *testing.T) {
	block, err := FetchBlock(context.Background(), fakeProvider{rows: []Row{{Part: "Hood", AvgCost: decimal.NewFromInt(800)}}})
	if err != nil {
		t.Fatalf("FetchBlock: %v", err)
	}
	if block != heading+"- Hood: $800.0" {
		t.Fatalf("unexpected block %q", block)
	}

	block, err = FetchBlock(context.Background(), nil)
	if err != nil || block != "" {
		t.Fatalf("FetchBlock(nil) = %q, %v", block, err)
	}
}

func TestFormatCost(t *testing.T) {
	cases := map[string]decimal.Decimal{
		"0.0":     decimal.Zero,
		"800.0":   decimal.NewFromInt(800),
		"450.0":   decimal.NewFromFloat(450.0),
		"1200.75": decimal.RequireFromString("1200.750"),
		"-12.5":   decimal.RequireFromString("-12.5"),
	}
	for want, d := range cases {
		if got := formatCost(d); got != want {
			t.Errorf("formatCost(%s) = %q, want %q", d.String(), got, want)
		}
	}
}

func TestFetchBlockWrapsDataSourceError(t *testing.T) {
	_, err := FetchBlock(context.Background(), fakeProvider{err: errors.New("permission denied")})
	if !errors.Is(err, apperr.ErrDataSource) {
		t.Fatalf("expected data source error, got %v", err)
	}
}

func TestQuery(t *testing.T) {
	want := "SELECT Part, Avg_Cost_USD FROM `p.d.t` WHERE Part IS NOT NULL AND Avg_Cost_USD IS NOT NULL LIMIT 100"
	if got := Query("p.d.t"); got != want {
		t.Fatalf("Query = %q", got)
	}
}

func TestRowFromValues(t *testing.T) {
	cases := []struct {
		in   bigquery.Value
		want string
	}{
		{float64(450), "450"},
		{float64(99.95), "99.95"},
		{int64(1200), "1200"},
		{big.NewRat(2501, 2), "1250.5"},
	}
	for _, c := range cases {
		row, err := rowFromValues([]bigquery.Value{"Door", c.in})
		if err != nil {
			t.Fatalf("rowFromValues(%v): %v", c.in, err)
		}
		if row.Part != "Door" || row.AvgCost.String() != c.want {
			t.Errorf("rowFromValues(%v) = %+v, want cost %s", c.in, row, c.want)
		}
	}

	if _, err := rowFromValues([]bigquery.Value{"Door", true}); err == nil {
		t.Errorf("expected error for bool cost")
	}
	if _, err := rowFromValues([]bigquery.Value{"Door"}); err == nil {
		t.Errorf("expected error for missing column")
	}
}
