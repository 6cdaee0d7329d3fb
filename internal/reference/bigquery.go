package reference

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQueryProvider reads reference costs from a BigQuery table.
type BigQueryProvider struct {
	client *bigquery.Client
	table  string
}

func NewBigQueryProvider(ctx context.Context, projectID, table string, opts ...option.ClientOption) (*BigQueryProvider, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	return &BigQueryProvider{client: client, table: table}, nil
}

func (p *BigQueryProvider) Source() string {
	return "BigQuery"
}

func (p *BigQueryProvider) FetchReferenceCosts(ctx context.Context) ([]Row, error) {
	it, err := p.client.Query(Query(p.table)).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery query failed: %w", err)
	}

	var rows []Row
	for {
		var values []bigquery.Value
		err := it.Next(&values)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read bigquery row: %w", err)
		}
		row, err := rowFromValues(values)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *BigQueryProvider) Close() error {
	return p.client.Close()
}

func rowFromValues(values []bigquery.Value) (Row, error) {
	if len(values) != 2 {
		return Row{}, fmt.Errorf("expected 2 columns, got %d", len(values))
	}
	part, ok := values[0].(string)
	if !ok {
		return Row{}, fmt.Errorf("unexpected Part type %T", values[0])
	}
	cost, err := costFromValue(values[1])
	if err != nil {
		return Row{}, fmt.Errorf("part %q: %w", part, err)
	}
	return Row{Part: part, AvgCost: cost}, nil
}

// costFromValue accepts FLOAT64, INT64 and NUMERIC columns.
func costFromValue(v bigquery.Value) (decimal.Decimal, error) {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case *big.Rat:
		return decimal.NewFromString(x.FloatString(9))
	case string:
		return decimal.NewFromString(x)
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected Avg_Cost_USD type %T", v)
	}
}
