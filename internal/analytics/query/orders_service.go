package query

import (
	"context"
	"fmt"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	dailyOrdersSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  COUNT(*) AS value
FROM %s
WHERE event_type = 'order_created'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	dailyAmountSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  SUM(COALESCE(%s, 0)) AS value
FROM %s
WHERE event_type = '%s'
  AND occurred_at BETWEEN @start AND @end
GROUP BY day
ORDER BY day ASC
`

	topProductsSQL = `
SELECT label, SUM(value) AS value FROM (
  SELECT
    JSON_VALUE(item, '$.product_name') AS label,
    SAFE_CAST(JSON_VALUE(item, '$.quantity') AS INT64) AS value
  FROM %s,
  UNNEST(JSON_EXTRACT_ARRAY(items)) AS item
  WHERE items IS NOT NULL
    AND event_type = 'order_created'
    AND occurred_at BETWEEN @start AND @end
)
WHERE label IS NOT NULL
GROUP BY label
ORDER BY value DESC
LIMIT 5
`

	averageOrderSQL = `
SELECT SAFE_DIVIDE(SUM(COALESCE(amount_cents, 0)), NULLIF(COUNT(DISTINCT order_id), 0)) AS value
FROM %s
WHERE event_type = 'order_created'
  AND occurred_at BETWEEN @start AND @end
`
)

type querier interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error)
}

// OrdersService reports order KPIs from the order_events table.
type OrdersService struct {
	client   querier
	tableRef string
}

// NewOrdersService builds a report service for project.dataset.table.
func NewOrdersService(client *bigquery.Client, project, dataset, table string) (*OrdersService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if project == "" || dataset == "" || table == "" {
		return nil, fmt.Errorf("project, dataset, and table are required")
	}
	return &OrdersService{client: client, tableRef: TableRef(project, dataset, table)}, nil
}

// TableRef quotes a fully qualified BigQuery table name.
func TableRef(project, dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, table)
}

func (s *OrdersService) Report(ctx context.Context, req types.OrdersReportRequest) (*types.OrdersReport, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	params := []cloudbigquery.QueryParameter{
		{Name: "start", Value: req.Start},
		{Name: "end", Value: req.End},
	}

	orders, err := s.querySeries(ctx, fmt.Sprintf(dailyOrdersSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}
	gross, err := s.querySeries(ctx, fmt.Sprintf(dailyAmountSQL, "amount_cents", s.tableRef, "order_created"), params)
	if err != nil {
		return nil, err
	}
	refunds, err := s.querySeries(ctx, fmt.Sprintf(dailyAmountSQL, "refund_cents", s.tableRef, "order_cancelled"), params)
	if err != nil {
		return nil, err
	}
	top, err := s.queryTopLabels(ctx, fmt.Sprintf(topProductsSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}
	aov, err := s.queryAverage(ctx, fmt.Sprintf(averageOrderSQL, s.tableRef), params)
	if err != nil {
		return nil, err
	}

	return &types.OrdersReport{
		Orders:           orders,
		GrossRevenue:     gross,
		Refunds:          refunds,
		TopProducts:      top,
		AverageOrderCent: aov,
	}, nil
}

// ValidateRequest checks the report window.
func ValidateRequest(req types.OrdersReportRequest) error {
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if req.End.Before(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	return nil
}

func (s *OrdersService) querySeries(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.TimeSeriesPoint, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}

	points := []types.TimeSeriesPoint{}
	for {
		var row struct {
			Day   string `bigquery:"day"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading series row: %w", err)
		}
		points = append(points, types.TimeSeriesPoint{Date: row.Day, Value: row.Value})
	}
	return points, nil
}

func (s *OrdersService) queryTopLabels(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.LabelValue, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query top labels: %w", err)
	}

	result := []types.LabelValue{}
	for {
		var row struct {
			Label string `bigquery:"label"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("reading top label row: %w", err)
		}
		result = append(result, types.LabelValue{Label: row.Label, Value: row.Value})
	}
	return result, nil
}

func (s *OrdersService) queryAverage(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (float64, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return 0, fmt.Errorf("query average order: %w", err)
	}
	var row struct {
		Value cloudbigquery.NullFloat64 `bigquery:"value"`
	}
	if err := iter.Next(&row); err != nil {
		if err == iterator.Done {
			return 0, nil
		}
		return 0, fmt.Errorf("reading average order row: %w", err)
	}
	if !row.Value.Valid {
		return 0, nil
	}
	return row.Value.Float64, nil
}
