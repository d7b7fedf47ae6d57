package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/svssathvik7/catalog-pollings-backend/internal/adapter/metrics"
)

// MetricsTracer records query latency and errors, labelled by the "-- name:" comment that
// prefixes every statement of this package.
type MetricsTracer struct {
	metrics *metrics.StoreMetrics
	clock   clockwork.Clock
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(m *metrics.StoreMetrics, clock clockwork.Clock) *MetricsTracer {
	return &MetricsTracer{metrics: m, clock: clock}
}

type queryContextKey struct{}

type queryContext struct {
	startTime time.Time
	queryName string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryContextKey{}, queryContext{
		startTime: t.clock.Now(),
		queryName: queryName(data.SQL),
	})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}

	t.metrics.QueryDuration.WithLabelValues(qctx.queryName).Observe(t.clock.Since(qctx.startTime).Seconds())
	if data.Err != nil {
		t.metrics.QueryErrors.WithLabelValues(qctx.queryName).Inc()
	}
}

// queryName returns the statement name, or its lowercased leading keyword for unnamed SQL
// (migrations, pings), keeping label cardinality bounded.
func queryName(sql string) string {
	sql = strings.TrimSpace(sql)
	if rest, ok := strings.CutPrefix(sql, "-- name:"); ok {
		name, _, _ := strings.Cut(strings.TrimSpace(rest), "\n")
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}

	keyword, _, _ := strings.Cut(sql, " ")
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	switch keyword {
	case "select", "insert", "update", "delete", "with", "begin", "commit", "rollback", "create", "drop", "alter":
		return keyword
	case "":
		return "unknown"
	default:
		return "other"
	}
}
