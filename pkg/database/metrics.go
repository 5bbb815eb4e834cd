package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatser is implemented by *pgxpool.Pool.
type PoolStatser interface {
	Stat() *pgxpool.Stat
}

// PoolStatsCollector exports pgxpool statistics as Prometheus metrics.
type PoolStatsCollector struct {
	pool PoolStatser

	acquired     *prometheus.Desc
	idle         *prometheus.Desc
	total        *prometheus.Desc
	max          *prometheus.Desc
	acquireCount *prometheus.Desc
	acquireWait  *prometheus.Desc
	emptyAcquire *prometheus.Desc
}

// NewPoolStatsCollector creates a collector labelled with the given pool name.
func NewPoolStatsCollector(pool PoolStatser, name string) *PoolStatsCollector {
	constLabels := prometheus.Labels{"pool": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc("db_pool_"+metric, help, nil, constLabels)
	}
	return &PoolStatsCollector{
		pool:         pool,
		acquired:     desc("acquired_connections", "Connections currently in use."),
		idle:         desc("idle_connections", "Connections currently idle."),
		total:        desc("total_connections", "Connections currently open."),
		max:          desc("max_connections", "Maximum pool size."),
		acquireCount: desc("acquire_count_total", "Successful connection acquires."),
		acquireWait:  desc("acquire_duration_seconds_total", "Time spent acquiring connections."),
		emptyAcquire: desc("empty_acquire_count_total", "Acquires that waited for a free connection."),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.acquired, c.idle, c.total, c.max, c.acquireCount, c.acquireWait, c.emptyAcquire} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	gauge(c.acquired, float64(s.AcquiredConns()))
	gauge(c.idle, float64(s.IdleConns()))
	gauge(c.total, float64(s.TotalConns()))
	gauge(c.max, float64(s.MaxConns()))
	counter(c.acquireCount, float64(s.AcquireCount()))
	counter(c.acquireWait, s.AcquireDuration().Seconds())
	counter(c.emptyAcquire, float64(s.EmptyAcquireCount()))
}

// RegisterPoolMetrics registers a pool collector with reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool PoolStatser, name string) error {
	return reg.Register(NewPoolStatsCollector(pool, name))
}
