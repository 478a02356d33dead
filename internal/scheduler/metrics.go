package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedtest_cycles_total",
			Help: "Number of measurement cycles, by result.",
		},
		[]string{"result"},
	)
	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "speedtest_cycle_duration_seconds",
			Help:    "Duration of measurement cycles.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
	downloadMbps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "speedtest_download_mbps",
			Help: "Download rate of the cached result (Mb/s).",
		},
	)
	uploadMbps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "speedtest_upload_mbps",
			Help: "Upload rate of the cached result (Mb/s).",
		},
	)
	pingMS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "speedtest_ping_ms",
			Help: "Ping latency of the cached result (ms).",
		},
	)
	lastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "speedtest_last_success_timestamp_seconds",
			Help: "Unix time of the last successful measurement cycle.",
		},
	)
)
