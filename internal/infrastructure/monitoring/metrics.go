package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Navigation metrics
	Navigations   *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter

	// Module metrics
	ModulesLoaded prometheus.Counter
	ModuleErrors  prometheus.Counter

	// Window metrics
	Mounts             *prometheus.CounterVec
	Unmounts           *prometheus.CounterVec
	EmbedTimeouts      prometheus.Counter
	StaleMounts        prometheus.Counter
	ActiveWindows      prometheus.Gauge
	PlacementPacks     prometheus.Counter
	PlacementFallbacks prometheus.Counter

	// Choreography metrics
	Choreographies *prometheus.CounterVec
}

// NewMetrics creates a metrics collector registered on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Navigations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shell_navigations_total",
				Help: "Virtual navigations by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shell_fragment_fetch_duration_seconds",
				Help:    "Fragment request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		CacheHits: f.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_page_cache_hits_total",
				Help: "Navigations served from the page cache",
			},
		),
		CacheMisses: f.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_page_cache_misses_total",
				Help: "Navigations that required a fragment request",
			},
		),
		ModulesLoaded: f.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_modules_loaded_total",
				Help: "Script modules fetched and evaluated",
			},
		),
		ModuleErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_module_errors_total",
				Help: "Script modules that failed to load or evaluate",
			},
		),
		Mounts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shell_window_mounts_total",
				Help: "Window content mounts by content type and result",
			},
			[]string{"content_type", "result"},
		),
		Unmounts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shell_window_unmounts_total",
				Help: "Window content unmounts by result",
			},
			[]string{"result"},
		),
		EmbedTimeouts: f.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_embed_timeouts_total",
				Help: "Embeds that never signalled readiness",
			},
		),
		StaleMounts: f.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_stale_mounts_total",
				Help: "Mounts that resolved after their window closed",
			},
		),
		ActiveWindows: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "shell_active_windows",
				Help: "Windows currently expanded",
			},
		),
		PlacementPacks: f.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_placement_packs_total",
				Help: "Fresh placement packs computed",
			},
		),
		PlacementFallbacks: f.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_placement_fallbacks_total",
				Help: "Windows pinned to the fallback corner",
			},
		),
		Choreographies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shell_layer_choreographies_total",
				Help: "Staggered layer animations by direction",
			},
			[]string{"direction"},
		),
	}
}
