package monitoring

import "time"

// Navigation outcomes
const (
	OutcomeSwapped = "swapped"
	OutcomeCached  = "cached"
	OutcomeReload  = "reload"
	OutcomeDropped = "dropped"
	OutcomeNoop    = "noop"
)

// ObserveNavigation counts a navigation outcome
func (m *Metrics) ObserveNavigation(outcome string) {
	if m == nil {
		return
	}
	m.Navigations.WithLabelValues(outcome).Inc()
}

// ObserveCache counts a page cache lookup
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// ObserveModule counts a module load
func (m *Metrics) ObserveModule(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ModuleErrors.Inc()
		return
	}
	m.ModulesLoaded.Inc()
}

// ObserveMount counts a mount result for a content type
func (m *Metrics) ObserveMount(contentType, result string) {
	if m == nil {
		return
	}
	m.Mounts.WithLabelValues(contentType, result).Inc()
	if result == "timeout" {
		m.EmbedTimeouts.Inc()
	}
}

// ObserveStaleMount counts a discarded mount completion
func (m *Metrics) ObserveStaleMount() {
	if m == nil {
		return
	}
	m.StaleMounts.Inc()
}

// ObserveUnmount counts an unmount
func (m *Metrics) ObserveUnmount(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Unmounts.WithLabelValues("error").Inc()
		return
	}
	m.Unmounts.WithLabelValues("ok").Inc()
}

// SetActiveWindows records how many windows are expanded
func (m *Metrics) SetActiveWindows(n int) {
	if m == nil {
		return
	}
	m.ActiveWindows.Set(float64(n))
}

// ObservePlacement counts a fresh pack and its fallbacks
func (m *Metrics) ObservePlacement(fallbacks int) {
	if m == nil {
		return
	}
	m.PlacementPacks.Inc()
	m.PlacementFallbacks.Add(float64(fallbacks))
}

// ObserveChoreography counts a reveal or dismiss
func (m *Metrics) ObserveChoreography(direction string) {
	if m == nil {
		return
	}
	m.Choreographies.WithLabelValues(direction).Inc()
}

// FetchTimer measures one fragment request
type FetchTimer struct {
	metrics *Metrics
	start   time.Time
}

// StartFetch begins timing a fragment request
func (m *Metrics) StartFetch() *FetchTimer {
	return &FetchTimer{metrics: m, start: time.Now()}
}

// Stop records the elapsed time
func (t *FetchTimer) Stop() {
	if t == nil || t.metrics == nil {
		return
	}
	t.metrics.FetchDuration.Observe(time.Since(t.start).Seconds())
}
