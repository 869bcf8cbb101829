package diag

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/carriergate/slicepurchase/pkg/metrics"
)

// Reporter receives anomaly reports: unexpected internal conditions that are
// diagnostic-only and never surfaced to requesting callers. Implementations
// must not panic and must be safe for concurrent use.
type Reporter interface {
	Report(tag, message string)
}

// LogReporter logs anomalies and counts them in Prometheus.
type LogReporter struct{}

// NewLogReporter creates the default production reporter.
func NewLogReporter() *LogReporter {
	return &LogReporter{}
}

// Report implements Reporter.
func (r *LogReporter) Report(tag, message string) {
	logrus.Warnf("anomaly [%s]: %s", tag, message)
	metrics.AnomaliesTotal.WithLabelValues(tag).Inc()
}

// Capture records anomalies in memory so tests can assert on invariant
// violations without a real telemetry backend.
type Capture struct {
	mu      sync.Mutex
	reports []Report
}

// Report is one captured anomaly.
type Report struct {
	Tag     string
	Message string
}

// NewCapture creates an empty capturing reporter.
func NewCapture() *Capture {
	return &Capture{}
}

// Report implements Reporter.
func (c *Capture) Report(tag, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, Report{Tag: tag, Message: message})
}

// Reports returns a copy of everything reported so far.
func (c *Capture) Reports() []Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Report, len(c.reports))
	copy(out, c.reports)
	return out
}

// CountTag returns how many reports carry the given tag.
func (c *Capture) CountTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.reports {
		if r.Tag == tag {
			n++
		}
	}
	return n
}
