// Package stats - Durable, process-spanning detection statistics.
//
// The Aggregator keeps cumulative counters in memory, persists the full
// aggregate to a JSON file synchronously after every mutation, and
// union-merges any previously persisted aggregate into a fresh session
// baseline at construction. Persistence is at-least-once and best-effort: a
// write failure is logged and the caller is never aborted.
package stats

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/yardeye/go-sentinel/logging"
	"github.com/yardeye/go-sentinel/vision"
)

const (
	// recentLogCap bounds the rolling detection log (FIFO eviction).
	recentLogCap = 100

	hourKeyLayout   = "2006-01-02_15"
	hourLabelLayout = "15:00"
	dayKeyLayout    = "2006-01-02"
	dayLabelLayout  = "01-02"
)

// LogEntry is one trimmed record in the rolling detection log.
type LogEntry struct {
	Timestamp  time.Time    `json:"timestamp"`
	Class      vision.Class `json:"class"`
	Confidence float64      `json:"confidence"`
	Species    string       `json:"species,omitempty"`
	Identity   string       `json:"identity,omitempty"`
}

// Snapshot is the persisted aggregate.
type Snapshot struct {
	SessionStart             time.Time                        `json:"sessionStart"`
	LastUpdated              time.Time                        `json:"lastUpdated"`
	TotalMotionEvents        int64                            `json:"totalMotionEvents"`
	TotalDetections          int64                            `json:"totalDetections"`
	CountsByClass            map[vision.Class]int64           `json:"countsByClass"`
	SpeciesCounts            map[string]int64                 `json:"speciesCounts"`
	ConfidenceSamplesByClass map[vision.Class][]float64       `json:"confidenceSamplesByClass"`
	HourlyBuckets            map[string]map[vision.Class]int64 `json:"hourlyBuckets"`
	DailyBuckets             map[string]map[vision.Class]int64 `json:"dailyBuckets"`
	RecentLog                []LogEntry                       `json:"recentLog"`
}

func emptySnapshot(now time.Time) Snapshot {
	counts := make(map[vision.Class]int64, len(vision.Classes))
	samples := make(map[vision.Class][]float64, len(vision.Classes))
	for _, c := range vision.Classes {
		counts[c] = 0
		samples[c] = []float64{}
	}
	return Snapshot{
		SessionStart:             now,
		CountsByClass:            counts,
		SpeciesCounts:            map[string]int64{},
		ConfidenceSamplesByClass: samples,
		HourlyBuckets:            map[string]map[vision.Class]int64{},
		DailyBuckets:             map[string]map[vision.Class]int64{},
		RecentLog:                []LogEntry{},
	}
}

// Summary is the session-relative view.
type Summary struct {
	SessionStart    time.Time              `json:"sessionStart"`
	SessionDuration time.Duration          `json:"sessionDuration"`
	MotionEvents    int64                  `json:"motionEvents"`
	TotalDetections int64                  `json:"totalDetections"`
	Detections      map[vision.Class]int64 `json:"detections"`
	SpeciesCounts   map[string]int64       `json:"speciesCounts"`
}

// ConfidenceStats summarizes the confidence samples of one class.
type ConfidenceStats struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Bucket is one hourly or daily breakdown entry.
type Bucket struct {
	Label  string                 `json:"label"`
	Counts map[vision.Class]int64 `json:"counts"`
}

// Aggregator is the single-writer statistics store.
type Aggregator struct {
	mu   sync.Mutex
	path string
	snap Snapshot

	now            func() time.Time
	onPersistError func()
	log            *slog.Logger
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithPersistErrorHook registers a callback fired on every failed write,
// used for metrics.
func WithPersistErrorHook(fn func()) Option {
	return func(a *Aggregator) { a.onPersistError = fn }
}

// NewAggregator constructs the store, loading and merging any persisted
// aggregate at path into a fresh session baseline. Prior history is never
// discarded; a corrupt or missing file starts an empty aggregate.
func NewAggregator(path string, opts ...Option) *Aggregator {
	a := &Aggregator{
		path: path,
		now:  time.Now,
		log:  logging.ForService("stats"),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.snap = emptySnapshot(a.now())
	if err := a.mergeFromDisk(); err != nil {
		a.log.Warn("could not load persisted stats, starting fresh", "path", path, "error", err)
	}
	return a
}

// mergeFromDisk union-merges a persisted snapshot into the in-memory
// baseline: counters add, bucket maps add per key, the rolling log is
// adopted and re-trimmed.
func (a *Aggregator) mergeFromDisk() error {
	data, err := os.ReadFile(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "reading stats file")
	}

	var prev Snapshot
	if err := json.Unmarshal(data, &prev); err != nil {
		return errors.Wrap(err, "parsing stats file")
	}

	a.snap.TotalMotionEvents += prev.TotalMotionEvents
	a.snap.TotalDetections += prev.TotalDetections
	for class, n := range prev.CountsByClass {
		a.snap.CountsByClass[class] += n
	}
	for species, n := range prev.SpeciesCounts {
		a.snap.SpeciesCounts[species] += n
	}
	for class, samples := range prev.ConfidenceSamplesByClass {
		a.snap.ConfidenceSamplesByClass[class] = append(a.snap.ConfidenceSamplesByClass[class], samples...)
	}
	for key, counts := range prev.HourlyBuckets {
		a.snap.HourlyBuckets[key] = addCounts(a.snap.HourlyBuckets[key], counts)
	}
	for key, counts := range prev.DailyBuckets {
		a.snap.DailyBuckets[key] = addCounts(a.snap.DailyBuckets[key], counts)
	}
	a.snap.RecentLog = append(prev.RecentLog, a.snap.RecentLog...)
	a.trimLog()

	a.log.Info("merged persisted stats",
		"totalDetections", a.snap.TotalDetections,
		"motionEvents", a.snap.TotalMotionEvents)
	return nil
}

func addCounts(dst, src map[vision.Class]int64) map[vision.Class]int64 {
	if dst == nil {
		dst = map[vision.Class]int64{}
	}
	for class, n := range src {
		dst[class] += n
	}
	return dst
}

// RecordMotion counts one accepted motion trigger and persists.
func (a *Aggregator) RecordMotion() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snap.TotalMotionEvents++
	a.persistLocked()
}

// RecordDetections folds one classification run into the aggregate and
// persists once. Bucket keys derive from the event's own timestamp, never
// from the wall clock at write time.
func (a *Aggregator) RecordDetections(ev vision.DetectionEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hourKey := ev.Timestamp.Format(hourKeyLayout)
	dayKey := ev.Timestamp.Format(dayKeyLayout)

	for _, det := range ev.Detections {
		a.snap.TotalDetections++
		a.snap.CountsByClass[det.Class]++
		a.snap.ConfidenceSamplesByClass[det.Class] = append(a.snap.ConfidenceSamplesByClass[det.Class], det.Confidence)

		if a.snap.HourlyBuckets[hourKey] == nil {
			a.snap.HourlyBuckets[hourKey] = map[vision.Class]int64{}
		}
		a.snap.HourlyBuckets[hourKey][det.Class]++

		if a.snap.DailyBuckets[dayKey] == nil {
			a.snap.DailyBuckets[dayKey] = map[vision.Class]int64{}
		}
		a.snap.DailyBuckets[dayKey][det.Class]++

		if det.Class == vision.ClassBird && det.Species != "" {
			a.snap.SpeciesCounts[det.Species]++
		}

		a.snap.RecentLog = append(a.snap.RecentLog, LogEntry{
			Timestamp:  ev.Timestamp,
			Class:      det.Class,
			Confidence: det.Confidence,
			Species:    det.Species,
			Identity:   det.Identity,
		})
	}
	a.trimLog()
	a.persistLocked()
}

// trimLog enforces the FIFO cap on the rolling log.
func (a *Aggregator) trimLog() {
	if n := len(a.snap.RecentLog); n > recentLogCap {
		a.snap.RecentLog = a.snap.RecentLog[n-recentLogCap:]
	}
}

// persistLocked writes the full aggregate to disk. Failures are logged and
// counted; in-memory state is retained and the next write proceeds normally.
func (a *Aggregator) persistLocked() {
	a.snap.LastUpdated = a.now()

	data, err := json.MarshalIndent(a.snap, "", "  ")
	if err != nil {
		a.persistFailed(err)
		return
	}
	if err := os.WriteFile(a.path, data, 0o644); err != nil {
		a.persistFailed(err)
	}
}

func (a *Aggregator) persistFailed(err error) {
	a.log.Error("persisting stats failed", "path", a.path, "error", err)
	if a.onPersistError != nil {
		a.onPersistError()
	}
}

// Summary returns the session-relative view of the aggregate.
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	detections := make(map[vision.Class]int64, len(a.snap.CountsByClass))
	for class, n := range a.snap.CountsByClass {
		detections[class] = n
	}
	species := make(map[string]int64, len(a.snap.SpeciesCounts))
	for s, n := range a.snap.SpeciesCounts {
		species[s] = n
	}

	return Summary{
		SessionStart:    a.snap.SessionStart,
		SessionDuration: a.now().Sub(a.snap.SessionStart),
		MotionEvents:    a.snap.TotalMotionEvents,
		TotalDetections: a.snap.TotalDetections,
		Detections:      detections,
		SpeciesCounts:   species,
	}
}

// ConfidenceAverages summarizes the confidence samples per class.
func (a *Aggregator) ConfidenceAverages() map[vision.Class]ConfidenceStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[vision.Class]ConfidenceStats, len(a.snap.ConfidenceSamplesByClass))
	for class, samples := range a.snap.ConfidenceSamplesByClass {
		if len(samples) == 0 {
			out[class] = ConfidenceStats{}
			continue
		}
		stats := ConfidenceStats{Count: len(samples), Min: samples[0], Max: samples[0]}
		var sum float64
		for _, s := range samples {
			sum += s
			if s < stats.Min {
				stats.Min = s
			}
			if s > stats.Max {
				stats.Max = s
			}
		}
		stats.Average = sum / float64(len(samples))
		out[class] = stats
	}
	return out
}

// HourlyBreakdown returns the last n calendar hours, most recent first. The
// order is derived by walking back from now hour by hour, never by sorting
// labels: across midnight "23:00" must stay behind "02:00".
func (a *Aggregator) HourlyBreakdown(n int) []Bucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	out := make([]Bucket, 0, n)
	for i := 0; i < n; i++ {
		t := now.Add(-time.Duration(i) * time.Hour)
		out = append(out, a.bucketFor(a.snap.HourlyBuckets, t.Format(hourKeyLayout), t.Format(hourLabelLayout)))
	}
	return out
}

// DailyBreakdown returns the last n calendar days, most recent first.
func (a *Aggregator) DailyBreakdown(n int) []Bucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	out := make([]Bucket, 0, n)
	for i := 0; i < n; i++ {
		t := now.AddDate(0, 0, -i)
		out = append(out, a.bucketFor(a.snap.DailyBuckets, t.Format(dayKeyLayout), t.Format(dayLabelLayout)))
	}
	return out
}

// bucketFor copies one bucket, filling zero counts for missing keys so the
// breakdown always has a full class map.
func (a *Aggregator) bucketFor(buckets map[string]map[vision.Class]int64, key, label string) Bucket {
	counts := make(map[vision.Class]int64, len(vision.Classes))
	for _, c := range vision.Classes {
		counts[c] = 0
	}
	for class, n := range buckets[key] {
		counts[class] = n
	}
	return Bucket{Label: label, Counts: counts}
}

// Snapshot returns a deep copy of the current aggregate, for rendering.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := a.snap
	snap.CountsByClass = make(map[vision.Class]int64, len(a.snap.CountsByClass))
	for class, n := range a.snap.CountsByClass {
		snap.CountsByClass[class] = n
	}
	snap.SpeciesCounts = make(map[string]int64, len(a.snap.SpeciesCounts))
	for s, n := range a.snap.SpeciesCounts {
		snap.SpeciesCounts[s] = n
	}
	snap.ConfidenceSamplesByClass = make(map[vision.Class][]float64, len(a.snap.ConfidenceSamplesByClass))
	for class, samples := range a.snap.ConfidenceSamplesByClass {
		snap.ConfidenceSamplesByClass[class] = append([]float64(nil), samples...)
	}
	snap.HourlyBuckets = make(map[string]map[vision.Class]int64, len(a.snap.HourlyBuckets))
	for key, counts := range a.snap.HourlyBuckets {
		snap.HourlyBuckets[key] = addCounts(nil, counts)
	}
	snap.DailyBuckets = make(map[string]map[vision.Class]int64, len(a.snap.DailyBuckets))
	for key, counts := range a.snap.DailyBuckets {
		snap.DailyBuckets[key] = addCounts(nil, counts)
	}
	snap.RecentLog = append([]LogEntry(nil), a.snap.RecentLog...)
	return snap
}
