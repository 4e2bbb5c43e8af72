package stats

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/yardeye/go-sentinel/vision"
)

// RenderSummary writes a human-readable report of the aggregate, for the
// stats CLI command.
func (a *Aggregator) RenderSummary(w io.Writer) {
	summary := a.Summary()
	averages := a.ConfidenceAverages()
	hourly := a.HourlyBreakdown(12)

	fmt.Fprintln(w, "DETECTION SUMMARY")
	fmt.Fprintf(w, "  session started: %s\n", summary.SessionStart.Format(time.RFC3339))
	fmt.Fprintf(w, "  running for:     %s\n", summary.SessionDuration.Round(time.Second))
	fmt.Fprintf(w, "  motion events:   %d\n", summary.MotionEvents)
	fmt.Fprintf(w, "  detections:      %d\n", summary.TotalDetections)

	fmt.Fprintln(w, "\nCOUNTS BY CLASS")
	for _, class := range vision.Classes {
		fmt.Fprintf(w, "  %-8s %d\n", class, summary.Detections[class])
	}

	if len(summary.SpeciesCounts) > 0 {
		fmt.Fprintln(w, "\nBIRD SPECIES")
		type entry struct {
			species string
			count   int64
		}
		entries := make([]entry, 0, len(summary.SpeciesCounts))
		for s, n := range summary.SpeciesCounts {
			entries = append(entries, entry{s, n})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].count != entries[j].count {
				return entries[i].count > entries[j].count
			}
			return entries[i].species < entries[j].species
		})
		for _, e := range entries {
			fmt.Fprintf(w, "  %-12s %d\n", e.species, e.count)
		}
	}

	fmt.Fprintln(w, "\nCONFIDENCE AVERAGES")
	for _, class := range vision.Classes {
		cs := averages[class]
		if cs.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-8s %.2f (min %.2f, max %.2f, n=%d)\n",
			class, cs.Average, cs.Min, cs.Max, cs.Count)
	}

	fmt.Fprintln(w, "\nRECENT ACTIVITY (last 12 hours)")
	// Buckets arrive most-recent-hour first; keep that order.
	for _, bucket := range hourly {
		var total int64
		for _, n := range bucket.Counts {
			total += n
		}
		if total == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s  %dP %dA %dB\n", bucket.Label,
			bucket.Counts[vision.ClassPerson],
			bucket.Counts[vision.ClassAnimal],
			bucket.Counts[vision.ClassBird])
	}
}
