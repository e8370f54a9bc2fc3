package timetable

import (
	"sort"
	"strings"
	"time"
)

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// SessionWindow computes a session's absolute start and end from its date and
// the class's local start/end times. An end earlier than the start crosses
// midnight. Without both times the session starts at date and lasts
// DefaultSessionLength.
func SessionWindow(date time.Time, startTime, endTime string, loc *time.Location) (Window, error) {
	if startTime == "" || endTime == "" {
		return Window{Start: date, End: date.Add(DefaultSessionLength)}, nil
	}
	sc, err := ParseClock(startTime)
	if err != nil {
		return Window{}, err
	}
	ec, err := ParseClock(endTime)
	if err != nil {
		return Window{}, err
	}
	start := At(date, sc, loc)
	end := At(date, ec, loc)
	if ec.Before(sc) {
		end = At(date.In(loc).AddDate(0, 0, 1), ec, loc)
	}
	return Window{Start: start, End: end}, nil
}

func sortByStart(ws []Window) []Window {
	out := make([]Window, len(ws))
	copy(out, ws)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Envelope collapses windows into one span from the earliest start to the
// latest end, gaps included. ok is false for an empty input.
func Envelope(ws []Window) (Window, bool) {
	if len(ws) == 0 {
		return Window{}, false
	}
	sorted := sortByStart(ws)
	env := sorted[0]
	for _, w := range sorted[1:] {
		if w.End.After(env.End) {
			env.End = w.End
		}
	}
	return env, true
}

// Merge returns the minimal set of non-overlapping windows covering ws,
// sorted by start. Touching windows (next start == current end) merge.
func Merge(ws []Window) []Window {
	if len(ws) == 0 {
		return nil
	}
	sorted := sortByStart(ws)
	merged := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		cur := &merged[len(merged)-1]
		if !w.Start.After(cur.End) {
			if w.End.After(cur.End) {
				cur.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// LabeledSpan is a merged window shared by one or more labels.
type LabeledSpan struct {
	Window
	Labels []string
}

// Label joins the sorted labels with " and ".
func (s LabeledSpan) Label() string {
	return strings.Join(s.Labels, " and ")
}

// MergeByLabel merges each label's windows independently, then folds spans
// with an identical [start, end) across labels into one entry. The result is
// sorted by start (then end); labels within a span are sorted.
func MergeByLabel(byLabel map[string][]Window) []LabeledSpan {
	type spanKey struct {
		start, end int64
	}
	index := make(map[spanKey]int)
	var spans []LabeledSpan

	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	for _, label := range labels {
		for _, w := range Merge(byLabel[label]) {
			k := spanKey{start: w.Start.UnixNano(), end: w.End.UnixNano()}
			if i, ok := index[k]; ok {
				spans[i].Labels = append(spans[i].Labels, label)
				continue
			}
			index[k] = len(spans)
			spans = append(spans, LabeledSpan{Window: w, Labels: []string{label}})
		}
	}

	for i := range spans {
		sort.Strings(spans[i].Labels)
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if !spans[i].Start.Equal(spans[j].Start) {
			return spans[i].Start.Before(spans[j].Start)
		}
		return spans[i].End.Before(spans[j].End)
	})
	return spans
}
