package chart

import "regexp"

// Metric ties a conversational topic to the field names that carry it.
// Query patterns are matched against the user's message and the tool name,
// field patterns against numeric column names.
type Metric struct {
	Name   string
	Query  []*regexp.Regexp
	Fields []*regexp.Regexp
}

// Tables holds every heuristic the detector relies on. Callers may start
// from DefaultTables and extend or replace entries.
type Tables struct {
	// Metrics is consulted in order; the first metric that matches and
	// yields at least one column wins.
	Metrics []Metric

	// Exclude lists numeric column names that are never plotted
	// (identifiers, versions, goals, millisecond durations, constants).
	Exclude []*regexp.Regexp

	// Priority orders the remaining numeric columns. Columns matching an
	// earlier pattern sort first; ties and unmatched columns sort by name.
	Priority []*regexp.Regexp

	// Fallback is tried, in order, by exact column name when neither the
	// query nor the tool name selects a metric.
	Fallback []string

	// DateKey recognizes date/time columns for the X axis.
	DateKey *regexp.Regexp

	// Palette is cycled to color series.
	Palette []string

	// MaxMetrics caps how many series a topic match contributes.
	MaxMetrics int
}

func mustCompile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// DefaultTables returns the built-in health and fitness tables.
func DefaultTables() Tables {
	return Tables{
		Metrics: []Metric{
			{Name: "steps", Query: mustCompile(`(?i)steps?`, `(?i)walk`), Fields: mustCompile(`(?i)steps?`)},
			{Name: "heart_rate", Query: mustCompile(`(?i)heart`, `(?i)bpm`), Fields: mustCompile(`(?i)heart`, `(?i)bpm`, `(?i)(^|_)hr$`)},
			{Name: "calories", Query: mustCompile(`(?i)calor`, `(?i)kcal`, `(?i)burn`), Fields: mustCompile(`(?i)calor`, `(?i)kcal`)},
			{Name: "distance", Query: mustCompile(`(?i)distance`, `(?i)how far`, `(?i)kilomet`, `(?i)mile`), Fields: mustCompile(`(?i)distance`, `(?i)meters`)},
			{Name: "stress", Query: mustCompile(`(?i)stress`), Fields: mustCompile(`(?i)stress`)},
			{Name: "sleep", Query: mustCompile(`(?i)sleep`, `(?i)slept`), Fields: mustCompile(`(?i)sleep`, `(?i)deep`, `(?i)(^|[a-z_])rem`, `(?i)awake`)},
			{Name: "battery", Query: mustCompile(`(?i)battery`, `(?i)energy`), Fields: mustCompile(`(?i)battery`, `(?i)charged`, `(?i)drained`)},
			{Name: "floors", Query: mustCompile(`(?i)floor`, `(?i)stair`, `(?i)climb`), Fields: mustCompile(`(?i)floor`)},
			{Name: "spo2", Query: mustCompile(`(?i)spo2`, `(?i)oxygen`, `(?i)saturation`, `(?i)pulse ?ox`), Fields: mustCompile(`(?i)spo2`, `(?i)oxygen`, `(?i)saturation`)},
			{Name: "respiration", Query: mustCompile(`(?i)respirat`, `(?i)breath`), Fields: mustCompile(`(?i)respirat`, `(?i)breath`)},
		},
		Exclude: mustCompile(
			`(?i)^(id|uuid|guid)$`,
			`(?i)[_-](id|uuid)$`,
			`[a-z0-9]Id$`,
			`(?i)uuid|guid`,
			`(?i)version`,
			`(?i)goal`,
			`(?i)millis`,
			`(?i)_ms$`,
			`[a-z0-9](In)?Ms$`,
			`(?i)timestamp|epoch`,
			`(?i)constant|offset|timezone`,
		),
		Priority: mustCompile(
			`(?i)steps?`,
			`(?i)calor`,
			`(?i)heart|bpm`,
			`(?i)distance`,
			`(?i)stress`,
			`(?i)battery`,
			`(?i)spo2|oxygen`,
			`(?i)respirat`,
			`(?i)sleep`,
			`(?i)floor`,
			`(?i)active|intensity`,
		),
		Fallback: []string{
			"totalSteps",
			"restingHeartRate",
			"heartRate",
			"averageStressLevel",
			"totalCalories",
			"totalDistance",
		},
		DateKey: regexp.MustCompile(`(?i)date|time|day|week|month|year|period|timestamp`),
		Palette: []string{
			"#8884d8",
			"#82ca9d",
			"#ffc658",
			"#ff7300",
			"#0088fe",
			"#00c49f",
			"#ffbb28",
			"#ff8042",
		},
		MaxMetrics: 2,
	}
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func (t Tables) excluded(key string) bool {
	return matchesAny(t.Exclude, key)
}

func (t Tables) rank(key string) int {
	for i, re := range t.Priority {
		if re.MatchString(key) {
			return i
		}
	}
	return len(t.Priority)
}

func (t Tables) isDateKey(key string) bool {
	return t.DateKey != nil && t.DateKey.MatchString(key)
}
