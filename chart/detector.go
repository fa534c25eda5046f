// Package chart finds tabular numeric data in tool results and describes
// how to plot it.
package chart

import (
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"mcpchat/model"
)

var chartNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mcpchat/chart"))

// Detector turns tool results into chart descriptors. It holds no mutable
// state and is safe for concurrent use.
type Detector struct {
	tables Tables
}

// NewDetector creates a detector over the given tables.
func NewDetector(tables Tables) *Detector {
	if tables.MaxMetrics <= 0 {
		tables.MaxMetrics = 1
	}
	return &Detector{tables: tables}
}

// Default returns a detector over DefaultTables.
func Default() *Detector {
	return NewDetector(DefaultTables())
}

// Detect returns one descriptor per chartable list found in result. It never
// modifies result and returns nil when nothing qualifies, which is the
// common case. callID scopes the chart ids to one tool call, so identical
// results from separate calls get distinct ids while repeated detection on
// the same call yields identical output.
func (d *Detector) Detect(result model.ToolResult, callID, toolName, userQuery string) []model.ChartDescriptor {
	if result.IsError {
		return nil
	}

	var charts []model.ChartDescriptor
	candidate := 0
	for _, item := range result.Content {
		for _, list := range d.candidates(item) {
			idx := candidate
			candidate++
			if chart, ok := d.build(list, callID, idx, len(charts), toolName, userQuery); ok {
				charts = append(charts, chart)
			}
		}
	}
	return charts
}

func (d *Detector) candidates(item model.ContentItem) []gjson.Result {
	var lists []gjson.Result
	if len(item.Data) > 0 && gjson.ValidBytes(item.Data) {
		lists = append(lists, structuredLists(gjson.ParseBytes(item.Data))...)
	}
	if item.Text != "" {
		if parsed, ok := parseText(item.Text); ok {
			lists = append(lists, candidateLists(parsed)...)
		}
	}
	return lists
}

// shape is the column analysis of a qualifying list.
type shape struct {
	numeric []string
	strings []string
}

// qualify applies the chartability thresholds to a flattened list.
func qualify(records []record) (shape, bool) {
	if len(records) < 2 {
		return shape{}, false
	}
	for _, r := range records {
		if !r.object {
			return shape{}, false
		}
	}
	first := records[0]
	if len(first.fields) < 2 {
		return shape{}, false
	}

	var s shape
	for _, f := range first.fields {
		switch {
		case allOfType(records, f.key, gjson.Number):
			s.numeric = append(s.numeric, f.key)
		case allOfType(records, f.key, gjson.String):
			s.strings = append(s.strings, f.key)
		}
	}
	if len(s.numeric) == 0 || len(s.strings) == 0 {
		return shape{}, false
	}
	return s, true
}

func allOfType(records []record, key string, typ gjson.Type) bool {
	for _, r := range records {
		v, ok := r.get(key)
		if !ok || v.Type != typ {
			return false
		}
	}
	return true
}

func (d *Detector) build(list gjson.Result, callID string, candidate, chartIndex int, toolName, userQuery string) (model.ChartDescriptor, bool) {
	records := flatten(list)
	s, ok := qualify(records)
	if !ok {
		return model.ChartDescriptor{}, false
	}

	numeric := d.filterNumeric(s.numeric)
	if len(numeric) == 0 {
		return model.ChartDescriptor{}, false
	}

	xKey := d.selectXKey(s.strings)
	yKeys := d.relevantMetrics(numeric, userQuery, toolName)

	rows := make([]map[string]any, len(records))
	for i, r := range records {
		rows[i] = r.values()
	}

	labels := make(map[string]string, len(yKeys))
	colors := make([]string, len(yKeys))
	for i, key := range yKeys {
		labels[key] = TitleCase(key)
		colors[i] = d.color(chartIndex + i)
	}

	return model.ChartDescriptor{
		ID:     chartID(callID, toolName, candidate, list.Raw),
		Kind:   d.kind(xKey, records),
		Title:  Title(toolName, yKeys),
		Rows:   rows,
		XKey:   xKey,
		YKeys:  yKeys,
		Colors: colors,
		Labels: labels,
	}, true
}

// filterNumeric drops never-plotted columns and orders the rest by the
// priority table, ties broken alphabetically.
func (d *Detector) filterNumeric(keys []string) []string {
	var kept []string
	for _, k := range keys {
		if !d.tables.excluded(k) {
			kept = append(kept, k)
		}
	}
	slices.SortStableFunc(kept, func(a, b string) int {
		ra, rb := d.tables.rank(a), d.tables.rank(b)
		if ra != rb {
			return ra - rb
		}
		return strings.Compare(a, b)
	})
	return kept
}

func (d *Detector) selectXKey(stringKeys []string) string {
	for _, k := range stringKeys {
		if d.tables.isDateKey(k) {
			return k
		}
	}
	return stringKeys[0]
}

// relevantMetrics picks the series to plot: columns of the topic the user
// asked about, else of the topic the tool name suggests, else the first
// fallback column present, else the top-priority column.
func (d *Detector) relevantMetrics(numeric []string, userQuery, toolName string) []string {
	if keys := d.metricsFor(userQuery, numeric); len(keys) > 0 {
		return keys
	}
	if keys := d.metricsFor(toolName, numeric); len(keys) > 0 {
		return keys
	}
	for _, name := range d.tables.Fallback {
		if slices.Contains(numeric, name) {
			return []string{name}
		}
	}
	return numeric[:1]
}

func (d *Detector) metricsFor(text string, numeric []string) []string {
	if text == "" {
		return nil
	}
	for _, m := range d.tables.Metrics {
		if !matchesAny(m.Query, text) {
			continue
		}
		var keys []string
		for _, k := range numeric {
			if matchesAny(m.Fields, k) {
				keys = append(keys, k)
				if len(keys) == d.tables.MaxMetrics {
					break
				}
			}
		}
		if len(keys) > 0 {
			return keys
		}
	}
	return nil
}

// kind maps the X axis to a chart type: dates get an area chart, numeric
// labels a line chart and anything categorical a bar chart.
func (d *Detector) kind(xKey string, records []record) string {
	if d.tables.isDateKey(xKey) {
		return model.ChartArea
	}
	for _, r := range records {
		v, _ := r.get(xKey)
		if _, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64); err != nil {
			return model.ChartBar
		}
	}
	return model.ChartLine
}

func (d *Detector) color(i int) string {
	if len(d.tables.Palette) == 0 {
		return ""
	}
	return d.tables.Palette[i%len(d.tables.Palette)]
}

func chartID(callID, toolName string, candidate int, raw string) string {
	name := callID + "\x00" + toolName + "\x00" + strconv.Itoa(candidate) + "\x00" + raw
	return uuid.NewSHA1(chartNamespace, []byte(name)).String()
}
