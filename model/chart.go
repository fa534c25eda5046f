package model

// Chart kinds.
const (
	ChartLine = "line"
	ChartBar  = "bar"
	ChartArea = "area"
)

// ChartDescriptor is a visualization derived from tabular tool output.
// It is read-only once created.
type ChartDescriptor struct {
	ID     string            `json:"id"`
	Kind   string            `json:"kind"`
	Title  string            `json:"title"`
	Rows   []map[string]any  `json:"rows"`
	XKey   string            `json:"xKey"`
	YKeys  []string          `json:"yKeys"`
	Colors []string          `json:"colors"`
	Labels map[string]string `json:"labels"`
}
