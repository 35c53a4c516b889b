package atlas

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// ReportBuilder accumulates markdown sections for a benchmark report.
type ReportBuilder struct {
	title    string
	sections []string
}

func NewReportBuilder(title string) *ReportBuilder {
	return &ReportBuilder{title: title}
}

// AddHeader appends a level-n markdown header.
func (b *ReportBuilder) AddHeader(level int, text string) {
	b.sections = append(b.sections, strings.Repeat("#", level)+" "+text+"\n")
}

// AddTable appends a markdown table with a separator row.
func (b *ReportBuilder) AddTable(headers []string, rows [][]string) {
	b.sections = append(b.sections, "| "+strings.Join(headers, " | ")+" |")
	seps := make([]string, len(headers))
	for i := range seps {
		seps[i] = "---"
	}
	b.sections = append(b.sections, "|"+strings.Join(seps, "|")+"|")
	for _, row := range rows {
		b.sections = append(b.sections, "| "+strings.Join(row, " | ")+" |")
	}
	b.sections = append(b.sections, "")
}

// AddText appends a paragraph.
func (b *ReportBuilder) AddText(text string) {
	b.sections = append(b.sections, text+"\n")
}

// AddMetrics appends one metrics block under a level-3 header.
func (b *ReportBuilder) AddMetrics(label string, m Metrics) {
	b.AddHeader(3, label)
	b.sections = append(b.sections,
		fmt.Sprintf("- **Coverage**: %.3f\n", m.Coverage),
		fmt.Sprintf("- **Final Coverage**: %.3f\n", m.FinalCoverage),
		fmt.Sprintf("- **Type I Error**: %.3f\n", m.TypeIError),
		fmt.Sprintf("- **Power**: %.3f\n", m.Power),
		fmt.Sprintf("- **Avg Width**: %.4f\n", m.AvgWidth),
		fmt.Sprintf("- **Median Stop Time**: %.1f\n", m.MedianStopTime),
		fmt.Sprintf("- **Avg Runtime**: %.4fs\n", m.AvgRuntime),
		fmt.Sprintf("- **E-Value Decision Rate**: %.3f\n", m.EValueDecisionRate),
		fmt.Sprintf("- **Naive Peeking Error**: %.3f\n", m.NaivePeekingError),
	)
}

// Build renders the full report.
func (b *ReportBuilder) Build() string {
	return "# " + b.title + "\n\n" + strings.Join(b.sections, "\n")
}

// Save writes the rendered report to path.
func (b *ReportBuilder) Save(path string) error {
	return os.WriteFile(path, []byte(b.Build()), 0o644)
}

// Comparison collects metrics over a method x scenario grid. Methods
// and scenarios keep insertion order so a rerun renders an identical
// report.
type Comparison struct {
	methods   []string
	scenarios []string
	cells     map[string]map[string]Metrics
}

func NewComparison() *Comparison {
	return &Comparison{cells: make(map[string]map[string]Metrics)}
}

// Add records the metrics for one method on one scenario.
func (c *Comparison) Add(method, scenario string, m Metrics) {
	if _, ok := c.cells[method]; !ok {
		c.methods = append(c.methods, method)
		c.cells[method] = make(map[string]Metrics)
	}
	if !slices.Contains(c.scenarios, scenario) {
		c.scenarios = append(c.scenarios, scenario)
	}
	c.cells[method][scenario] = m
}

// Get looks up one cell.
func (c *Comparison) Get(method, scenario string) (Metrics, bool) {
	row, ok := c.cells[method]
	if !ok {
		return Metrics{}, false
	}
	m, ok := row[scenario]
	return m, ok
}

func (c *Comparison) Methods() []string   { return slices.Clone(c.methods) }
func (c *Comparison) Scenarios() []string { return slices.Clone(c.scenarios) }

// Empty reports whether nothing has been added yet.
func (c *Comparison) Empty() bool { return len(c.methods) == 0 }

// BuildComparisonReport renders the grid as markdown: coverage, final
// coverage and width tables with one column per method, then a
// detailed metrics section per method. Coverage at or above 0.95 is
// bolded.
func BuildComparisonReport(c *Comparison, title string) string {
	b := NewReportBuilder(title)

	b.AddHeader(2, "Summary")
	b.AddText("This report compares confidence sequence methods across scenarios.")

	headers := append([]string{"Scenario"}, c.methods...)

	b.AddHeader(2, "Coverage Comparison")
	b.AddTable(headers, c.grid(func(m Metrics) string {
		cell := fmt.Sprintf("%.3f", m.Coverage)
		if m.Coverage >= 0.95 {
			cell = "**" + cell + "**"
		}
		return cell
	}))

	b.AddHeader(2, "Final Coverage Comparison")
	b.AddTable(headers, c.grid(func(m Metrics) string {
		return fmt.Sprintf("%.3f", m.FinalCoverage)
	}))

	b.AddHeader(2, "Width Comparison (smaller is better)")
	b.AddTable(headers, c.grid(func(m Metrics) string {
		return fmt.Sprintf("%.4f", m.AvgWidth)
	}))

	b.AddHeader(2, "Detailed Metrics")
	for _, method := range c.methods {
		b.AddHeader(3, method)
		for _, scenario := range c.scenarios {
			if m, ok := c.Get(method, scenario); ok {
				b.AddMetrics(scenario, m)
			}
		}
	}
	return b.Build()
}

// WriteComparisonReport renders and saves the comparison.
func WriteComparisonReport(c *Comparison, title, path string) error {
	return os.WriteFile(path, []byte(BuildComparisonReport(c, title)), 0o644)
}

// grid renders one row per scenario with one formatted cell per
// method, N/A where a cell was never run.
func (c *Comparison) grid(cell func(Metrics) string) [][]string {
	rows := make([][]string, 0, len(c.scenarios))
	for _, scenario := range c.scenarios {
		row := []string{scenario}
		for _, method := range c.methods {
			if m, ok := c.Get(method, scenario); ok {
				row = append(row, cell(m))
			} else {
				row = append(row, "N/A")
			}
		}
		rows = append(rows, row)
	}
	return rows
}
