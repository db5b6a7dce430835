package reporting

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/tanklab/cstr/scenario"
)

// writeReport renders the markdown summary for a finished run.
func writeReport(path string, cfg Config, result Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	defer f.Close()

	var b strings.Builder

	fmt.Fprintf(&b, "# CSTR Simulation Report: %s\n\n", cfg.Name)
	fmt.Fprintf(&b, "Generated: %s\n\n",
		time.Now().Format("2006-01-02 15:04:05"))

	b.WriteString("## Run Configuration\n\n")
	b.WriteString("| Parameter | Value |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(&b, "| Duration | %.1f s |\n", cfg.Duration)
	fmt.Fprintf(&b, "| Time step | %.3f s |\n", cfg.DT)
	fmt.Fprintf(&b, "| Coolant slew rate | %.3f K/s |\n", cfg.CoolantRate)
	fmt.Fprintf(&b, "| Catalyst activity | %.3f |\n", cfg.CatalystActivity)
	b.WriteString("\n")

	b.WriteString("## Time-Based Events\n\n")
	if len(cfg.Scenario.TimeEvents) == 0 {
		b.WriteString("None.\n\n")
	} else {
		b.WriteString("| Time (s) | Action | Comment |\n")
		b.WriteString("|---|---|---|\n")
		for _, ev := range cfg.Scenario.TimeEvents {
			fmt.Fprintf(&b, "| %.1f | %s | %s |\n",
				ev.At, formatAction(ev.Action), ev.Comment)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Condition-Based Events\n\n")
	if len(cfg.Scenario.ConditionEvents) == 0 {
		b.WriteString("None.\n\n")
	} else {
		b.WriteString("| Condition | Action | Comment |\n")
		b.WriteString("|---|---|---|\n")
		for _, ev := range cfg.Scenario.ConditionEvents {
			fmt.Fprintf(&b, "| %s %s %.2f | %s | %s |\n",
				ev.Variable, ev.Comparator, ev.Threshold,
				formatAction(ev.Action), ev.Comment)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Fired Events\n\n")
	if len(result.Fired) == 0 {
		b.WriteString("No events fired during this run.\n\n")
	} else {
		b.WriteString("| Time (s) | Kind | Comment |\n")
		b.WriteString("|---|---|---|\n")
		for _, rec := range result.Fired {
			fmt.Fprintf(&b, "| %.1f | %s | %s |\n",
				rec.SimTime, rec.Kind, rec.Comment)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Final State\n\n")
	if len(result.Records) > 0 {
		last := result.Records[len(result.Records)-1]
		peak := peakTemperature(result)

		b.WriteString("| Quantity | Value |\n")
		b.WriteString("|---|---|\n")
		fmt.Fprintf(&b, "| Reactor temperature | %.2f K |\n", last.TReal)
		fmt.Fprintf(&b, "| Concentration | %.4f mol/m3 |\n", last.CaReal)
		fmt.Fprintf(&b, "| Coolant temperature | %.2f K |\n",
			last.CoolantActual)
		fmt.Fprintf(&b, "| Peak temperature | %.2f K |\n", peak)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Data\n\nFull time series: `%s_data.csv`\n", cfg.Name)

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	return nil
}

func formatAction(a scenario.Action) string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%.1f", name, a[name]))
	}

	return strings.Join(parts, ", ")
}

func peakTemperature(result Result) float64 {
	peak := result.Records[0].TReal
	for _, r := range result.Records[1:] {
		if r.TReal > peak {
			peak = r.TReal
		}
	}

	return peak
}
