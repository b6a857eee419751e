package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/corey/aswin/internal/app"
	"github.com/corey/aswin/internal/config"
	"github.com/corey/aswin/internal/domain/revealing"
	"github.com/corey/aswin/internal/domain/status"
	"github.com/corey/aswin/internal/ports"
)

// Palette for terminal output.
var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A89")
)

type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Name    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

// newStyles returns the output styles. Without color every style renders
// its text unchanged.
func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain, plain}
	}
	return styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Label:   lipgloss.NewStyle().Foreground(colorMuted),
		Name:    lipgloss.NewStyle().Foreground(colorAccent),
		Muted:   lipgloss.NewStyle().Foreground(colorMuted),
		Success: lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
		Warning: lipgloss.NewStyle().Foreground(colorWarning),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(colorError),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1),
	}
}

// currentStyles honours --no-color, NO_COLOR and non-terminal stdout.
func currentStyles() styles {
	return newStyles(useColor())
}

func field(st styles, label, value string) string {
	return fmt.Sprintf("  %s %s\n", st.Label.Render(fmt.Sprintf("%-15s", label+":")), value)
}

func verdict(st styles, winning bool) string {
	if winning {
		return st.Success.Render("✓ winning")
	}
	return st.Error.Render("✗ losing")
}

func stateList(st styles, states []string) string {
	if len(states) == 0 {
		return st.Muted.Render("(none)")
	}
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = st.Name.Render(s)
	}
	return strings.Join(names, " ")
}

// formatSolve renders a finished solve.
//
//	⚡ revealing-toy × F p0   ✗ losing │ 3 supports │ 2ms
//	  Winning states: L
func formatSolve(st styles, res *app.SolveResult, showStrategy bool) string {
	run := res.Run
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s   %s │ %d supports │ %s\n",
		st.Title.Render("⚡ "+run.Model+" × "+run.Automaton),
		verdict(st, run.InitialWinning), run.Nodes, run.Elapsed.Round(time.Microsecond)))
	sb.WriteString(field(st, "Winning states", stateList(st, run.WinningStates)))
	sb.WriteString(field(st, "Winning nodes", fmt.Sprintf("%d of %d", len(run.WinningNodes), run.Nodes)))
	if res.Stored {
		sb.WriteString(field(st, "Run", st.Muted.Render(run.ID)))
	}
	for _, w := range res.Result.Warnings {
		sb.WriteString("  " + st.Warning.Render("⚠ "+w) + "\n")
	}

	if showStrategy {
		sb.WriteString(st.Title.Render("  Strategy") + "\n")
		if len(res.Result.Strategy) == 0 {
			sb.WriteString("    " + st.Muted.Render("(no winning supports)") + "\n")
		}
		for _, e := range res.Result.Strategy {
			mode := "keep"
			if e.Uniform {
				mode = "uniform"
			}
			sb.WriteString(fmt.Sprintf("    %s {%s}  %s %s\n",
				st.Muted.Render(fmt.Sprintf("#%d", e.Node)),
				strings.Join(e.Support, ", "),
				st.Name.Render(strings.Join(e.Actions, " | ")),
				st.Muted.Render(mode)))
		}
	}
	return sb.String()
}

// formatExplore renders exploration statistics.
func formatExplore(st styles, res *app.ExploreResult) string {
	s := res.Stats
	var sb strings.Builder
	sb.WriteString(st.Title.Render(fmt.Sprintf("⚡ %s × %s",
		res.Product.POMDP().Name, res.Product.Automaton().Name)) + "\n")
	sb.WriteString(field(st, "Label mode", res.Product.Mode().String()))
	sb.WriteString(field(st, "Product states", fmt.Sprint(res.Product.NumStates())))
	sb.WriteString(field(st, "Supports", fmt.Sprint(s.Nodes)))
	sb.WriteString(field(st, "Edges", fmt.Sprint(s.Edges)))
	sb.WriteString(field(st, "Largest support", fmt.Sprint(s.MaxSupport)))
	sb.WriteString(field(st, "Depth", fmt.Sprint(s.MaxDepth)))
	if s.Frontier > 0 {
		sb.WriteString(field(st, "Frontier", st.Warning.Render(fmt.Sprintf("%d unexpanded", s.Frontier))))
	}
	return sb.String()
}

// formatReveal renders a strongly-revealing check and its transformation.
func formatReveal(st styles, res *app.RevealResult) string {
	rep := res.Report
	var sb strings.Builder
	mark := st.Success.Render("✓ strongly revealing")
	if !rep.Revealing {
		mark = st.Error.Render(fmt.Sprintf("✗ not strongly revealing (%d violations)", len(rep.Violations)))
	}
	sb.WriteString(fmt.Sprintf("%s   %s │ %d supports\n", st.Title.Render("⚡ "+res.Model.Name), mark, rep.Nodes))
	if rep.Frontier > 0 {
		sb.WriteString(field(st, "Lookahead", st.Warning.Render(fmt.Sprintf("%d supports left unexpanded", rep.Frontier))))
	}
	sb.WriteString(formatViolations(st, rep.Violations, 5))

	if res.Transformed != nil {
		added := len(res.Transformed.Observations) - len(res.Model.Observations)
		sb.WriteString(field(st, "Transformed", fmt.Sprintf("%s (+%d observations)",
			st.Name.Render(res.Transformed.Name), added)))
		sb.WriteString(field(st, "Written", res.OutputPath))
		if res.TransformErr != nil {
			sb.WriteString("  " + st.Warning.Render("⚠ "+res.TransformErr.Error()) + "\n")
		}
	}
	return sb.String()
}

func formatViolations(st styles, vs []revealing.Violation, limit int) string {
	var sb strings.Builder
	for i, v := range vs {
		if i == limit {
			sb.WriteString("    " + st.Muted.Render(fmt.Sprintf("… %d more", len(vs)-limit)) + "\n")
			break
		}
		sb.WriteString("    " + st.Warning.Render("•") + " " + v.String() + "\n")
	}
	return sb.String()
}

// formatModels renders the models with stored runs.
func formatModels(st styles, models []string) string {
	var sb strings.Builder
	sb.WriteString(st.Title.Render(fmt.Sprintf("⚡ %d models", len(models))) + "\n")
	for _, m := range models {
		sb.WriteString("  " + st.Name.Render(m) + "\n")
	}
	return sb.String()
}

// formatRuns renders the run history of one model, oldest first.
func formatRuns(st styles, model string, runs []ports.RunSummary) string {
	var sb strings.Builder
	sb.WriteString(st.Title.Render(fmt.Sprintf("⚡ %s │ %d runs", model, len(runs))) + "\n")
	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("  %s  %s  %s  %d supports, %d winning\n",
			st.Muted.Render(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			verdict(st, r.InitialWinning), r.Nodes, r.Winning))
	}
	return sb.String()
}

// formatRun renders one stored run.
func formatRun(st styles, run *ports.Run) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s   %s\n",
		st.Title.Render("⚡ "+run.Model+" × "+run.Automaton), verdict(st, run.InitialWinning)))
	sb.WriteString(field(st, "Run", run.ID))
	sb.WriteString(field(st, "Created", run.CreatedAt.Local().Format(time.RFC3339)))
	sb.WriteString(field(st, "Elapsed", run.Elapsed.Round(time.Microsecond).String()))
	sb.WriteString(field(st, "Supports", fmt.Sprintf("%d (%d edges)", run.Nodes, run.Edges)))
	sb.WriteString(field(st, "Winning states", stateList(st, run.WinningStates)))
	sb.WriteString(field(st, "Winning nodes", fmt.Sprint(len(run.WinningNodes))))
	for _, e := range run.Strategy {
		sb.WriteString(fmt.Sprintf("    %s %s\n",
			st.Muted.Render(fmt.Sprintf("#%d (%d states)", e.Node, len(run.Supports[e.Node]))),
			st.Name.Render(strings.Join(e.Actions, " | "))))
	}
	return sb.String()
}

// formatWatchEvent renders one re-solve triggered by a file change.
func formatWatchEvent(st styles, path string, res *app.SolveResult, err error) string {
	stamp := st.Muted.Render(time.Now().Format("15:04:05"))
	if err != nil {
		return fmt.Sprintf("%s %s %s\n", stamp, st.Name.Render(path), st.Error.Render("✗ "+err.Error()))
	}
	run := res.Run
	return fmt.Sprintf("%s %s %s │ %d supports │ winning: %s\n",
		stamp, st.Name.Render(path), verdict(st, run.InitialWinning), run.Nodes, stateList(st, run.WinningStates))
}

// formatConfig renders the effective configuration and workspace paths.
func formatConfig(st styles, paths *app.Paths, values map[string]any, last *status.StatusData) string {
	var body strings.Builder
	body.WriteString(st.Title.Render("⚡ aswin config") + "\n")
	body.WriteString(field(st, "Data dir", paths.Root))
	body.WriteString(field(st, "Config file", paths.Config))
	body.WriteString(field(st, "Database", paths.DB))
	body.WriteString(field(st, "Log", paths.Log))

	for _, k := range config.Keys() {
		body.WriteString(field(st, k, fmt.Sprint(values[k])))
	}
	if last != nil {
		result := last.Result
		switch result {
		case status.ResultWinning:
			result = st.Success.Render(result)
		case status.ResultFailed:
			result = st.Error.Render(result)
		}
		body.WriteString(field(st, "Last solve", fmt.Sprintf("%s (%s)", st.Name.Render(last.Model), result)))
	}
	return st.Box.Render(strings.TrimRight(body.String(), "\n")) + "\n"
}
