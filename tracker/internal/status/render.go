package status

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/hiketracker/hiketracker/tracker/internal/api"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Width(20)
)

// Render writes a human-readable summary of st and rep. rep may be nil when
// the metrics endpoint could not be scraped.
func Render(w io.Writer, st *api.StatusResponse, rep *Report) {
	fmt.Fprintln(w, titleStyle.Render("hiketracker "+st.RunID))

	state := okStyle.Render("running")
	if !st.Running {
		state = errStyle.Render("stopped")
	}
	line(w, "engine", state)
	if !st.StartedAt.IsZero() {
		line(w, "started", st.StartedAt.Local().Format(time.RFC3339))
	}
	line(w, "samples", fmt.Sprintf("%d accepted, %d filtered", st.SamplesAccepted, st.SamplesFiltered))
	line(w, "photos stored", fmt.Sprint(st.PhotosStored))

	observer := warnStyle.Render("none")
	if st.ObserverAttached {
		observer = okStyle.Render("attached")
	}
	line(w, "observer", observer)

	fetch := fmt.Sprintf("%s (generation %d)", st.Fetch.StateName, st.Fetch.Generation)
	line(w, "fetch", fetch)
	if st.Fetch.LastOutcome != "" {
		line(w, "last outcome", st.Fetch.LastOutcome)
	}
	if st.Fetch.LastError != "" {
		line(w, "last error", errStyle.Render(st.Fetch.LastError))
	}
	if st.Fetch.ConsecutiveFailures > 0 {
		line(w, "failures", warnStyle.Render(fmt.Sprintf("%d consecutive", st.Fetch.ConsecutiveFailures)))
	}

	if rep != nil {
		line(w, "fetches", outcomes(rep.Fetches))
		line(w, "attempts", outcomes(rep.Attempts))
		line(w, "mean fetch", fmt.Sprintf("%.2fs", rep.MeanFetchSeconds()))
		line(w, "cache hits", fmt.Sprintf("%.0f", rep.CacheHits))
		if rep.JournalDropped > 0 {
			line(w, "journal dropped", warnStyle.Render(fmt.Sprintf("%.0f", rep.JournalDropped)))
		}
	}

	for _, a := range st.Alerts {
		style := warnStyle
		if a.State == "firing" {
			style = errStyle
		}
		line(w, "alert "+a.State, style.Render(a.RuleName+": "+a.Message))
	}
}

func line(w io.Writer, label, value string) {
	fmt.Fprintln(w, labelStyle.Render(label)+value)
}

// outcomes formats an outcome map as "a=1 b=2", sorted by key.
func outcomes(m map[string]float64) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.0f", k, m[k])
	}
	return strings.Join(parts, " ")
}
