package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"crboard/internal/changerequest/aggregate"
)

var (
	colorAccent = lipgloss.Color("#20B9B4")
	colorMuted  = lipgloss.Color("#2C4A54")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	cardStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1).
			Width(12).
			Align(lipgloss.Center)
	countStyle  = lipgloss.NewStyle().Bold(true)
	statusStyle = lipgloss.NewStyle().Width(22)
)

// renderDashboard lays out the system cards in one row and the status table
// below them.
func renderDashboard(d aggregate.Dashboard) string {
	cards := make([]string, 0, len(d.Cards))
	for _, c := range d.Cards {
		cards = append(cards, cardStyle.Render(c.Label+"\n"+countStyle.Render(fmt.Sprint(c.Count))))
	}

	var rows strings.Builder
	for _, st := range d.Statuses {
		rows.WriteString(statusStyle.Render(string(st.Status)))
		fmt.Fprintf(&rows, "%d\n", st.Count)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("Total change requests: %d", d.TotalCRs)),
		lipgloss.JoinHorizontal(lipgloss.Top, cards...),
		strings.TrimRight(rows.String(), "\n"),
	)
}
