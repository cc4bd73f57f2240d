package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/vinayprograms/codeagent/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	resultStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Run prints the project's outcomes.
func (c *InspectCmd) Run(g *Globals) error {
	rt, err := openRuntime(g)
	if err != nil {
		return err
	}
	defer rt.Close()

	outcomes, err := rt.store.Outcomes(context.Background(), c.Project)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(outcomes)
	}
	fmt.Print(renderOutcomes(c.Project, outcomes, c.Width))
	return nil
}

func renderOutcomes(projectID string, outcomes []store.Message, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Project "+projectID) + "\n\n")
	if len(outcomes) == 0 {
		b.WriteString(infoStyle.Render("No outcomes recorded.") + "\n")
		return b.String()
	}

	for _, m := range outcomes {
		label := resultStyle.Render(m.Type)
		if m.Type == store.TypeError {
			label = errorStyle.Render(m.Type)
		}
		fmt.Fprintf(&b, "%s %s\n", label, infoStyle.Render(m.CreatedAt.Format("2006-01-02 15:04:05")+"  run "+m.RunID))
		b.WriteString(wordwrap.String(m.Content, width) + "\n")

		if f := m.Fragment; f != nil {
			fmt.Fprintf(&b, "  title: %s\n", f.Title)
			fmt.Fprintf(&b, "  url:   %s\n", f.SandboxURL)
			paths := make([]string, 0, len(f.Files))
			for p := range f.Files {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				fmt.Fprintf(&b, "  - %s %s\n", p, infoStyle.Render(fmt.Sprintf("(%d bytes)", len(f.Files[p]))))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
