package backend

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ActionsPrompt renders the capability catalogue for a registry snapshot:
// every module sorted by description, and within each module every action
// sorted by name, with its description and example payload. The ordering
// makes the prompt deterministic for a given registry, so it is computed once
// and reused across turns.
func ActionsPrompt(reg *Registry) string {
	var b strings.Builder
	b.WriteString("\n--- Currently Available Automation Actions ---\n")
	b.WriteString("Each action has a specific JSON format. Here are the details and examples:\n")

	sorted := make([]int, 0, len(reg.modules))
	for i := range reg.modules {
		sorted = append(sorted, i)
	}
	sort.Slice(sorted, func(a, b int) bool {
		return reg.modules[sorted[a]].Description() < reg.modules[sorted[b]].Description()
	})

	for _, idx := range sorted {
		m := reg.modules[idx]
		fmt.Fprintf(&b, "\n**Module: %s**\n", m.Description())

		actions := m.Actions()
		names := make([]string, 0, len(actions))
		for name := range actions {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			// Only actions this module actually owns in the flat map; a
			// duplicate lost to an earlier registrant is not advertised.
			if d, ok := reg.Lookup(name); !ok || d.Module != m {
				continue
			}
			fmt.Fprintf(&b, "  - **%s**: %s\n", name, actions[name].Description)
			fmt.Fprintf(&b, "    Example: `%s`\n", actions[name].Example)
		}
	}

	return b.String()
}

// ContextBlock renders the time-sensitive context appended to every
// intent-parsing prompt: local date/time, ISO week and month ranges, the
// timezone name, and the last remembered file when one is set. It is
// recomputed on every call.
func ContextBlock(now time.Time, lastFile string) string {
	const dateLayout = "2006-01-02"

	// Monday-based weekday offset.
	weekday := (int(now.Weekday()) + 6) % 7
	startOfWeek := now.AddDate(0, 0, -weekday)
	endOfWeek := startOfWeek.AddDate(0, 0, 6)
	nextWeekStart := startOfWeek.AddDate(0, 0, 7)
	nextWeekEnd := endOfWeek.AddDate(0, 0, 7)

	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	endOfMonth := startOfMonth.AddDate(0, 1, -1)

	var b strings.Builder
	b.WriteString("\n\n--- CURRENT CONTEXT ---\n")
	fmt.Fprintf(&b, "Current Date and Time (Local): %s\n", now.Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&b, "Current Date (Local): %s\n", now.Format(dateLayout))
	fmt.Fprintf(&b, "Current Year: %d\n", now.Year())
	fmt.Fprintf(&b, "Current Week (Monday-Sunday): %s/%s\n",
		startOfWeek.Format(dateLayout), endOfWeek.Format(dateLayout))
	fmt.Fprintf(&b, "Next Week (Monday-Sunday): %s/%s\n",
		nextWeekStart.Format(dateLayout), nextWeekEnd.Format(dateLayout))
	fmt.Fprintf(&b, "Current Month: %s/%s\n",
		startOfMonth.Format(dateLayout), endOfMonth.Format(dateLayout))
	fmt.Fprintf(&b, "Local Timezone: %s\n", now.Location().String())
	if lastFile != "" {
		fmt.Fprintf(&b, "LAST_REMEMBERED_FILE: %s\n", lastFile)
	}
	b.WriteString("-------------------------")
	return b.String()
}
