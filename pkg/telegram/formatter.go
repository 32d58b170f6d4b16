package telegram

import (
	"fmt"
	"strings"

	"competitive-intel-agent/internal/entity"
)

// Telegram rejects messages beyond 4096 characters.
const maxMessageLen = 4090

// FormatAnalysisSummary builds the Markdown messages sent when a company
// analysis pipeline finishes, split so each message stays within the
// Telegram length limit.
func FormatAnalysisSummary(company entity.Company, competitors []entity.Competitor, insights []entity.Insight) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Analysis complete: %s*\n", escapeMarkdown(company.Name))
	if company.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", escapeMarkdown(company.Industry))
	}
	fmt.Fprintf(&b, "\nCompetitors identified: %d\n", len(competitors))
	for _, c := range competitors {
		fmt.Fprintf(&b, "• %s\n", escapeMarkdown(c.Name))
	}

	if len(insights) > 0 {
		fmt.Fprintf(&b, "\n💡 *Insights* (%d)\n", len(insights))
		for _, ins := range insights {
			fmt.Fprintf(&b, "• [%s] %s\n", ins.Severity, escapeMarkdown(ins.Title))
		}
	}

	return splitMessage(b.String())
}

// splitMessage breaks text on line boundaries so no part exceeds the limit.
func splitMessage(text string) []string {
	if len(text) <= maxMessageLen {
		return []string{text}
	}

	var messages []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if current.Len()+len(line)+1 > maxMessageLen && current.Len() > 0 {
			messages = append(messages, strings.TrimRight(current.String(), "\n"))
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		messages = append(messages, strings.TrimRight(current.String(), "\n"))
	}
	return messages
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "`", "\\`")
	return replacer.Replace(s)
}
