// Package render draws conversation state on a terminal. It only reads the
// values it is given.
package render

import (
	"fmt"
	"strings"
	"time"

	"BuyBuddy/internal/history"
	"BuyBuddy/internal/pricing"
	"BuyBuddy/internal/session"
	"BuyBuddy/internal/transcript"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	contentStyle = lipgloss.NewStyle().
			Padding(0, 2)

	productStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			MarginLeft(2)

	bestDealStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("42")).
			Foreground(lipgloss.Color("42")).
			Padding(0, 1).
			MarginLeft(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// Width is the wrap width for message text
const Width = 80

// Price formats a canonical price the way the shop shows it
func Price(v float64) string {
	return fmt.Sprintf("%.2f€", v)
}

// Header renders a title line
func Header(title string) string {
	return headerStyle.Render(title)
}

// Session renders a header and every message of sess
func Session(sess session.Session) string {
	var b strings.Builder
	id := sess.ID
	if id == "" {
		id = "(new)"
	}
	b.WriteString(headerStyle.Render("Session " + id))
	b.WriteString("\n")
	b.WriteString(metaStyle.Render(fmt.Sprintf("Messages: %d", len(sess.Messages))))
	b.WriteString("\n\n")
	for _, msg := range sess.Messages {
		b.WriteString(Message(msg))
		b.WriteString("\n")
	}
	return b.String()
}

// Message renders one message with its products and comparison
func Message(msg session.Message) string {
	var b strings.Builder

	label := assistantStyle.Render("BuyBuddy")
	if msg.Role == session.RoleUser {
		label = userStyle.Render("You")
	}
	b.WriteString(label)
	if !msg.Timestamp.IsZero() {
		b.WriteString(" ")
		b.WriteString(timestampStyle.Render(msg.Timestamp.Local().Format("15:04:05")))
	}
	b.WriteString("\n")

	if content := strings.TrimSpace(msg.Content); content != "" {
		b.WriteString(contentStyle.Render(wrapText(content, Width)))
		b.WriteString("\n")
	}
	if msg.ProductMessage != "" {
		b.WriteString(contentStyle.Render(wrapText(msg.ProductMessage, Width)))
		b.WriteString("\n")
	}
	if msg.Error != "" {
		b.WriteString(contentStyle.Render(errorStyle.Render(msg.Error)))
		b.WriteString("\n")
	}
	if msg.PriceComparison != nil {
		b.WriteString(Comparison(msg.PriceComparison))
		b.WriteString("\n")
	}
	for _, p := range msg.Products {
		b.WriteString(Product(p))
		b.WriteString("\n")
	}

	return b.String()
}

// Product renders a product card
func Product(p session.Product) string {
	lines := []string{lipgloss.NewStyle().Bold(true).Render(p.Name)}

	price := pricing.Normalize(p.Price)
	switch {
	case !price.Defaulted && price.Value > 0:
		lines = append(lines, Price(price.Value))
	case p.Price.String() != "":
		lines = append(lines, p.Price.String())
	}
	if p.Platform != "" {
		lines = append(lines, metaStyle.Render(p.Platform))
	}
	if p.Description != "" {
		lines = append(lines, wrapText(p.Description, Width-8))
	}
	if p.Link != "" {
		lines = append(lines, metaStyle.Render(p.Link))
	}

	return productStyle.Render(strings.Join(lines, "\n"))
}

// Comparison renders the best deal box
func Comparison(pc *session.PriceComparison) string {
	if pc == nil {
		return ""
	}
	lines := []string{
		"Meilleure offre trouvée",
		fmt.Sprintf("%s - %s", pc.BestDeal.Name, Price(pc.BestDeal.Price)),
	}
	if pc.BestDeal.Platform != "" {
		lines = append(lines, "sur "+pc.BestDeal.Platform)
	}
	lines = append(lines, fmt.Sprintf("%s - %s (%d produits comparés)",
		Price(pc.PriceRange.Min), Price(pc.PriceRange.Max), pc.TotalCompared))
	if amount, percent := pricing.Savings(pc); amount > 0 {
		lines = append(lines, fmt.Sprintf("Économisez jusqu'à %s (%.0f%%)", Price(amount), percent))
	}
	return bestDealStyle.Render(strings.Join(lines, "\n"))
}

// Conversations renders the conversation index
func Conversations(convs []history.Conversation, now time.Time) string {
	if len(convs) == 0 {
		return metaStyle.Render("Aucune conversation") + "\n"
	}
	var b strings.Builder
	for i, c := range convs {
		fmt.Fprintf(&b, "%2d. %s  %s\n    %s\n", i+1,
			lipgloss.NewStyle().Bold(true).Render(c.Title),
			timestampStyle.Render(history.RelativeDay(c.Timestamp, now)),
			metaStyle.Render(c.SessionID))
	}
	return b.String()
}

// Transcripts renders the local journal listing
func Transcripts(summaries []transcript.Summary, now time.Time) string {
	if len(summaries) == 0 {
		return metaStyle.Render("No saved transcripts") + "\n"
	}
	var b strings.Builder
	for i, s := range summaries {
		fmt.Fprintf(&b, "%2d. %s  %s\n    %s • %d messages\n", i+1,
			lipgloss.NewStyle().Bold(true).Render(history.Title(s.FirstMessage)),
			timestampStyle.Render(history.RelativeDay(s.SavedAt, now)),
			metaStyle.Render(s.SessionID), s.MessageCount)
	}
	return b.String()
}

// Error renders an error notification
func Error(err error) string {
	return errorStyle.Render("Erreur: ") + err.Error()
}

func wrapText(text string, width int) string {
	lines := strings.Split(text, "\n")
	var wrapped []string

	for _, line := range lines {
		if len([]rune(line)) <= width {
			wrapped = append(wrapped, line)
			continue
		}

		words := strings.Fields(line)
		current := ""
		for _, word := range words {
			switch {
			case current == "":
				current = word
			case len([]rune(current))+len([]rune(word))+1 > width:
				wrapped = append(wrapped, current)
				current = word
			default:
				current += " " + word
			}
		}
		if current != "" {
			wrapped = append(wrapped, current)
		}
	}

	return strings.Join(wrapped, "\n")
}
