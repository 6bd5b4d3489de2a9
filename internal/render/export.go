package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"BuyBuddy/internal/session"

	"gopkg.in/yaml.v3"
)

// Formats lists the accepted export formats
var Formats = []string{"json", "yaml", "md"}

// Export writes sess to w in the given format (json, yaml, md/markdown)
func Export(w io.Writer, sess session.Session, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(sess); err != nil {
			return err
		}
		return enc.Close()
	case "md", "markdown":
		return exportMarkdown(w, sess)
	default:
		return fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(Formats, ", "))
	}
}

func exportMarkdown(w io.Writer, sess session.Session) error {
	if _, err := fmt.Fprintf(w, "# Session %s\n\n**Messages:** %d\n\n---\n\n", sess.ID, len(sess.Messages)); err != nil {
		return err
	}

	for i, msg := range sess.Messages {
		_, _ = fmt.Fprintf(w, "**%s:** (%s)\n\n%s\n\n", msg.Role, msg.Timestamp.UTC().Format("2006-01-02 15:04:05"), escapeMarkdown(msg.Content))

		if msg.ProductMessage != "" {
			_, _ = fmt.Fprintf(w, "%s\n\n", escapeMarkdown(msg.ProductMessage))
		}
		if pc := msg.PriceComparison; pc != nil {
			_, _ = fmt.Fprintf(w, "> Meilleure offre : %s à %s sur %s (%s - %s, %d produits)\n\n",
				pc.BestDeal.Name, Price(pc.BestDeal.Price), pc.BestDeal.Platform,
				Price(pc.PriceRange.Min), Price(pc.PriceRange.Max), pc.TotalCompared)
		}
		for _, p := range msg.Products {
			_, _ = fmt.Fprintf(w, "- [%s](%s) %s %s\n", p.Name, p.Link, p.Price.String(), p.Platform)
		}
		if len(msg.Products) > 0 {
			_, _ = fmt.Fprintln(w)
		}

		if i < len(sess.Messages)-1 {
			if _, err := fmt.Fprintf(w, "---\n\n"); err != nil {
				return err
			}
		}
	}

	return nil
}

// escapeMarkdown escapes emphasis markers outside code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCodeBlock := false

	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		line = strings.ReplaceAll(line, "**", "\\*\\*")
		lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
	}

	return strings.Join(lines, "\n")
}
