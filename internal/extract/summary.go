package extract

import (
	"strings"

	"github.com/sells-group/leadgen/internal/model"
)

// Summary renders candidates as a markdown contact sheet grouped by channel,
// in the order channels first appear. The sheet is appended to crawl text so
// the enrichment prompt sees contacts with their associated names.
func Summary(entityName, websiteURL string, cands []model.ContactCandidate) string {
	var sb strings.Builder
	sb.WriteString("# Contact Information for " + entityName + "\n")
	sb.WriteString("Website: " + websiteURL + "\n\n")

	if len(cands) == 0 {
		sb.WriteString("No contact information found.\n")
		return sb.String()
	}

	var order []model.Channel
	groups := make(map[model.Channel][]model.ContactCandidate)
	for _, c := range cands {
		if _, ok := groups[c.Channel]; !ok {
			order = append(order, c.Channel)
		}
		groups[c.Channel] = append(groups[c.Channel], c)
	}

	for _, ch := range order {
		sb.WriteString("## " + ch.String() + " Contacts\n")
		for _, c := range groups[ch] {
			name := "Unknown"
			if c.AssociatedName != nil {
				name = *c.AssociatedName
			}
			sb.WriteString("- **Decision Maker:** " + name + "\n")
			sb.WriteString("  - **Contact Info:** " + c.Value + "\n")
			sb.WriteString("  - **Contact Channel:** " + ch.String() + "\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}
