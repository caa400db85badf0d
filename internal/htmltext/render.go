// Package htmltext renders HTML fragments to plain text for storage.
package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Render returns the text content of an HTML fragment. Block-level breaks are
// preserved as newlines so rendered descriptions stay readable. Falls back to
// the raw input when it is not parseable as HTML.
func Render(html string) string {
	normalized := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n").Replace(html)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(normalized))
	if err != nil {
		return html
	}
	return strings.TrimSpace(doc.Text())
}
