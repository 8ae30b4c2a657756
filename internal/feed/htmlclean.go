package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// stripHTML removes tags and decodes entities from a feed title, then
// collapses whitespace. Titles occasionally arrive as HTML fragments
// (bold tags, stray entities) even though they are meant to be plain
// text; this mirrors the teacher's goquery-based scraper technique
// (internal/scraper.cleanContent) narrowed to a single fragment instead
// of a full article body.
func stripHTML(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return collapseWhitespace(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapseWhitespace(raw)
	}
	return collapseWhitespace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
