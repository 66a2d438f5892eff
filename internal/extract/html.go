package extract

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
)

var hiddenField = regexp.MustCompile(`(?i)<input[^>]*type="hidden"[^>]*\bname="([^"]+)"[^>]*\bvalue="([^"]*)"`)

// HiddenFields collects the name/value pairs of every hidden input in text.
// Later duplicates overwrite earlier ones.
func HiddenFields(text string) url.Values {
	form := url.Values{}
	for _, m := range hiddenField.FindAllStringSubmatch(text, -1) {
		form.Set(m[1], html.UnescapeString(m[2]))
	}
	return form
}

// Unescape decodes HTML entities.
func Unescape(s string) string {
	return html.UnescapeString(s)
}

// Rot13 rotates ASCII letters by 13 places and leaves everything else.
func Rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		}
		return r
	}, s)
}

var (
	blankRuns  = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	emptyLines = regexp.MustCompile(`\n{2,}`)
)

// CleanHTML renders an HTML fragment as plain text. Paragraphs start with
// "** ", list items with " - ", line breaks and headings become newlines
// and images become "[img alt]".
func CleanHTML(fragment string) string {
	fragment = strings.NewReplacer("\r", " ", "\n", " ").Replace(fragment)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var b strings.Builder
	for _, n := range doc.Find("body").Nodes {
		renderText(&b, n)
	}

	lines := strings.Split(b.String(), "\n")
	kept := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(blankRuns.ReplaceAllString(l, " "))
		if l != "" {
			kept = append(kept, l)
		}
	}
	return emptyLines.ReplaceAllString(strings.Join(kept, "\n"), "\n")
}

func renderText(b *strings.Builder, n *xhtml.Node) {
	switch n.Type {
	case xhtml.TextNode:
		b.WriteString(n.Data)
		return
	case xhtml.ElementNode:
		switch n.Data {
		case "script", "style":
			return
		case "p":
			b.WriteString("\n** ")
		case "br":
			b.WriteString("\n")
		case "li":
			b.WriteString("\n - ")
		case "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n")
			defer b.WriteString("\n")
		case "img":
			if alt := attr(n, "alt"); alt != "" {
				b.WriteString("[img " + alt + "]")
			} else {
				b.WriteString("[img]")
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(b, c)
	}
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
