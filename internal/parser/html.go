package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	spaceRegex = regexp.MustCompile(`[^\S\n]+`)
	// zero-width spaces, soft hyphens and other invisible characters common in marketing mail
	invisibleRegex = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{034F}\x{061C}\x{180E}\x{2060}-\x{2064}]+`)
)

// HTMLToText converts an HTML body to plain text, one block element per line.
// Links keep their target next to the anchor text.
func HTMLToText(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, head, title, meta, link, noscript").Remove()

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		if strings.HasPrefix(href, "http") && text != "" && text != href {
			s.SetText(text + " (" + href + ")")
		}
	})

	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	return normalize(doc.Text()), nil
}

// BodyText picks the plain text part and falls back to the converted HTML part
func BodyText(plain, html string) string {
	if text := normalize(plain); text != "" {
		return text
	}
	text, err := HTMLToText(html)
	if err != nil {
		return ""
	}
	return text
}

// normalize drops invisible characters and blank lines and collapses runs of spaces
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = invisibleRegex.ReplaceAllString(text, "")
	text = spaceRegex.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	clean := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			clean = append(clean, line)
		}
	}
	return strings.Join(clean, "\n")
}
