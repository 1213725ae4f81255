// Package normalizer converts help-center article HTML into the Markdown form that is
// stored, fingerprinted and uploaded.
package normalizer

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"

	"kbsync/internal/formatter"
)

// Navigation and aside containers are removed before conversion. The match is
// non-greedy over a single span, so nested containers of the same tag are not
// handled.
var (
	navPattern   = regexp.MustCompile(`(?is)<nav\b.*?</nav>`)
	asidePattern = regexp.MustCompile(`(?is)<aside\b.*?</aside>`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

// Class prefixes that carry a code block language.
var languagePrefixes = []string{"language-", "lang-"}

// Normalizer turns raw article HTML into normalized Markdown. It is safe for
// sequential reuse across articles; the output is a deterministic function of the input.
type Normalizer struct {
	converter *md.Converter
}

// New creates a normalizer with links, images, emphasis and headings preserved
// and no line wrapping. Tables and strikethrough are rendered in GitHub flavor.
func New() *Normalizer {
	opts := &md.Options{
		HeadingStyle:     "atx",
		CodeBlockStyle:   "fenced",
		Fence:            "```",
		BulletListMarker: "-",
		EmDelimiter:      "*",
		StrongDelimiter:  "**",
		LinkStyle:        "inlined",
	}

	conv := md.NewConverter("", true, opts)
	conv.Use(plugin.Table(), plugin.Strikethrough(""))
	conv.AddRules(md.Rule{
		Filter:      []string{"pre"},
		Replacement: fencedCode,
	})

	return &Normalizer{converter: conv}
}

// Normalize strips navigation and aside markup, converts the rest to Markdown,
// aligns table columns and collapses runs of three or more newlines into one blank line.
func (n *Normalizer) Normalize(html string) (string, error) {
	stripped := navPattern.ReplaceAllString(html, "")
	stripped = asidePattern.ReplaceAllString(stripped, "")

	markdown, err := n.converter.ConvertString(stripped)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}

	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	markdown = formatter.AlignTables(markdown)
	markdown = blankLines.ReplaceAllString(markdown, "\n\n")

	return strings.TrimSpace(markdown), nil
}

// fencedCode renders a <pre> block as a fenced code block, taking the language from
// a language-/lang- class on the inner <code> or on the <pre> itself.
func fencedCode(_ string, selec *goquery.Selection, opts *md.Options) *string {
	code := selec.Find("code").First()
	if code.Length() == 0 {
		code = selec
	}

	lang := codeLanguage(code)
	if lang == "" {
		lang = codeLanguage(selec)
	}

	fence := opts.Fence
	if fence == "" {
		fence = "```"
	}

	text := strings.TrimRight(code.Text(), "\n")

	// A fence inside the code would close the block early.
	for strings.Contains(text, fence) {
		fence += "`"
	}

	return md.String("\n\n" + fence + lang + "\n" + text + "\n" + fence + "\n\n")
}

func codeLanguage(s *goquery.Selection) string {
	class, ok := s.Attr("class")
	if !ok {
		return ""
	}

	for _, c := range strings.Fields(class) {
		for _, prefix := range languagePrefixes {
			if strings.HasPrefix(c, prefix) {
				return strings.TrimPrefix(c, prefix)
			}
		}
	}

	return ""
}
