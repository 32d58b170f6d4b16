package service

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"competitive-intel-agent/internal/entity"
)

// ReportSection is one competitor report inside a rendered document.
type ReportSection struct {
	CompetitorName string
	Markdown       string
}

// DocumentRenderer converts research markdown into a self-contained,
// print-paginated HTML document: cover page, table of contents with page
// references, running header and footer, and page-break control so a
// browser's print-to-PDF produces a polished report.
type DocumentRenderer struct {
	md goldmark.Markdown
}

// NewDocumentRenderer creates a new DocumentRenderer.
func NewDocumentRenderer() *DocumentRenderer {
	return &DocumentRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
		),
	}
}

// Render produces the document for a single competitor report.
func (r *DocumentRenderer) Render(companyName string, section ReportSection) ([]byte, error) {
	return r.RenderCombined(companyName, []ReportSection{section})
}

// RenderCombined produces one document holding multiple competitor reports,
// each starting on a fresh page, under a shared cover and table of contents.
func (r *DocumentRenderer) RenderCombined(companyName string, sections []ReportSection) ([]byte, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("no report sections to render")
	}

	var bodies []string
	var tocEntries []tocEntry
	for i, s := range sections {
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(s.Markdown), &buf); err != nil {
			return nil, fmt.Errorf("failed to convert markdown for %s: %w", s.CompetitorName, err)
		}
		sectionID := fmt.Sprintf("report-%d", i+1)
		body, headings := collectHeadings(buf.String(), sectionID)
		tocEntries = append(tocEntries, tocEntry{
			ID:    sectionID,
			Title: s.CompetitorName,
			Subs:  headings,
		})
		bodies = append(bodies, fmt.Sprintf(
			`<section class="report" id=%q><h1 class="report-title">%s</h1>%s</section>`,
			sectionID, html.EscapeString(s.CompetitorName), body))
	}

	title := "Deep Research Report"
	if len(sections) > 1 {
		title = "Combined Deep Research Report"
	}

	var doc bytes.Buffer
	doc.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&doc, "<title>%s</title>\n", html.EscapeString(title))
	doc.WriteString("<style>\n")
	doc.WriteString(documentStyle)
	doc.WriteString("</style>\n</head>\n<body>\n")

	fmt.Fprintf(&doc, coverTemplate,
		html.EscapeString(title),
		html.EscapeString(companyName),
		time.Now().Format("January 2, 2006"))

	doc.WriteString(`<nav class="toc"><h1>Table of Contents</h1><ol>`)
	for _, e := range tocEntries {
		fmt.Fprintf(&doc, `<li><a href="#%s">%s</a>`, e.ID, html.EscapeString(e.Title))
		if len(e.Subs) > 0 {
			doc.WriteString("<ol>")
			for _, sub := range e.Subs {
				fmt.Fprintf(&doc, `<li><a href="#%s">%s</a></li>`, sub.ID, html.EscapeString(sub.Title))
			}
			doc.WriteString("</ol>")
		}
		doc.WriteString("</li>")
	}
	doc.WriteString("</ol></nav>\n")

	for _, b := range bodies {
		doc.WriteString(b)
		doc.WriteString("\n")
	}
	doc.WriteString("</body>\n</html>\n")

	return doc.Bytes(), nil
}

type tocEntry struct {
	ID    string
	Title string
	Subs  []tocEntry
}

var headingRe = regexp.MustCompile(`(?s)<h([12])([^>]*)>(.*?)</h[12]>`)
var idAttrRe = regexp.MustCompile(`id="([^"]+)"`)
var tagRe = regexp.MustCompile(`<[^>]+>`)

// collectHeadings rewrites heading IDs to be unique within the document
// (prefixed by the section ID) and returns the top-level headings for the
// table of contents.
func collectHeadings(body, sectionID string) (string, []tocEntry) {
	var headings []tocEntry
	out := headingRe.ReplaceAllStringFunc(body, func(match string) string {
		parts := headingRe.FindStringSubmatch(match)
		level, attrs, inner := parts[1], parts[2], parts[3]
		title := strings.TrimSpace(tagRe.ReplaceAllString(inner, ""))

		id := fmt.Sprintf("%s-h-%d", sectionID, len(headings)+1)
		if m := idAttrRe.FindStringSubmatch(attrs); m != nil {
			id = sectionID + "-" + m[1]
			attrs = idAttrRe.ReplaceAllString(attrs, fmt.Sprintf("id=%q", id))
		} else {
			attrs = fmt.Sprintf(` id=%q%s`, id, attrs)
		}
		headings = append(headings, tocEntry{ID: id, Title: html.UnescapeString(title)})
		return fmt.Sprintf("<h%s%s>%s</h%s>", level, attrs, inner, level)
	})
	return out, headings
}

const coverTemplate = `<section class="cover">
<div class="cover-inner">
<h1>%s</h1>
<p class="cover-company">%s</p>
<p class="cover-date">%s</p>
</div>
</section>
`

const documentStyle = `
@page {
  size: A4;
  margin: 2.2cm 1.8cm;
  @top-center { content: "Competitive Intelligence Report"; font-size: 9pt; color: #666; }
  @bottom-center { content: counter(page) " / " counter(pages); font-size: 9pt; color: #666; }
}
@page cover { @top-center { content: none; } @bottom-center { content: none; } }

html { font-family: Georgia, "Times New Roman", serif; font-size: 11pt; line-height: 1.55; color: #1a1a1a; }
body { margin: 0; }

.cover { page: cover; page-break-after: always; height: 90vh; display: flex; align-items: center; justify-content: center; text-align: center; }
.cover h1 { font-size: 26pt; margin-bottom: 0.2em; }
.cover-company { font-size: 16pt; color: #333; }
.cover-date { font-size: 11pt; color: #777; }

.toc { page-break-after: always; }
.toc h1 { font-size: 18pt; border-bottom: 2px solid #1a1a1a; padding-bottom: 0.3em; }
.toc ol { list-style: none; padding-left: 0; counter-reset: toc1; }
.toc ol ol { padding-left: 1.4em; }
.toc a { text-decoration: none; color: inherit; display: flex; }
.toc a::after { content: leader(". ") target-counter(attr(href url), page); margin-left: auto; }

.report { page-break-before: always; }
.report-title { font-size: 20pt; border-bottom: 3px solid #1a1a1a; padding-bottom: 0.3em; }
h1, h2, h3 { page-break-after: avoid; font-family: Helvetica, Arial, sans-serif; }
h2 { font-size: 14pt; margin-top: 1.4em; }
h3 { font-size: 12pt; }

p { orphans: 3; widows: 3; }
pre, table, figure, img, blockquote { page-break-inside: avoid; }
pre { background: #f5f5f5; padding: 0.7em; font-size: 9pt; overflow-x: auto; }
code { font-family: "Courier New", monospace; font-size: 0.92em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #bbb; padding: 0.35em 0.6em; text-align: left; }
th { background: #eee; }
blockquote { border-left: 3px solid #999; margin-left: 0; padding-left: 1em; color: #444; }
`

// sectionFromCompetitor adapts a competitor record into a report section.
func sectionFromCompetitor(c entity.Competitor) ReportSection {
	return ReportSection{CompetitorName: c.Name, Markdown: c.DeepResearchMarkdown}
}
