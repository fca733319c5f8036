package decision

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Page is a fetched HTML page that supports CSS and XPath selection.
type Page struct {
	URL string
	doc *goquery.Document
}

// NewPage parses body as HTML.
func NewPage(rawURL string, body []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", rawURL, err)
	}
	return &Page{URL: rawURL, doc: doc}, nil
}

// Document exposes the goquery document for CSS selection.
func (p *Page) Document() *goquery.Document {
	return p.doc
}

// OwnText returns the trimmed direct text of the first element matching selector.
func (p *Page) OwnText(selector string) string {
	return strings.Join(directTexts(p.doc.Find(selector).First()), " ")
}

// OwnTexts returns the direct text nodes of every element matching selector,
// trimmed and in document order.
func (p *Page) OwnTexts(selector string) []string {
	return directTexts(p.doc.Find(selector))
}

// XPathTexts evaluates expr against the document and returns the trimmed,
// non-empty text of each result node in document order.
func (p *Page) XPathTexts(expr string) ([]string, error) {
	if len(p.doc.Nodes) == 0 {
		return []string{}, nil
	}
	nodes, err := htmlquery.QueryAll(p.doc.Nodes[0], expr)
	if err != nil {
		return nil, fmt.Errorf("evaluate xpath %s: %w", expr, err)
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		var text string
		if n.Type == html.TextNode {
			text = n.Data
		} else {
			text = htmlquery.InnerText(n)
		}
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

// FirstXPathText returns the first XPathTexts result, or "" if there is none.
func (p *Page) FirstXPathText(expr string) (string, error) {
	texts, err := p.XPathTexts(expr)
	if err != nil || len(texts) == 0 {
		return "", err
	}
	return texts[0], nil
}

func directTexts(sel *goquery.Selection) []string {
	out := []string{}
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.TextNode {
				continue
			}
			if text := strings.TrimSpace(c.Data); text != "" {
				out = append(out, text)
			}
		}
	}
	return out
}
