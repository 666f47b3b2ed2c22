package crawler

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is the text and outgoing links of a parsed HTML page.
type Document struct {
	Title    string
	Headings []string
	Body     string
	Links    []string
}

// Text joins title, h1-h3 headings and body text with newlines, skipping
// empty parts.
func (d Document) Text() string {
	parts := make([]string, 0, 3)
	if d.Title != "" {
		parts = append(parts, d.Title)
	}
	if len(d.Headings) > 0 {
		parts = append(parts, strings.Join(d.Headings, "\n"))
	}
	if d.Body != "" {
		parts = append(parts, d.Body)
	}
	return strings.Join(parts, "\n")
}

// Parse extracts a Document from raw HTML. Link hrefs are returned as
// written, unresolved.
func Parse(data []byte) (Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return Document{}, err
	}
	var doc Document
	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if doc.Title == "" {
					doc.Title = collapse(nodeText(n))
				}
				return
			case atom.H1, atom.H2, atom.H3:
				if t := collapse(nodeText(n)); t != "" {
					doc.Headings = append(doc.Headings, t)
				}
			case atom.Body:
				if body == nil {
					body = n
				}
			case atom.A:
				if href, ok := attr(n, "href"); ok {
					doc.Links = append(doc.Links, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	if body != nil {
		doc.Body = collapse(nodeText(body))
	}
	return doc, nil
}

// ExtractText returns the visible text of an HTML document in the same
// shape the crawler stores for each page.
func ExtractText(data []byte) (string, error) {
	doc, err := Parse(data)
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

// nodeText concatenates the text below n, skipping non-visible elements.
// Text nodes are separated by a space so adjacent blocks do not merge.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg:
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
