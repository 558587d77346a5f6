package services

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Node is a read-only element of a parsed page: enough of a DOM for the
// extraction rules to run without a live browser.
type Node interface {
	// Find returns the descendants matching a CSS selector, in document order.
	Find(selector string) []Node
	// Text returns the concatenated text content.
	Text() string
	// Attr returns an attribute value and whether it is present.
	Attr(name string) (string, bool)
}

type selectionNode struct {
	sel *goquery.Selection
}

// ParseHTML parses an HTML document into a Node tree.
func ParseHTML(html string) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("extractor: parse html: %w", err)
	}
	return selectionNode{sel: doc.Selection}, nil
}

func (n selectionNode) Find(selector string) []Node {
	found := n.sel.Find(selector)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, selectionNode{sel: s})
	})
	return nodes
}

func (n selectionNode) Text() string {
	return n.sel.Text()
}

func (n selectionNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}
