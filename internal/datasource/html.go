package datasource

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// extractText returns the text content of n with runs of whitespace
// collapsed to single spaces.
func extractText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			buf.WriteString(node.Data)
			buf.WriteByte(' ')
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// ownText returns the first non-blank text child of n, ignoring descendants.
func ownText(n *html.Node) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if t := strings.TrimSpace(c.Data); t != "" {
				return t
			}
		}
	}
	return ""
}

func hasClass(n *html.Node, className string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, class := range strings.Fields(attr.Val) {
				if class == className {
					return true
				}
			}
		}
	}
	return false
}

func getAttribute(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func isElement(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func elementWithClass(tag, className string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag && hasClass(n, className)
	}
}

// findAll returns every node under n matching predicate, in document order.
func findAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			results = append(results, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return results
}

func findFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	var result *html.Node
	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if predicate(node) {
			result = node
			return true
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(n)
	return result
}

// tableGrid flattens a table into rows of cell texts, copying cells that
// span several rows or columns into each position they cover. Rows made of
// th cells are returned like any other row.
func tableGrid(table *html.Node) [][]string {
	type pending struct {
		text string
		left int
	}
	var grid [][]string
	carry := map[int]*pending{}

	for _, tr := range findAll(table, isElement("tr")) {
		var row []string
		col := 0
		fill := func() {
			for {
				p, ok := carry[col]
				if !ok || p.left == 0 {
					return
				}
				row = append(row, p.text)
				p.left--
				col++
			}
		}

		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
				continue
			}
			fill()
			text := extractText(c)
			rowspan := spanAttr(c, "rowspan")
			colspan := spanAttr(c, "colspan")
			for i := 0; i < colspan; i++ {
				row = append(row, text)
				if rowspan > 1 {
					carry[col] = &pending{text: text, left: rowspan - 1}
				}
				col++
			}
		}
		fill()

		if len(row) > 0 {
			grid = append(grid, row)
		}
	}
	return grid
}

func spanAttr(n *html.Node, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(getAttribute(n, key)))
	if err != nil || v < 1 {
		return 1
	}
	return v
}
