// Package browser drives a Chrome instance via rod: it opens one
// authenticated page per class, reads poll prompts off the DOM, and clicks
// choices on behalf of the monitor core.
package browser

import (
	"strings"

	"golang.org/x/net/html"

	"pollwatch/internal/poll"
)

// PollEv DOM hooks. The response component renders the question title and
// one value/vote/undo node per option.
const (
	titleClass  = "component-response-header__title"
	optionClass = "component-response-multiple-choice__option__value"
	voteClass   = "component-response-multiple-choice__option__vote"
	undoClass   = "component-response-multiple-choice__option__undo"
)

// ExtractQuestion parses a page's HTML and returns the displayed prompt.
// ok is false when no title or no options are present, which simply means no
// multiple-choice prompt is on screen right now.
func ExtractQuestion(htmlContent string) (snap poll.QuestionSnapshot, ok bool) {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return poll.QuestionSnapshot{}, false
	}

	titles := findByClass(root, titleClass)
	if len(titles) == 0 {
		return poll.QuestionSnapshot{}, false
	}
	question := nodeText(titles[0])
	if question == "" {
		return poll.QuestionSnapshot{}, false
	}

	optionNodes := findByClass(root, optionClass)
	if len(optionNodes) == 0 {
		return poll.QuestionSnapshot{}, false
	}
	options := make([]string, 0, len(optionNodes))
	for _, n := range optionNodes {
		options = append(options, nodeText(n))
	}

	return poll.QuestionSnapshot{Question: question, Options: options}, true
}

// findByClass collects element nodes carrying the given class, in document
// order.
func findByClass(root *html.Node, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, class) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// nodeText concatenates all text beneath a node, whitespace-trimmed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
