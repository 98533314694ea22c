// Package mailbody turns a mail payload tree into plain text for the model.
package mailbody

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

const (
	mimePlain = "text/plain"
	mimeHTML  = "text/html"
)

// Extract returns the human-readable text of a payload tree, trimmed.
// Parts are visited depth-first and joined in traversal order. Parts that
// cannot be decoded contribute nothing, so an empty result means the message
// is unreadable.
func Extract(root domain.Part) string {
	if len(root.Parts) == 0 && root.MimeType == "" {
		root.MimeType = mimePlain
	}
	return strings.TrimSpace(collect(root))
}

// Truncate returns at most max runes of s. A non-positive max returns s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func collect(p domain.Part) string {
	if len(p.Parts) > 0 {
		texts := make([]string, 0, len(p.Parts))
		for _, child := range p.Parts {
			if t := collect(child); strings.TrimSpace(t) != "" {
				texts = append(texts, t)
			}
		}
		return strings.Join(texts, "\n")
	}

	switch mediaType(p.MimeType) {
	case mimePlain:
		text, ok := decode(p)
		if !ok {
			return ""
		}
		return text
	case mimeHTML:
		text, ok := decode(p)
		if !ok {
			return ""
		}
		return htmlToText(text)
	}
	return ""
}

func mediaType(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// decode reverses the provider's base64url transfer encoding and converts the
// declared charset to UTF-8.
func decode(p domain.Part) (string, bool) {
	if p.Data == "" {
		return "", false
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(p.Data, "="))
	if err != nil {
		return "", false
	}

	label := strings.ToLower(strings.TrimSpace(p.Charset))
	if label != "" && label != "utf-8" && label != "utf8" && label != "us-ascii" {
		r, err := charset.NewReaderLabel(label, bytes.NewReader(raw))
		if err != nil {
			return "", false
		}
		if raw, err = io.ReadAll(r); err != nil {
			return "", false
		}
	}

	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

var skipped = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

var blocks = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Table: true, atom.Td: true, atom.Th: true, atom.Tr: true,
	atom.Ul: true,
}

// htmlToText renders markup as text with one line per block element.
func htmlToText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}

	lines := strings.Split(render(doc), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func render(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.CommentNode, html.DoctypeNode:
		return ""
	case html.ElementNode:
		if skipped[n.DataAtom] {
			return ""
		}
	}

	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(render(c))
	}

	if n.Type == html.ElementNode && blocks[n.DataAtom] {
		return "\n" + b.String() + "\n"
	}
	return b.String()
}
