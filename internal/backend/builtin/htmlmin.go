package builtin

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"regexp"

	"golang.org/x/net/html"

	"github.com/conneroisu/assetc/internal/backend"
)

// HTMLMin serves ".min.html" requests: the page is rendered by gotmpl and
// then minified. Comments are dropped unless the keep_comments option is
// set. Whitespace runs collapse to one space, and whitespace-only text next
// to a block-level tag is removed. Content of pre, textarea, script and
// style elements is left alone.
func HTMLMin() *backend.Descriptor {
	return &backend.Descriptor{
		ID:        "htmlmin",
		Name:      "HTML minifier",
		Match:     regexp.MustCompile(`(?i)\.min\.html?$`),
		SourceExt: ".tmpl",
		Wraps:     "gotmpl",
		Compiler: backend.CompileFunc(func(_ context.Context, src backend.Source, opts backend.Options) ([]byte, error) {
			return MinifyHTML(src.Text, opts.Bool("keep_comments"))
		}),
	}
}

var verbatimElements = map[string]bool{
	"pre":      true,
	"textarea": true,
	"script":   true,
	"style":    true,
}

// blockElements are the tags whitespace-only text around them can be removed
// for without changing the rendering.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "base": true,
	"blockquote": true, "body": true, "dd": true, "div": true, "dl": true,
	"dt": true, "fieldset": true, "figcaption": true, "figure": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "head": true, "header": true,
	"hr": true, "html": true, "li": true, "link": true, "main": true,
	"meta": true, "nav": true, "ol": true, "option": true, "p": true,
	"pre": true, "script": true, "section": true, "style": true,
	"table": true, "tbody": true, "td": true, "tfoot": true, "th": true,
	"thead": true, "title": true, "tr": true, "ul": true,
}

// MinifyHTML minifies an HTML document token by token.
func MinifyHTML(in []byte, keepComments bool) ([]byte, error) {
	z := html.NewTokenizer(bytes.NewReader(in))
	var out bytes.Buffer
	verbatim := 0
	// afterBlock is true at the start and after a block-level tag.
	// pending holds whitespace-only text until the next tag decides it.
	afterBlock, pending := true, false

	tag := func(block bool) {
		if pending && !block {
			out.WriteByte(' ')
		}
		pending = false
		afterBlock = block
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !stderrors.Is(err, io.EOF) {
				return nil, fmt.Errorf("tokenize html: %w", err)
			}
			return out.Bytes(), nil
		case html.CommentToken:
			if keepComments {
				out.Write(z.Raw())
			}
		case html.TextToken:
			raw := z.Raw()
			if verbatim > 0 {
				out.Write(raw)
				continue
			}
			if len(bytes.TrimSpace(raw)) == 0 {
				pending = !afterBlock
				continue
			}
			tag(false)
			out.Write(collapseSpace(raw))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag(blockElements[string(name)])
			out.Write(z.Raw())
			if tt == html.StartTagToken && verbatimElements[string(name)] {
				verbatim++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if verbatim == 0 {
				tag(blockElements[string(name)])
			}
			out.Write(z.Raw())
			if verbatimElements[string(name)] && verbatim > 0 {
				verbatim--
				afterBlock = blockElements[string(name)]
			}
		default:
			tag(true)
			out.Write(z.Raw())
		}
	}
}

// collapseSpace folds whitespace runs into a single space.
func collapseSpace(text []byte) []byte {
	out := make([]byte, 0, len(text))
	space := false
	for _, b := range text {
		switch b {
		case ' ', '\t', '\n', '\r', '\f':
			if !space {
				out = append(out, ' ')
			}
			space = true
		default:
			out = append(out, b)
			space = false
		}
	}
	return out
}
