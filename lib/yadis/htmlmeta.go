// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package yadis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLMode selects how HTML pages are turned into a tree before the head
// is searched for a location signal.
type HTMLMode int

const (
	// HTMLStrict builds the tree exactly as tagged; a missing head or
	// several heads are errors.
	HTMLStrict HTMLMode = iota
	// HTMLRepair builds the tree with the HTML5 parsing algorithm, which
	// inserts a missing head and merges duplicate ones.
	HTMLRepair
)

func (m HTMLMode) String() string {
	switch m {
	case HTMLStrict:
		return "strict"
	case HTMLRepair:
		return "repair"
	default:
		return fmt.Sprintf("HTMLMode(%d)", int(m))
	}
}

func (m *HTMLMode) UnmarshalText(bs []byte) error {
	switch strings.ToLower(string(bs)) {
	case "strict", "":
		*m = HTMLStrict
	case "repair":
		*m = HTMLRepair
	default:
		return fmt.Errorf("unknown HTML mode %q", bs)
	}
	return nil
}

const xrdsLocationHeader = "X-XRDS-Location"

var (
	errNoHead    = errors.New("no head element")
	errManyHeads = errors.New("more than one head element")
)

// parseHTML returns the document tree of body according to mode.
// A body of only white space has nothing to repair and fails in both
// modes.
func parseHTML(body []byte, mode HTMLMode) (*html.Node, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, newError(CodeHTMLMetaInvalidResponse, nil, "empty HTML document")
	}
	if mode == HTMLRepair {
		return html.Parse(bytes.NewReader(body))
	}
	return parseStrictTree(body)
}

// parseStrictTree builds a tree from the token stream without any of the
// HTML5 insertion rules: elements nest as tagged, end tags close back to
// the matching open element and stray end tags are dropped.
func parseStrictTree(body []byte) (*html.Node, error) {
	z := html.NewTokenizer(bytes.NewReader(body))
	doc := &html.Node{Type: html.DocumentNode}
	stack := []*html.Node{doc}

	for {
		tt := z.Next()
		top := stack[len(stack)-1]

		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, err
			}
			return doc, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			n := &html.Node{
				Type:     html.ElementNode,
				Data:     tok.Data,
				DataAtom: tok.DataAtom,
				Attr:     tok.Attr,
			}
			top.AppendChild(n)
			if tt == html.StartTagToken && !isVoidElement(tok.DataAtom) {
				stack = append(stack, n)
			}

		case html.EndTagToken:
			tok := z.Token()
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].Data == tok.Data {
					stack = stack[:i]
					break
				}
			}

		case html.TextToken:
			top.AppendChild(&html.Node{Type: html.TextNode, Data: string(z.Text())})

		case html.CommentToken:
			top.AppendChild(&html.Node{Type: html.CommentNode, Data: string(z.Text())})

		case html.DoctypeToken:
			doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: string(z.Text())})
		}
	}
}

func isVoidElement(a atom.Atom) bool {
	switch a {
	case atom.Area, atom.Base, atom.Br, atom.Col, atom.Embed, atom.Hr,
		atom.Img, atom.Input, atom.Link, atom.Meta, atom.Source,
		atom.Track, atom.Wbr:
		return true
	}
	return false
}

// scanHTMLMeta returns the content of the single X-XRDS-Location meta tag
// in the document head. Only a head directly under the document or its
// root html element counts, and exactly one such head must exist. Meta
// tags below a body element are ignored.
func scanHTMLMeta(doc *html.Node) (location string, found bool, err error) {
	heads := documentHeads(doc)
	switch len(heads) {
	case 0:
		return "", false, newError(CodeHTMLMetaInvalidResponse, errNoHead, "scan HTML")
	case 1:
	default:
		return "", false, newError(CodeHTMLMetaInvalidResponse, errManyHeads, "scan HTML")
	}

	var contents []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Body:
				continue
			case atom.Meta:
				if strings.EqualFold(strings.TrimSpace(attr(c, "http-equiv")), xrdsLocationHeader) {
					contents = append(contents, strings.TrimSpace(attr(c, "content")))
				}
			}
			walk(c)
		}
	}
	walk(heads[0])

	return selectUnique(contents, CodeHTMLMetaInvalidResponse, xrdsLocationHeader+" meta tags")
}

func documentHeads(doc *html.Node) []*html.Node {
	var heads []*html.Node
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Head:
			heads = append(heads, c)
		case atom.Html:
			for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
				if cc.Type == html.ElementNode && cc.DataAtom == atom.Head {
					heads = append(heads, cc)
				}
			}
		}
	}
	return heads
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
