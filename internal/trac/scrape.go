package trac

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Fact is one scraped remote observation: a page name and the highest
// version number seen for it.
type Fact struct {
	Name    string
	Version int
}

// AnchorPredicate decides whether a start tag opens the harvest region for
// version links. Predicates inspect the tag's attributes only.
type AnchorPredicate func(attrs map[string]string) bool

// AnchorID matches the region element by its id attribute.
func AnchorID(id string) AnchorPredicate {
	return func(attrs map[string]string) bool {
		return attrs["id"] == id
	}
}

// AnchorClass matches the region element by its class attribute.
func AnchorClass(class string) AnchorPredicate {
	return func(attrs map[string]string) bool {
		return attrs["class"] == class
	}
}

// Void elements never receive end tags, so they must not count toward
// nesting depth.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// linkScanState is the explicit state of the version-link scan.
type linkScanState int

const (
	seekingAnchor linkScanState = iota
	collecting
)

// ParseVersionLinks scans an HTML document for hyperlinks whose path starts
// with pathPrefix, bounded to the region opened by the first tag the anchor
// predicate matches. Each link yields a page name (the unescaped path
// remainder) and a version (the link's version query parameter, defaulting
// to 1); the maximum version per name wins. The scan terminates the moment
// nesting depth returns to the depth at which the region was entered, so
// malformed trailing markup cannot extend it.
//
// Returns a ScrapeError when the document contains no matching region.
func ParseVersionLinks(r io.Reader, anchor AnchorPredicate, pathPrefix string) ([]Fact, error) {
	if !strings.HasSuffix(pathPrefix, "/") {
		pathPrefix += "/"
	}

	z := html.NewTokenizer(r)
	state := seekingAnchor
	depth := 0
	anchorDepth := 0
	found := make(map[string]int)

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return nil, fmt.Errorf("trac: tokenizing page: %w", z.Err())
			}

			if state == seekingAnchor {
				return nil, &ScrapeError{Missing: "listing region"}
			}

			return sortedFacts(found), nil

		case html.StartTagToken:
			tok := z.Token()
			if !voidElements[tok.Data] {
				depth++
			}

			attrs := attrMap(tok)

			switch state {
			case seekingAnchor:
				if anchor(attrs) {
					state = collecting
					anchorDepth = depth
				}
			case collecting:
				collectVersionLink(attrs["href"], pathPrefix, found)
			}

		case html.SelfClosingTagToken:
			if state == collecting {
				collectVersionLink(attrMap(z.Token())["href"], pathPrefix, found)
			}

		case html.EndTagToken:
			tok := z.Token()
			if !voidElements[tok.Data] {
				depth--
			}

			if state == collecting && depth < anchorDepth {
				return sortedFacts(found), nil
			}
		}
	}
}

// collectVersionLink parses one href into the name→version map.
func collectVersionLink(href, pathPrefix string, found map[string]int) {
	if href == "" || !strings.HasPrefix(href, pathPrefix) {
		return
	}

	u, err := url.Parse(href)
	if err != nil {
		return
	}

	name, err := url.PathUnescape(u.Path[len(pathPrefix):])
	if err != nil || name == "" {
		return
	}

	version := 1
	if v, vErr := strconv.Atoi(u.Query().Get("version")); vErr == nil && v > version {
		version = v
	}

	if version > found[name] {
		found[name] = version
	}
}

// sortedFacts flattens the name→version map into a deterministic slice.
func sortedFacts(found map[string]int) []Fact {
	facts := make([]Fact, 0, len(found))
	for name, version := range found {
		facts = append(facts, Fact{Name: name, Version: version})
	}

	sort.Slice(facts, func(i, j int) bool { return facts[i].Name < facts[j].Name })

	return facts
}

// formScanState is the explicit state of the form-field scan.
type formScanState int

const (
	seekingForm formScanState = iota
	inForm
	inTextarea
)

// ParseFormFields scans an HTML document for the form with the given id and
// records every input and textarea field's current value, so that unrelated
// hidden fields (anti-forgery tokens among them) survive a round trip.
// A textarea's value arrives as the text following its start tag. Fields
// named in exclude are dropped because action buttons must never be submitted
// back. The scan stops at the form's closing tag.
//
// Returns a ScrapeError when the document contains no matching form.
func ParseFormFields(r io.Reader, formID string, exclude map[string]bool) (url.Values, error) {
	z := html.NewTokenizer(r)
	state := seekingForm
	fields := url.Values{}

	var textareaName string

	var textareaText strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return nil, fmt.Errorf("trac: tokenizing form page: %w", z.Err())
			}

			if state == seekingForm {
				return nil, &ScrapeError{Missing: fmt.Sprintf("form %q", formID)}
			}

			return fields, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			attrs := attrMap(tok)

			switch state {
			case seekingForm:
				if tok.Data == "form" && attrs["id"] == formID {
					state = inForm
				}
			case inForm:
				name := attrs["name"]
				if name == "" || exclude[name] {
					continue
				}

				switch tok.Data {
				case "input":
					fields.Set(name, attrs["value"])
				case "textarea":
					state = inTextarea
					textareaName = name
					textareaText.Reset()
				}
			}

		case html.TextToken:
			if state == inTextarea {
				textareaText.Write(z.Text())
			}

		case html.EndTagToken:
			tok := z.Token()

			switch {
			case state == inTextarea && tok.Data == "textarea":
				fields.Set(textareaName, textareaText.String())
				state = inForm
			case state == inForm && tok.Data == "form":
				return fields, nil
			}
		}
	}
}

// attrMap flattens a token's attributes into a lookup map.
func attrMap(tok html.Token) map[string]string {
	if len(tok.Attr) == 0 {
		return nil
	}

	attrs := make(map[string]string, len(tok.Attr))
	for _, a := range tok.Attr {
		attrs[a.Key] = a.Val
	}

	return attrs
}
