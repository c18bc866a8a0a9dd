// Package extractor pulls app-metadata fields out of rendered profile pages.
//
// Extraction is label-anchored: each field is located by finding the span or
// anchor element whose text equals a known label, then walking forward in
// document order a fixed number of matching tags. The page layouts place the
// value either inside that target element or in its next sibling.
package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/appmeta-scraper/internal/scrape"
)

// fieldRule describes how to reach one field's value from its label element.
type fieldRule struct {
	label   string
	nextTag string
	steps   int
	sibling bool // value lives in the target's next sibling element
	assign  func(*scrape.Record, string)
}

var fieldRules = []fieldRule{
	{"Full Profile →", "div", 1, true, func(r *scrape.Record, v string) { r.Name = v }},
	{"Estimated Downloads", "div", 2, false, func(r *scrape.Record, v string) { r.Downloads = v }},
	{"Estimated Net Revenue", "div", 2, false, func(r *scrape.Record, v string) { r.Revenue = v }},
	{"Monetization", "div", 1, false, func(r *scrape.Record, v string) { r.Monetization = v }},
	{"Rating", "span", 1, true, func(r *scrape.Record, v string) { r.Rating = v }},
	{"Released", "span", 1, false, func(r *scrape.Record, v string) { r.ReleaseDate = v }},
	{"Last updated", "span", 1, false, func(r *scrape.Record, v string) { r.LastUpdate = v }},
	{"iOS App Store ID", "div", 1, false, func(r *scrape.Record, v string) { r.AppID = v }},
}

// AppProfile extracts metadata records from app intelligence profile pages.
// It is a pure function of the page content and implements scrape.Extractor.
type AppProfile struct{}

// New returns an AppProfile extractor.
func New() *AppProfile {
	return &AppProfile{}
}

// Extract parses the rendered page and applies every field rule. A page
// where no label matches at all returns scrape.ErrNoData; a page where only
// some labels match is a success with the missing fields left absent.
func (e *AppProfile) Extract(page string) (scrape.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return scrape.Record{}, fmt.Errorf("parse page: %w", err)
	}

	labels := doc.Find("span, a")

	var rec scrape.Record
	for _, rule := range fieldRules {
		value, ok := applyRule(labels, rule)
		if ok {
			rule.assign(&rec, value)
		}
	}
	if rec.Empty() {
		return scrape.Record{}, scrape.ErrNoData
	}
	return rec, nil
}

func applyRule(labels *goquery.Selection, rule fieldRule) (string, bool) {
	label := findLabelNode(labels, rule.label)
	if label == nil {
		return "", false
	}

	target := label
	for i := 0; i < rule.steps; i++ {
		target = findNextTag(target, rule.nextTag)
		if target == nil {
			return "", false
		}
	}
	if rule.sibling {
		target = nextSiblingElement(target)
		if target == nil {
			return "", false
		}
	}

	value := strings.Trim(strings.TrimSpace(nodeText(target)), "$()")
	if value == "" {
		return "", false
	}
	return value, true
}

// findLabelNode returns the first span/a whose own text (direct child text
// nodes, not descendants) equals the label.
func findLabelNode(labels *goquery.Selection, label string) *html.Node {
	var found *html.Node
	labels.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		n := sel.Get(0)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode && strings.TrimSpace(c.Data) == label {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// findNextTag walks document order (pre-order) forward from n and returns
// the next element with the given tag name.
func findNextTag(n *html.Node, tag string) *html.Node {
	for cur := nextInDocument(n); cur != nil; cur = nextInDocument(cur) {
		if cur.Type == html.ElementNode && cur.Data == tag {
			return cur
		}
	}
	return nil
}

func nextInDocument(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.NextSibling != nil {
			return cur.NextSibling
		}
	}
	return nil
}

func nextSiblingElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
