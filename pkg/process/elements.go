package process

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/site-spider/pkg/models"
	"github.com/Sriram-PR/site-spider/pkg/parse"
)

// ErrUnsupportedElement is returned for tags that do not carry a known reference attribute
var ErrUnsupportedElement = errors.New("unsupported element")

// ReferenceAttribute returns the attribute holding the reference for tag and whether it is mandatory
// a and link use href (required), script uses src (optional), img uses src (required)
func ReferenceAttribute(tag string) (attr string, required bool, ok bool) {
	switch strings.ToLower(tag) {
	case "a", "link":
		return "href", true, true
	case "script":
		return "src", false, true
	case "img":
		return "src", true, true
	}
	return "", false, false
}

// ExtractReference resolves the reference carried by el against base
// Returns (nil, nil) when an optional attribute is absent, e.g. an inline <script>
// Attribute-level problems come back as a models.SpiderError value
func ExtractReference(el *goquery.Selection, base *url.URL) (*url.URL, error) {
	tag := goquery.NodeName(el)
	attr, required, ok := ReferenceAttribute(tag)
	if !ok {
		return nil, fmt.Errorf("%w: <%s>", ErrUnsupportedElement, tag)
	}

	value, exists := el.Attr(attr)
	if !exists {
		if required {
			return nil, models.SpiderError{
				Kind:       models.MissingAttribute,
				SourcePage: base.String(),
				Attribute:  attr,
				HTML:       ElementHTML(el),
			}
		}
		return nil, nil
	}

	if value == "" {
		return nil, models.SpiderError{
			Kind:       models.EmptyAttribute,
			SourcePage: base.String(),
			Attribute:  attr,
			HTML:       ElementHTML(el),
		}
	}

	resolved, err := parse.Resolve(base, value)
	if err != nil {
		return nil, models.SpiderError{
			Kind:       models.InvalidURL,
			SourcePage: base.String(),
			TargetPage: value,
			HTML:       ElementHTML(el),
		}
	}
	return resolved, nil
}

// IsEmptyScript reports whether el has no inline content beyond whitespace
func IsEmptyScript(el *goquery.Selection) bool {
	inner, err := el.Html()
	if err != nil {
		return false
	}
	return strings.TrimSpace(inner) == ""
}

// ElementHTML returns the outer HTML of el for diagnostics
func ElementHTML(el *goquery.Selection) string {
	html, err := goquery.OuterHtml(el)
	if err != nil {
		return "<" + goquery.NodeName(el) + ">"
	}
	return html
}

// ExtractTitle returns the trimmed text of the first element matching m
// ok is false when no element matches
func ExtractTitle(doc *goquery.Document, m goquery.Matcher) (title string, ok bool) {
	sel := doc.FindMatcher(m).First()
	if sel.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(sel.Text()), true
}
