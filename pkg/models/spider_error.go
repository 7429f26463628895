package models

import "fmt"

// SpiderError is one anomaly attributed to a page
// Which optional fields are set depends on Kind, see Message
type SpiderError struct {
	Kind       ErrorKind `json:"kind" yaml:"kind"`
	SourcePage string    `json:"source_page,omitempty" yaml:"source_page,omitempty"` // Page containing the problem
	TargetPage string    `json:"target_page,omitempty" yaml:"target_page,omitempty"` // URL the problem refers to
	HTTPStatus int       `json:"http_status,omitempty" yaml:"http_status,omitempty"`
	HTML       string    `json:"html,omitempty" yaml:"html,omitempty"`           // Outer HTML of the offending element
	Attribute  string    `json:"attribute,omitempty" yaml:"attribute,omitempty"` // Attribute name for attribute-level problems
}

// ErrFailedCrawl is returned to callers when a crawl found unsuppressed problems
var ErrFailedCrawl error = SpiderError{Kind: FailedCrawl}

// Error implements the error interface
func (e SpiderError) Error() string {
	return e.Kind.String() + ": " + e.Message()
}

// Message renders the human readable description of the anomaly
// It panics when a field required by the kind is missing, which is a programming error
func (e SpiderError) Message() string {
	switch e.Kind {
	case InvalidURL:
		e.require("SourcePage", e.SourcePage != "")
		e.require("TargetPage", e.TargetPage != "")
		e.require("HTML", e.HTML != "")
		return fmt.Sprintf("page %s contains an invalid URL %q in element %s", e.SourcePage, e.TargetPage, e.HTML)
	case HTTPError:
		e.require("HTTPStatus", e.HTTPStatus != 0)
		e.require("TargetPage", e.TargetPage != "")
		return fmt.Sprintf("HTTP %d returned for %s%s", e.HTTPStatus, e.TargetPage, e.linkedFrom())
	case UnableToRetrieve:
		e.require("TargetPage", e.TargetPage != "")
		return fmt.Sprintf("unable to retrieve %s%s", e.TargetPage, e.linkedFrom())
	case MissingAttribute:
		e.require("SourcePage", e.SourcePage != "")
		e.require("Attribute", e.Attribute != "")
		e.require("HTML", e.HTML != "")
		return fmt.Sprintf("page %s has an element missing the %q attribute: %s", e.SourcePage, e.Attribute, e.HTML)
	case EmptyAttribute:
		e.require("SourcePage", e.SourcePage != "")
		e.require("Attribute", e.Attribute != "")
		e.require("HTML", e.HTML != "")
		return fmt.Sprintf("page %s has an element with an empty %q attribute: %s", e.SourcePage, e.Attribute, e.HTML)
	case MissingTitle:
		e.require("SourcePage", e.SourcePage != "")
		return fmt.Sprintf("page %s does not have a title", e.SourcePage)
	case EmptyScript:
		e.require("SourcePage", e.SourcePage != "")
		msg := fmt.Sprintf("page %s has a script element with neither a src attribute nor inline content", e.SourcePage)
		if e.HTML != "" {
			msg += ": " + e.HTML
		}
		return msg
	case FailedCrawl:
		return "crawl found at least one problem"
	}
	panic(fmt.Sprintf("SpiderError with unknown kind %d", int(e.Kind)))
}

func (e SpiderError) linkedFrom() string {
	if e.SourcePage == "" || e.SourcePage == e.TargetPage {
		return ""
	}
	return " (linked from " + e.SourcePage + ")"
}

func (e SpiderError) require(field string, present bool) {
	if !present {
		panic(fmt.Sprintf("SpiderError of kind %s is missing required field %s", e.Kind, field))
	}
}

// ErrorCounts tallies errors per rule name
func ErrorCounts(errs []SpiderError) map[string]int {
	counts := make(map[string]int)
	for _, e := range errs {
		counts[e.Kind.String()]++
	}
	return counts
}

// Messages renders every error, one entry each
func Messages(errs []SpiderError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Message())
	}
	return out
}
