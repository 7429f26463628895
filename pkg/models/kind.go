package models

import "fmt"

// ErrorKind classifies an anomaly found while crawling
// Each kind has a stable rule name used by ignore files and reports
type ErrorKind int

const (
	KindUnknown          ErrorKind = iota // Zero value, never recorded
	InvalidURL                            // Reference attribute could not be parsed as a URL
	HTTPError                             // Response received with a non-2xx status
	UnableToRetrieve                      // Transport failure, no response at all
	MissingAttribute                      // Required reference attribute absent
	EmptyAttribute                        // Reference attribute present but ""
	MissingTitle                          // HTML page without a title
	EmptyScript                           // <script> with neither src nor inline body
	FailedCrawl                           // Crawl found at least one problem
)

// kindNames is the single source for kind <-> rule name conversion
var kindNames = map[ErrorKind]string{
	InvalidURL:       "InvalidURL",
	HTTPError:        "HTTPError",
	UnableToRetrieve: "UnableToRetrieve",
	MissingAttribute: "MissingAttribute",
	EmptyAttribute:   "EmptyAttribute",
	MissingTitle:     "MissingTitle",
	EmptyScript:      "EmptyScript",
	FailedCrawl:      "FailedCrawl",
}

var kindsByName = func() map[string]ErrorKind {
	m := make(map[string]ErrorKind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// AllErrorKinds lists every recordable kind in declaration order
func AllErrorKinds() []ErrorKind {
	return []ErrorKind{
		InvalidURL, HTTPError, UnableToRetrieve, MissingAttribute,
		EmptyAttribute, MissingTitle, EmptyScript, FailedCrawl,
	}
}

// ParseErrorKind converts a rule name back into its kind
func ParseErrorKind(name string) (ErrorKind, error) {
	if k, ok := kindsByName[name]; ok {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("unknown error kind %q", name)
}

// String implements fmt.Stringer and returns the rule name
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// IsValid returns true for kinds that have a rule name
func (k ErrorKind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// MarshalText lets reports encode kinds by rule name
func (k ErrorKind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("cannot marshal invalid error kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText is the inverse of MarshalText
func (k *ErrorKind) UnmarshalText(text []byte) error {
	parsed, err := ParseErrorKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
