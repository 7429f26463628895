// Package main provides the site-spider command line tool.
//
// site-spider crawls a web site from a root URL and reports broken links,
// pages without titles and malformed references.
//
// Usage:
//
//	site-spider check --url https://example.com/
//	site-spider check --config sites.yaml --all-sites
//
// See --help for all available options.
package main

func main() {
	Execute()
}
