package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Sriram-PR/site-spider/pkg/graph"
	"github.com/Sriram-PR/site-spider/pkg/models"
)

// Node colours in the DOT rendering
const (
	colorNotVisited = "black"
	colorGood       = "green"
	colorBad        = "red"
	colorUnknown    = "orange" // visited but never judged, e.g. outside the host allow-list
)

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", " ", "\r", " ")

// WriteDOT renders g as a Graphviz digraph
// Nodes are labelled "title\nurl" and coloured by their verdict; edges carry no attributes
func WriteDOT(w io.Writer, g *graph.Graph) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph {")
	for i, p := range g.Pages() {
		fmt.Fprintf(bw, "    %d [ label=\"%s\\n%s\", color=%s ]\n",
			i, dotEscaper.Replace(nodeTitle(p)), dotEscaper.Replace(p.URL.String()), nodeColor(p))
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(bw, "    %d -> %d [ ]\n", e.From, e.To)
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func nodeTitle(p *models.Page) string {
	switch {
	case !p.Visited:
		return "???"
	case p.Title == nil:
		return "NO TITLE"
	default:
		return strings.TrimSpace(*p.Title)
	}
}

func nodeColor(p *models.Page) string {
	if !p.Visited {
		return colorNotVisited
	}
	good, known := p.IsGood()
	switch {
	case !known:
		return colorUnknown
	case good:
		return colorGood
	default:
		return colorBad
	}
}
