package graph

import (
	"net/url"
	"sync"

	"github.com/Sriram-PR/site-spider/pkg/models"
)

// NodeID identifies a page in the graph; it is the page's insertion index
type NodeID int

// Edge is one directed reference between two pages
// Repeated references between the same pair produce distinct edges
type Edge struct {
	From NodeID
	To   NodeID
	models.Link
}

// Graph is a directed multigraph of pages plus the URL index used for deduplication
// One mutex guards both the node slice and the index, so the lookup-or-create step
// is a single critical section. Nothing removes or merges nodes or edges
type Graph struct {
	mu    sync.RWMutex
	nodes []*models.Page
	edges []Edge
	index map[string]NodeID // canonical URL string -> node
}

// New returns an empty graph
func New() *Graph {
	return &Graph{index: make(map[string]NodeID)}
}

func key(u *url.URL) string {
	return u.String()
}

// createLocked appends a page for u and registers it; caller holds mu
func (g *Graph) createLocked(u *url.URL) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, models.NewPage(u))
	g.index[key(u)] = id
	return id
}

// CreateRoot registers the crawl root, returning the existing node if u is already known
func (g *Graph) CreateRoot(u *url.URL) NodeID {
	id, _ := g.LookupOrCreate(u)
	return id
}

// LookupOrCreate returns the node for u, creating and registering it if absent
func (g *Graph) LookupOrCreate(u *url.URL) (id NodeID, created bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.index[key(u)]; ok {
		return id, false
	}
	return g.createLocked(u), true
}

// LinkOrCreate finds or creates the node for u and adds an edge from -> u
// Exactly one concurrent caller observes created == true for a given URL,
// and that caller owns the visit of the new node
func (g *Graph) LinkOrCreate(from NodeID, u *url.URL, html string) (id NodeID, created bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.index[key(u)]
	if !ok {
		id = g.createLocked(u)
		created = true
	}
	g.edges = append(g.edges, Edge{From: from, To: id, Link: models.Link{HTML: html}})
	return id, created
}

// AddLink adds an edge between two existing nodes
func (g *Graph) AddLink(from, to NodeID, html string) {
	g.mu.Lock()
	g.edges = append(g.edges, Edge{From: from, To: to, Link: models.Link{HTML: html}})
	g.mu.Unlock()
}

// Lookup returns the node registered for u
func (g *Graph) Lookup(u *url.URL) (NodeID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.index[key(u)]
	return id, ok
}

// Update runs fn on the live page under the write lock
// fn must not block or call back into the graph
func (g *Graph) Update(id NodeID, fn func(*models.Page)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(g.nodes[id])
}

// Page returns a snapshot of the page for id
func (g *Graph) Page(id NodeID) (*models.Page, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if id < 0 || int(id) >= len(g.nodes) {
		return nil, false
	}
	return g.nodes[id].Clone(), true
}

// PageByURL returns a snapshot of the page registered for u
func (g *Graph) PageByURL(u *url.URL) (*models.Page, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.index[key(u)]
	if !ok {
		return nil, false
	}
	return g.nodes[id].Clone(), true
}

// Pages returns snapshots of every page in node order
func (g *Graph) Pages() []*models.Page {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*models.Page, len(g.nodes))
	for i, p := range g.nodes {
		out[i] = p.Clone()
	}
	return out
}

// Edges returns a copy of every edge in insertion order
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.edges...)
}

// PageCount returns the number of nodes
func (g *Graph) PageCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// LinkCount returns the number of edges
func (g *Graph) LinkCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}
