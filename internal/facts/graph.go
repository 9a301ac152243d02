package facts

import (
	"sort"
	"strings"
)

// ModuleGraph is a directed graph of module -> module import edges.
// Modules are repository-relative directories.
type ModuleGraph struct {
	Edges map[string][]string `json:"edges"` // every node is a key, possibly with no edges
}

// NewModuleGraph creates an empty graph.
func NewModuleGraph() *ModuleGraph {
	return &ModuleGraph{Edges: make(map[string][]string)}
}

// AddNode adds a module without edges.
func (g *ModuleGraph) AddNode(name string) {
	if _, ok := g.Edges[name]; !ok {
		g.Edges[name] = nil
	}
}

// AddEdge adds a directed edge. Self edges and duplicates are ignored.
func (g *ModuleGraph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if from == to {
		return
	}
	for _, t := range g.Edges[from] {
		if t == to {
			return
		}
	}
	g.Edges[from] = append(g.Edges[from], to)
}

// HasNode reports whether the module is present.
func (g *ModuleGraph) HasNode(name string) bool {
	if g == nil {
		return false
	}
	_, ok := g.Edges[name]
	return ok
}

// Nodes returns all modules, sorted.
func (g *ModuleGraph) Nodes() []string {
	if g == nil {
		return nil
	}
	nodes := make([]string, 0, len(g.Edges))
	for n := range g.Edges {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// EdgeCount returns the number of edges.
func (g *ModuleGraph) EdgeCount() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, targets := range g.Edges {
		n += len(targets)
	}
	return n
}

// Reverse returns the incoming adjacency list.
func (g *ModuleGraph) Reverse() map[string][]string {
	rev := make(map[string][]string)
	if g == nil {
		return rev
	}
	for _, from := range g.Nodes() {
		for _, to := range g.Edges[from] {
			rev[to] = append(rev[to], from)
		}
	}
	return rev
}

// ModuleFanIn is a module and the number of modules importing it.
type ModuleFanIn struct {
	Module string `json:"module"`
	FanIn  int    `json:"fan_in"`
}

// Hubs returns the n modules with the highest fan-in, ties broken by name.
func (g *ModuleGraph) Hubs(n int) []ModuleFanIn {
	var hubs []ModuleFanIn
	for mod, importers := range g.Reverse() {
		hubs = append(hubs, ModuleFanIn{Module: mod, FanIn: len(importers)})
	}
	sort.Slice(hubs, func(i, j int) bool {
		if hubs[i].FanIn != hubs[j].FanIn {
			return hubs[i].FanIn > hubs[j].FanIn
		}
		return hubs[i].Module < hubs[j].Module
	})
	if len(hubs) > n {
		hubs = hubs[:n]
	}
	return hubs
}

// Cycles returns every strongly connected component with more than one module.
// Each cycle is sorted and the result is ordered by first member.
func (g *ModuleGraph) Cycles() [][]string {
	if g == nil {
		return nil
	}
	var cycles [][]string
	for _, scc := range tarjanSCC(g.Nodes(), g.Edges) {
		if len(scc) > 1 {
			sort.Strings(scc)
			cycles = append(cycles, scc)
		}
	}
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i][0] < cycles[j][0]
	})
	return cycles
}

// tarjanSCC implements Tarjan's strongly connected components algorithm.
// Nodes are visited in the given order so results are deterministic.
func tarjanSCC(nodes []string, graph map[string][]string) [][]string {
	var (
		index    int
		stack    []string
		onStack  = make(map[string]bool)
		indices  = make(map[string]int)
		lowlinks = make(map[string]int)
		sccs     [][]string
	)

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				if lowlinks[w] < lowlinks[v] {
					lowlinks[v] = lowlinks[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlinks[v] {
					lowlinks[v] = indices[w]
				}
			}
		}

		// Root of an SCC
		if lowlinks[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, v := range nodes {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}

	return sccs
}

// FileDir returns the slash-separated directory of a repository file, or "." at the root.
func FileDir(file string) string {
	idx := strings.LastIndex(file, "/")
	if idx < 0 {
		return "."
	}
	return file[:idx]
}
