package prompts

import (
	"fmt"
	"sort"

	"github.com/dejo1307/docdrift/internal/facts"
)

// Order sorts prompts topologically over DependsOn, taking the lowest
// (phase, id) among the ready prompts at each step. A dependency on an
// unknown prompt is ignored. Prompts caught in a dependency cycle are
// appended last in (phase, id) order.
func Order(ps []facts.Prompt) []facts.Prompt {
	byID := make(map[string]int, len(ps))
	for i, p := range ps {
		byID[p.ID] = i
	}

	indegree := make([]int, len(ps))
	dependents := make(map[int][]int)
	for i, p := range ps {
		for _, d := range p.DependsOn {
			j, ok := byID[d]
			if !ok || j == i {
				continue
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	less := func(a, b int) bool {
		if ps[a].Phase != ps[b].Phase {
			return ps[a].Phase < ps[b].Phase
		}
		return ps[a].ID < ps[b].ID
	}

	var ready []int
	for i := range ps {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	out := make([]facts.Prompt, 0, len(ps))
	done := make([]bool, len(ps))
	for len(ready) > 0 {
		sort.Slice(ready, func(a, b int) bool { return less(ready[a], ready[b]) })
		i := ready[0]
		ready = ready[1:]
		out = append(out, ps[i])
		done[i] = true
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				ready = append(ready, j)
			}
		}
	}

	if len(out) < len(ps) {
		var rest []int
		for i := range ps {
			if !done[i] {
				rest = append(rest, i)
			}
		}
		sort.Slice(rest, func(a, b int) bool { return less(rest[a], rest[b]) })
		for _, i := range rest {
			out = append(out, ps[i])
		}
	}
	return out
}

// CheckOrder returns an error if a prompt appears before one of its
// dependencies or depends on a prompt that is not in the sequence.
func CheckOrder(ps []facts.Prompt) error {
	seen := make(map[string]bool, len(ps))
	for _, p := range ps {
		for _, d := range p.DependsOn {
			if !seen[d] {
				return fmt.Errorf("prompt %s depends on %s, which does not precede it", p.ID, d)
			}
		}
		seen[p.ID] = true
	}
	return nil
}
