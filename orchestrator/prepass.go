package orchestrator

import (
	"fmt"
	"sort"

	"github.com/layeredvm/layeredvm/ir/docmodel"
)

// topoOrder returns expression-node ids in dependency order (every id a
// node's expr `ref`s appears before that node), so the prepass can bind
// each one exactly once. Block
// nodes are excluded; an expr that `ref`s a cyclic chain of other exprs
// surfaces as an error rather than recursing forever.
func topoOrder(doc *docmodel.Document) ([]string, error) {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := map[string]int{}
	var order []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case inProgress:
			return fmt.Errorf("cycle through node %q", id)
		}
		node, ok := doc.Nodes[id]
		if !ok || node.IsBlock {
			state[id] = done
			return nil
		}
		state[id] = inProgress
		refs := map[string]bool{}
		docmodel.CollectRefs(node.Expr, refs)
		deps := make([]string, 0, len(refs))
		for dep := range refs {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		order = append(order, id)
		return nil
	}

	ids := make([]string, 0, len(doc.Nodes))
	for id := range doc.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}
