// Package orchestrator wires document validation, the expression-node
// prepass, and CFG execution into a single entry point. Schema/shape
// validation of the document format is an external collaborator; Validate
// here only enforces the structural invariants the engine itself depends
// on.
package orchestrator

import (
	"fmt"
	"strings"

	"github.com/layeredvm/layeredvm/ir/docmodel"
)

// Validate rejects documents the core cannot safely execute: a missing
// result node, or a PIR (async-instruction-bearing) document that is not
// declared major version 2.
func Validate(doc *docmodel.Document) error {
	if doc == nil {
		return fmt.Errorf("nil document")
	}
	if _, ok := doc.Nodes[doc.Result]; !ok {
		return fmt.Errorf("result node %q not found", doc.Result)
	}
	if usesPIR(doc) && !strings.HasPrefix(doc.Version, "2") {
		return fmt.Errorf("document uses PIR instructions/terminators but declares version %q (must be major version 2)", doc.Version)
	}
	return nil
}

func usesPIR(doc *docmodel.Document) bool {
	for _, node := range doc.Nodes {
		if !node.IsBlock {
			continue
		}
		for _, blk := range node.Blocks {
			for _, instr := range blk.Instructions {
				switch instr.Kind {
				case docmodel.InstrSpawn, docmodel.InstrChannelOp, docmodel.InstrAwait:
					return true
				}
			}
			switch blk.Terminator.Kind {
			case docmodel.TermFork, docmodel.TermJoin, docmodel.TermSuspend:
				return true
			}
		}
	}
	return false
}
