package lower

import (
	"fmt"

	"github.com/layeredvm/layeredvm/ir/docmodel"
)

// LowerDocument converts an EIR document whose result node is an
// expression into an LIR document whose result node is a single block
// node. Non-result expression nodes are preserved as-is:
// the orchestrator's prepass binds them by id, and the lowered CFG
// reaches them through those bindings. A node id referenced anywhere in
// the document but never defined is reported here, at lowering time,
// rather than surfacing as an UnboundIdentifier at run time.
//
// A document whose result node is already a block node is returned
// unchanged.
func LowerDocument(doc *docmodel.Document) (*docmodel.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	resultNode, ok := doc.Nodes[doc.Result]
	if !ok {
		return nil, fmt.Errorf("result node %q not found", doc.Result)
	}
	if err := checkNodeRefs(doc); err != nil {
		return nil, err
	}
	if resultNode.IsBlock {
		return doc, nil
	}

	entry, blocks, err := Lower(resultNode.Expr)
	if err != nil {
		return nil, err
	}

	out := &docmodel.Document{
		Version:      doc.Version,
		Capabilities: doc.Capabilities,
		FunctionSigs: doc.FunctionSigs,
		AIRDefs:      doc.AIRDefs,
		Nodes:        make(map[string]docmodel.Node, len(doc.Nodes)),
		Result:       doc.Result,
	}
	for id, n := range doc.Nodes {
		out.Nodes[id] = n
	}
	out.Nodes[doc.Result] = docmodel.Node{
		ID:      doc.Result,
		Type:    resultNode.Type,
		IsBlock: true,
		Blocks:  blocks,
		Entry:   entry,
	}
	return out, nil
}

// checkNodeRefs verifies that every node id referenced by any expression
// node exists in the document.
func checkNodeRefs(doc *docmodel.Document) error {
	for id, node := range doc.Nodes {
		if node.IsBlock {
			continue
		}
		refs := map[string]bool{}
		docmodel.CollectRefs(node.Expr, refs)
		for ref := range refs {
			if _, ok := doc.Nodes[ref]; !ok {
				return fmt.Errorf("node %q references undefined node %q", id, ref)
			}
		}
	}
	return nil
}
