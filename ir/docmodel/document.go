// Package docmodel defines the JSON-serializable document format consumed
// by the evaluator and CFG engine: nodes, blocks, instructions and
// terminators.
package docmodel

// Document is the root of the wire format. Version is semver; PIR
// documents (those using async instructions/terminators) must use major
// version 2.
type Document struct {
	Version      string            `json:"version"`
	Capabilities []string          `json:"capabilities,omitempty"`
	FunctionSigs map[string]Sig    `json:"functionSigs,omitempty"`
	AIRDefs      map[string]AIRDef `json:"airDefs"`
	Nodes        map[string]Node   `json:"nodes"`
	Result       string            `json:"result"`
}

// Sig is a named function signature declaration (arity/types only; bit
// exact operator semantics are delegated to the registry).
type Sig struct {
	Params  []string `json:"params"`
	Returns string   `json:"returns"`
}

// AIRDef is a named pure definition invocable via `airRef`.
type AIRDef struct {
	Params []string `json:"params"`
	Body   *Expr    `json:"body"`
}

// Node is either an expression node (tree form) or a block node (CFG
// form). Exactly one of Expr/Blocks should be populated; IsBlock
// disambiguates explicitly so a nil Blocks map isn't mistaken for "no
// blocks yet".
type Node struct {
	ID      string `json:"id"`
	Type    string `json:"type,omitempty"`
	IsBlock bool   `json:"isBlock"`

	// Expression-node form.
	Expr *Expr `json:"expr,omitempty"`

	// Block-node form.
	Blocks map[string]*Block `json:"blocks,omitempty"`
	Entry  string             `json:"entry,omitempty"`
}

// Block is a CFG basic block: a straight-line instruction sequence ending
// in exactly one terminator.
type Block struct {
	ID           string        `json:"id"`
	Instructions []Instruction `json:"instructions"`
	Terminator   Terminator    `json:"terminator"`
}
