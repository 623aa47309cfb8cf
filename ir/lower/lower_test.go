package lower

import (
	"testing"

	"github.com/layeredvm/layeredvm/ir/docmodel"
)

func TestLowerIfProducesBranchAndPhi(t *testing.T) {
	expr := &docmodel.Expr{
		Kind: docmodel.ExprIf,
		Cond: &docmodel.Expr{Kind: docmodel.ExprLit, LitKind: "bool", LitBool: true},
		Then: &docmodel.Expr{Kind: docmodel.ExprLit, LitKind: "int", LitInt: 1},
		Else: &docmodel.Expr{Kind: docmodel.ExprLit, LitKind: "int", LitInt: 2},
	}
	entry, blocks, err := Lower(expr)
	if err != nil {
		t.Fatalf("lower failed: %v", err)
	}
	entryBlk, ok := blocks[entry]
	if !ok {
		t.Fatalf("entry block %q missing", entry)
	}
	if entryBlk.Terminator.Kind != docmodel.TermBranch {
		t.Fatalf("expected branch terminator, got %q", entryBlk.Terminator.Kind)
	}
	found := false
	for _, blk := range blocks {
		for _, instr := range blk.Instructions {
			if instr.Kind == docmodel.InstrPhi {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("expected a phi instruction in the lowered CFG")
	}
}

func TestLowerWhileFalseShapesLoop(t *testing.T) {
	expr := &docmodel.Expr{
		Kind: docmodel.ExprWhile,
		Cond: &docmodel.Expr{Kind: docmodel.ExprLit, LitKind: "bool", LitBool: false},
		Body: &docmodel.Expr{Kind: docmodel.ExprLit, LitKind: "int", LitInt: 1},
	}
	_, blocks, err := Lower(expr)
	if err != nil {
		t.Fatalf("lower failed: %v", err)
	}
	branchCount := 0
	for _, blk := range blocks {
		if blk.Terminator.Kind == docmodel.TermBranch {
			branchCount++
		}
	}
	if branchCount != 1 {
		t.Fatalf("expected exactly one branch terminator (the loop header), got %d", branchCount)
	}
}

func TestLowerTryProducesThreeArmPhiWithFallback(t *testing.T) {
	expr := &docmodel.Expr{
		Kind: docmodel.ExprTry,
		TryBody: &docmodel.Expr{Kind: docmodel.ExprCall, NS: "core", Name: "div", Args: []docmodel.Arg{
			{Expr: &docmodel.Expr{Kind: docmodel.ExprLit, LitKind: "int", LitInt: 1}},
			{Expr: &docmodel.Expr{Kind: docmodel.ExprLit, LitKind: "int", LitInt: 0}},
		}},
		CatchParam: "e",
		CatchBody: &docmodel.Expr{Kind: docmodel.ExprCall, NS: "core", Name: "isError", Args: []docmodel.Arg{
			{Expr: &docmodel.Expr{Kind: docmodel.ExprVar, Name: "e"}},
		}},
		Fallback: &docmodel.Expr{Kind: docmodel.ExprLit, LitKind: "int", LitInt: -1},
	}
	_, blocks, err := Lower(expr)
	if err != nil {
		t.Fatalf("lower failed: %v", err)
	}
	var phi *docmodel.Instruction
	for _, blk := range blocks {
		for i := range blk.Instructions {
			if blk.Instructions[i].Kind == docmodel.InstrPhi && len(blk.Instructions[i].Sources) == 3 {
				phi = &blk.Instructions[i]
			}
		}
	}
	if phi == nil {
		t.Fatalf("expected a three-arm phi for try/catch/fallback")
	}
}
