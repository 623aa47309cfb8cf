package docmodel

import (
	"encoding/json"
	"testing"
)

func TestDocumentJSONRoundTripExpressionNode(t *testing.T) {
	doc := Document{
		Version: "1.0.0",
		AIRDefs: map[string]AIRDef{},
		Nodes: map[string]Node{
			"n1": {
				ID: "n1",
				Expr: &Expr{
					Kind: ExprCall, NS: "core", Name: "add",
					Args: []Arg{
						{Expr: &Expr{Kind: ExprLit, LitKind: "int", LitInt: 1}},
						{Expr: &Expr{Kind: ExprLit, LitKind: "int", LitInt: 2}},
					},
				},
			},
		},
		Result: "n1",
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var got Document
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Version != "1.0.0" || got.Result != "n1" {
		t.Fatalf("top-level fields did not round-trip: %+v", got)
	}
	node, ok := got.Nodes["n1"]
	if !ok || node.Expr == nil {
		t.Fatalf("expected node n1 with an expr, got %+v", got.Nodes)
	}
	if node.Expr.Kind != ExprCall || node.Expr.Name != "add" || len(node.Expr.Args) != 2 {
		t.Fatalf("unexpected round-tripped expr: %+v", node.Expr)
	}
	if node.Expr.Args[0].Expr.LitInt != 1 || node.Expr.Args[1].Expr.LitInt != 2 {
		t.Fatalf("unexpected round-tripped args: %+v", node.Expr.Args)
	}
}

func TestDocumentJSONRoundTripBlockNode(t *testing.T) {
	doc := Document{
		Version: "2.0.0",
		AIRDefs: map[string]AIRDef{},
		Nodes: map[string]Node{
			"main": {
				ID: "main", IsBlock: true, Entry: "entry",
				Blocks: map[string]*Block{
					"entry": {
						ID: "entry",
						Instructions: []Instruction{
							{Kind: InstrAssign, Target: "x", InlineExpr: &Expr{Kind: ExprLit, LitKind: "int", LitInt: 5}},
							{Kind: InstrSpawn, Target: "f", EntryID: "worker"},
							{Kind: InstrAwait, Target: "r", FutureID: "f"},
						},
						Terminator: Terminator{Kind: TermReturn, ValueID: "r"},
					},
					"worker": {
						ID:         "worker",
						Terminator: Terminator{Kind: TermReturn, ValueID: "x"},
					},
				},
			},
		},
		Result: "main",
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var got Document
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	node := got.Nodes["main"]
	if !node.IsBlock || node.Entry != "entry" {
		t.Fatalf("expected a block node with entry=entry, got %+v", node)
	}
	entry := node.Blocks["entry"]
	if entry == nil || len(entry.Instructions) != 3 {
		t.Fatalf("expected 3 instructions in entry block, got %+v", entry)
	}
	if entry.Instructions[1].Kind != InstrSpawn || entry.Instructions[1].EntryID != "worker" {
		t.Fatalf("unexpected spawn instruction: %+v", entry.Instructions[1])
	}
	if entry.Terminator.Kind != TermReturn || entry.Terminator.ValueID != "r" {
		t.Fatalf("unexpected terminator: %+v", entry.Terminator)
	}
}

func TestTerminatorForkJoinRoundTrip(t *testing.T) {
	term := Terminator{
		Kind:         TermFork,
		Branches:     []ForkBranch{{Block: "b1", TaskID: "t1"}, {Block: "b2", TaskID: "t2"}},
		Continuation: "join1",
	}
	data, err := json.Marshal(term)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var got Terminator
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Kind != TermFork || len(got.Branches) != 2 || got.Continuation != "join1" {
		t.Fatalf("fork terminator did not round-trip: %+v", got)
	}

	join := Terminator{Kind: TermJoin, Tasks: []string{"t1", "t2"}, Results: map[string]string{"t1": "r1", "t2": "r2"}, To: "sum"}
	data, err = json.Marshal(join)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var gotJoin Terminator
	if err := json.Unmarshal(data, &gotJoin); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if gotJoin.Kind != TermJoin || gotJoin.Results["t1"] != "r1" || gotJoin.To != "sum" {
		t.Fatalf("join terminator did not round-trip: %+v", gotJoin)
	}
}

func TestPhiInstructionRoundTrip(t *testing.T) {
	instr := Instruction{
		Kind:   InstrPhi,
		Target: "z",
		Sources: []PhiSource{
			{Block: "then", ID: "a"},
			{Block: "else", ID: "b"},
		},
	}
	data, err := json.Marshal(instr)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var got Instruction
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Kind != InstrPhi || len(got.Sources) != 2 || got.Sources[0].Block != "then" {
		t.Fatalf("phi instruction did not round-trip: %+v", got)
	}
}
