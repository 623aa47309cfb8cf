package docmodel

// ExprKind discriminates the expression tree node variants across
// AIR/CIR/EIR.
type ExprKind string

const (
	ExprLit      ExprKind = "lit"
	ExprRef      ExprKind = "ref"
	ExprVar      ExprKind = "var"
	ExprCall     ExprKind = "call"
	ExprIf       ExprKind = "if"
	ExprLet      ExprKind = "let"
	ExprLambda   ExprKind = "lambda"
	ExprCallExpr ExprKind = "callExpr"
	ExprFix      ExprKind = "fix"
	ExprAIRRef   ExprKind = "airRef"

	// EIR extensions.
	ExprSeq     ExprKind = "seq"
	ExprAssign  ExprKind = "assign"
	ExprWhile   ExprKind = "while"
	ExprFor     ExprKind = "for"
	ExprIter    ExprKind = "iter"
	ExprEffect  ExprKind = "effect"
	ExprRefCell ExprKind = "refCell"
	ExprDeref   ExprKind = "deref"
	ExprTry     ExprKind = "try"

	// PIR (async) extensions, evaluated by the expression evaluator when
	// a document is not lowered to LIR; the lowering pass rewrites most
	// of these to the dedicated spawn/channelOp/await instruction forms.
	ExprSpawn  ExprKind = "spawn"
	ExprAwait  ExprKind = "await"
	ExprPar    ExprKind = "par"
	ExprChan   ExprKind = "channel"
	ExprSend   ExprKind = "send"
	ExprRecv   ExprKind = "recv"
	ExprSelect ExprKind = "select"
	ExprRace   ExprKind = "race"
)

// Arg is either an inline expression or a reference to an already-bound
// node id; exactly one of Expr/RefID should be set.
type Arg struct {
	Expr  *Expr  `json:"expr,omitempty"`
	RefID string `json:"refId,omitempty"`
}

// Expr is the tagged union for expression-tree nodes. Only the fields
// relevant to Kind are meaningful; this mirrors the instruction/terminator
// unions in block.go.
type Expr struct {
	Kind ExprKind `json:"kind"`

	// lit
	LitKind string `json:"litKind,omitempty"` // bool|int|float|string|void
	LitBool bool   `json:"litBool,omitempty"`
	LitInt  int64  `json:"litInt,omitempty"`
	LitFlt  float64 `json:"litFloat,omitempty"`
	LitStr  string `json:"litStr,omitempty"`

	// ref
	RefID string `json:"refId,omitempty"`

	// var
	Name string `json:"name,omitempty"`

	// call / airRef
	NS   string `json:"ns,omitempty"`
	Args []Arg  `json:"args,omitempty"`

	// if
	Cond *Expr `json:"cond,omitempty"`
	Then *Expr `json:"then,omitempty"`
	Else *Expr `json:"else,omitempty"`

	// let
	Value *Expr `json:"value,omitempty"`
	Body  *Expr `json:"body,omitempty"`

	// lambda
	Params []string `json:"params,omitempty"`

	// callExpr
	Fn *Expr `json:"fn,omitempty"`

	// fix
	FixFn *Expr `json:"fixFn,omitempty"`

	// seq
	First *Expr `json:"first,omitempty"`
	Then2 *Expr `json:"then2,omitempty"`

	// assign / refCell / deref
	Target string `json:"target,omitempty"`

	// while/for
	Init   *Expr `json:"init,omitempty"`
	Update *Expr `json:"update,omitempty"`

	// effect
	EffectOp string `json:"effectOp,omitempty"`

	// try
	CatchParam string `json:"catchParam,omitempty"`
	CatchBody  *Expr  `json:"catchBody,omitempty"`
	Fallback   *Expr  `json:"fallback,omitempty"`
	TryBody    *Expr  `json:"tryBody,omitempty"`

	// async forms
	Entry       *Expr   `json:"entry,omitempty"`
	Tasks       []*Expr `json:"tasks,omitempty"`
	Channel     *Expr   `json:"channel,omitempty"`
	Variant     string  `json:"variant,omitempty"` // channel: mpsc|spsc|mpmc|broadcast
	BufferSize  int     `json:"bufferSize,omitempty"`
	TimeoutMS   int     `json:"timeoutMs,omitempty"`
	ReturnIndex bool    `json:"returnIndex,omitempty"`
}

// CollectRefs walks an expression tree gathering every node id it
// references (`ref{id}` forms and by-id args) across every subexpression
// field the tagged union defines.
func CollectRefs(e *Expr, out map[string]bool) {
	if e == nil {
		return
	}
	if e.Kind == ExprRef && e.RefID != "" {
		out[e.RefID] = true
	}
	for _, a := range e.Args {
		if a.RefID != "" {
			out[a.RefID] = true
		} else {
			CollectRefs(a.Expr, out)
		}
	}
	CollectRefs(e.Cond, out)
	CollectRefs(e.Then, out)
	CollectRefs(e.Else, out)
	CollectRefs(e.Value, out)
	CollectRefs(e.Body, out)
	CollectRefs(e.Fn, out)
	CollectRefs(e.FixFn, out)
	CollectRefs(e.First, out)
	CollectRefs(e.Then2, out)
	CollectRefs(e.Init, out)
	CollectRefs(e.Update, out)
	CollectRefs(e.CatchBody, out)
	CollectRefs(e.Fallback, out)
	CollectRefs(e.TryBody, out)
	CollectRefs(e.Entry, out)
	CollectRefs(e.Channel, out)
	for _, t := range e.Tasks {
		CollectRefs(t, out)
	}
}
