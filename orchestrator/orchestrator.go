package orchestrator

import (
	"github.com/layeredvm/layeredvm/ir/async"
	"github.com/layeredvm/layeredvm/ir/cfg"
	"github.com/layeredvm/layeredvm/ir/detect"
	"github.com/layeredvm/layeredvm/ir/docmodel"
	"github.com/layeredvm/layeredvm/ir/emit"
	"github.com/layeredvm/layeredvm/ir/eval"
	"github.com/layeredvm/layeredvm/ir/metrics"
	"github.com/layeredvm/layeredvm/ir/registry"
	"github.com/layeredvm/layeredvm/ir/store"
	"github.com/layeredvm/layeredvm/ir/value"
)

// Options configures a single document execution.
type Options struct {
	Ops     registry.OperatorRegistry
	EffReg  registry.EffectRegistry
	Emit    emit.Emitter
	Metrics metrics.Metrics
	RunID   string
	Store   store.Store

	// MaxSteps bounds CFG block revisits; zero uses
	// cfg.DefaultMaxSteps.
	MaxSteps int

	// AsyncMode, when non-empty, attaches an async.Scheduler in that
	// mode so PIR documents can run. Leave empty for AIR/CIR/EIR-only
	// documents.
	AsyncMode      async.Mode
	MaxGlobalSteps int

	// DetectRaces/DetectDeadlocks attach the respective detectors to the
	// scheduler and expose the `recordAccess`/`lock`/`unlock` effects to
	// the document. No effect without AsyncMode set.
	DetectRaces     bool
	DetectDeadlocks bool
}

// Result is what a document execution produces: the result node's value,
// the full effects log recorded along the way, and any
// findings from attached detectors.
type Result struct {
	Value          value.Value
	Effects        []registry.EffectLogEntry
	RaceConflicts  []detect.Conflict
	DeadlockCycles []detect.Cycle
}

// Run validates doc, evaluates every expression node in dependency
// order, then executes the result node: as a value lookup if it is an
// expression node, or by driving its CFG if it is a block node.
func Run(doc *docmodel.Document, opts Options) Result {
	if err := Validate(doc); err != nil {
		return Result{Value: value.Err(value.CodeValidationError, err.Error())}
	}

	refs := eval.NewRefStore()
	effects := &registry.Effects{}

	var sched *async.Scheduler
	if opts.AsyncMode != "" {
		sched = async.NewScheduler(opts.AsyncMode, opts.MaxGlobalSteps)
		sched.RunID = opts.RunID
		if opts.Metrics != nil {
			sched.Metrics = opts.Metrics
		}
		effects.CreateChannel = sched.CreateChannel
		if opts.DetectRaces {
			sched.Detector = detect.NewRaceDetector()
			effects.RecordAccess = sched.RecordAccess
		}
		if opts.DetectDeadlocks {
			sched.Deadlock = detect.NewDeadlockDetector()
			effects.Lock = sched.TrackAcquire
			effects.LockAcquired = sched.TrackAcquired
			effects.Unlock = sched.TrackRelease
		}
	}

	evaluator := eval.NewEvaluator(opts.Ops, opts.EffReg, effects, refs)
	evaluator.AIRDefs = doc.AIRDefs
	if sched != nil {
		evaluator.Async = async.NewHost(sched)
	}

	prepass := func() value.Value {
		if sched != nil {
			sched.EnterRoot()
			defer sched.ExitRoot()
		}
		order, err := topoOrder(doc)
		if err != nil {
			return value.Err(value.CodeDomainError, "cycle")
		}
		for _, id := range order {
			node := doc.Nodes[id]
			evaluator.Nodes[id] = evaluator.Eval(node.Expr, eval.NewEnvironment())
		}
		return value.Void()
	}
	if v := prepass(); v.IsError() {
		return finish(v, effects, sched, opts)
	}

	resultNode := doc.Nodes[doc.Result]
	if !resultNode.IsBlock {
		return finish(evaluator.Nodes[resultNode.ID], effects, sched, opts)
	}

	cfgOpts := []cfg.Option{cfg.WithRunID(opts.RunID)}
	if opts.MaxSteps > 0 {
		cfgOpts = append(cfgOpts, cfg.WithMaxSteps(opts.MaxSteps))
	}
	if opts.Emit != nil {
		cfgOpts = append(cfgOpts, cfg.WithEmitter(opts.Emit))
	}
	if opts.Metrics != nil {
		cfgOpts = append(cfgOpts, cfg.WithMetrics(opts.Metrics))
	}
	if sched != nil {
		cfgOpts = append(cfgOpts, cfg.WithAsync(sched))
	}
	if opts.Store != nil {
		cfgOpts = append(cfgOpts, cfg.WithStore(opts.Store))
	}
	engine := cfg.NewEngine(evaluator, resultNode.Blocks, cfgOpts...)
	return finish(engine.Run(resultNode.Entry), effects, sched, opts)
}

func finish(v value.Value, effects *registry.Effects, sched *async.Scheduler, opts Options) Result {
	res := Result{Value: v, Effects: effects.Log}
	if sched == nil {
		return res
	}
	if sched.Detector != nil {
		res.RaceConflicts = sched.Detector.Detect()
	}
	if sched.Deadlock != nil {
		res.DeadlockCycles = sched.Deadlock.Detect()
	}
	if opts.Metrics != nil {
		for _, c := range res.RaceConflicts {
			opts.Metrics.IncrementRaceDetected(opts.RunID, c.Kind)
		}
		for range res.DeadlockCycles {
			opts.Metrics.IncrementDeadlockDetected(opts.RunID)
		}
	}
	return res
}
