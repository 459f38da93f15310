package expr

import (
	"math/rand"
	"time"

	"github.com/dop251/goja"

	"github.com/pellucidb/pellucid/internal/serr"
)

// FixedSeed is the deterministic seed for random number generation
// inside expression evaluation.
const FixedSeed = 12345

// evalTimeout bounds a single expression evaluation.
const evalTimeout = time.Second

// newVM builds a hardened, deterministic runtime for evaluating
// constant expressions.
func newVM() *goja.Runtime {
	vm := goja.New()
	vm.SetMaxCallStackSize(500)

	seedRand := rand.New(rand.NewSource(FixedSeed))
	vm.SetRandSource(func() float64 { return seedRand.Float64() })

	vm.Set("eval", goja.Undefined())
	_, _ = vm.RunString(`
		(function() {
			try {
				Object.freeze(Object.prototype);
				Object.freeze(Array.prototype);
				Object.freeze(String.prototype);
				Object.freeze(Number.prototype);
				Object.freeze(Boolean.prototype);
			} catch(e) {}
		})();
	`)
	return vm
}

// Evaluate runs a constant expression and returns its value. The
// expression must not reference schema objects; defaults like
// "now()" or "1 + 2" are the intended use.
func (e *Expression) Evaluate() (any, error) {
	if !e.Compiled() {
		return nil, serr.New(serr.ErrUncompiledExpr, "cannot evaluate uncompiled expression").
			With("expr", e.Text)
	}
	if len(e.Refs) > 0 {
		return nil, serr.New(serr.ErrExprRef, "cannot evaluate expression with schema references").
			With("expr", e.Text).
			With("refs", e.Refs)
	}

	vm := newVM()

	timer := time.AfterFunc(evalTimeout, func() {
		vm.Interrupt("execution timeout")
	})
	defer timer.Stop()

	result, err := vm.RunProgram(e.prog)
	if err != nil {
		if _, ok := err.(*goja.InterruptedError); ok {
			return nil, serr.New(serr.ErrExprCompile, "expression evaluation timed out").
				With("expr", e.Text).
				With("timeout", evalTimeout.String())
		}
		return nil, serr.Wrap(serr.ErrExprCompile, err, "expression evaluation failed").
			With("expr", e.Text)
	}
	return result.Export(), nil
}
