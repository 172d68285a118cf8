package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// The upstream signing scheme requires evaluating a small snippet of
// player code to obtain two transform functions — one for the throttling
// parameter ("n"), one for the signature ("sig"). The evaluator is scoped
// to exactly that: a bare VM with no host facilities, from which only the
// two named functions are read back. It is not a general execution hook.

const (
	TransformN   = "n"
	TransformSig = "sig"
)

// TransformEvaluator holds a sandboxed VM with the two extracted
// transforms. goja runtimes are not safe for concurrent use, so calls are
// serialized with a mutex.
type TransformEvaluator struct {
	mu  sync.Mutex
	vm  *goja.Runtime
	fns map[string]goja.Callable
}

// NewTransformEvaluator compiles the snippet and resolves the named
// transform functions from the VM's global scope. A snippet exposing
// neither transform is rejected.
func NewTransformEvaluator(script string) (*TransformEvaluator, error) {
	vm := goja.New()
	if _, err := vm.RunString(script); err != nil {
		return nil, fmt.Errorf("evaluating transform script: %w", err)
	}

	fns := make(map[string]goja.Callable, 2)
	for _, name := range []string{TransformN, TransformSig} {
		value := vm.Get(name)
		if value == nil {
			continue
		}
		if fn, ok := goja.AssertFunction(value); ok {
			fns[name] = fn
		}
	}
	if len(fns) == 0 {
		return nil, errors.New("transform script exposes neither n nor sig")
	}

	return &TransformEvaluator{vm: vm, fns: fns}, nil
}

// Has reports whether the named transform was present in the script.
func (e *TransformEvaluator) Has(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.fns[name]
	return ok
}

// Apply runs the named transform over the input value.
func (e *TransformEvaluator) Apply(name, input string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn, ok := e.fns[name]
	if !ok {
		return "", fmt.Errorf("no %s transform available", name)
	}
	result, err := fn(goja.Undefined(), e.vm.ToValue(input))
	if err != nil {
		return "", fmt.Errorf("applying %s transform: %w", name, err)
	}
	return result.String(), nil
}

// NTransform adapts the evaluator to the session's func signature.
func (e *TransformEvaluator) NTransform() func(string) (string, error) {
	if e == nil || !e.Has(TransformN) {
		return nil
	}
	return func(input string) (string, error) {
		return e.Apply(TransformN, input)
	}
}
