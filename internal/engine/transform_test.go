package engine

import "testing"

const reverseScript = `
var n = function(s) { return s.split("").reverse().join(""); };
var sig = function(s) { return s.slice(1) + s.charAt(0); };
`

func TestTransformEvaluatorApply(t *testing.T) {
	eval, err := NewTransformEvaluator(reverseScript)
	if err != nil {
		t.Fatalf("NewTransformEvaluator failed: %v", err)
	}

	got, err := eval.Apply(TransformN, "abc123")
	if err != nil {
		t.Fatalf("Apply(n) failed: %v", err)
	}
	if got != "321cba" {
		t.Errorf("Apply(n) = %q, want 321cba", got)
	}

	got, err = eval.Apply(TransformSig, "xyz")
	if err != nil {
		t.Fatalf("Apply(sig) failed: %v", err)
	}
	if got != "yzx" {
		t.Errorf("Apply(sig) = %q, want yzx", got)
	}
}

func TestTransformEvaluatorPartialScript(t *testing.T) {
	eval, err := NewTransformEvaluator(`var n = function(s) { return s + "n"; };`)
	if err != nil {
		t.Fatalf("NewTransformEvaluator failed: %v", err)
	}
	if !eval.Has(TransformN) {
		t.Errorf("expected n transform present")
	}
	if eval.Has(TransformSig) {
		t.Errorf("expected sig transform absent")
	}
	if _, err := eval.Apply(TransformSig, "x"); err == nil {
		t.Errorf("expected error applying missing transform")
	}
}

func TestTransformEvaluatorRejectsEmptyScript(t *testing.T) {
	if _, err := NewTransformEvaluator(`var unrelated = 1;`); err == nil {
		t.Fatalf("expected rejection of a script exposing neither transform")
	}
}

func TestTransformEvaluatorRejectsBrokenScript(t *testing.T) {
	if _, err := NewTransformEvaluator(`var n = function(`); err == nil {
		t.Fatalf("expected rejection of an unparsable script")
	}
}

func TestNTransformAdapter(t *testing.T) {
	eval, err := NewTransformEvaluator(reverseScript)
	if err != nil {
		t.Fatalf("NewTransformEvaluator failed: %v", err)
	}
	fn := eval.NTransform()
	if fn == nil {
		t.Fatalf("expected adapter for a script with n")
	}
	got, err := fn("ab")
	if err != nil || got != "ba" {
		t.Fatalf("adapter = %q, %v", got, err)
	}

	var nilEval *TransformEvaluator
	if nilEval.NTransform() != nil {
		t.Fatalf("nil evaluator must yield no adapter")
	}
}
