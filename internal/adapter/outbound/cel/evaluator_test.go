package cel

import (
	"strings"
	"testing"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator()
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return e
}

func eval(t *testing.T, expr string, input RuleInput) bool {
	t.Helper()
	e := newTestEvaluator(t)
	prg, err := e.Compile(expr)
	if err != nil {
		t.Fatalf("Compile(%q): %v", expr, err)
	}
	result, err := e.Evaluate(prg, input)
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", expr, err)
	}
	return result
}

func TestEvaluateExpressions(t *testing.T) {
	input := RuleInput{
		Action: "purge_article",
		Params: map[string]any{"confirmed": true, "article_id": "a1"},
		Scopes: []string{"macro:editor"},
		Topic:  "macro",
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`action == "purge_article"`, true},
		{`topic == "equity"`, false},
		{`"macro:editor" in scopes`, true},
		{`param(params, "confirmed") == true`, true},
		{`param(params, "missing") == null`, true},
		{`glob("purge_*", action)`, true},
		{`glob("goto_*", action)`, false},
		{`size(scopes) == 1 && topic.startsWith("mac")`, true},
	}
	for _, tt := range tests {
		if got := eval(t, tt.expr, input); got != tt.want {
			t.Errorf("%q = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestCompileRejectsNonBoolean(t *testing.T) {
	e := newTestEvaluator(t)
	if _, err := e.Compile(`topic`); err == nil {
		t.Fatal("non-boolean expression accepted")
	}
}

func TestValidateExpressionLimits(t *testing.T) {
	e := newTestEvaluator(t)

	if err := e.ValidateExpression(`action == "x"`); err != nil {
		t.Fatalf("valid expression rejected: %v", err)
	}
	if err := e.ValidateExpression(`action ==`); err == nil {
		t.Fatal("syntax error accepted")
	}

	long := `action == "` + strings.Repeat("x", 2000) + `"`
	if err := e.ValidateExpression(long); err == nil {
		t.Fatal("oversized expression accepted")
	}

	deep := strings.Repeat("(", 60) + "true" + strings.Repeat(")", 60)
	if err := e.ValidateExpression(deep); err == nil {
		t.Fatal("deeply nested expression accepted")
	}
}
