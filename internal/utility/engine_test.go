package utility

import (
	"strings"
	"testing"
)

func TestTryMatchArithmetic(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"what is 5*12", "60.00"},
		{"what is 15% of 230", "34.50"},
		{"calculate (2+3)*4", "20.00"},
		{"2 + 2", "4.00"},
		{"what's 100/8?", "12.50"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			res, ok := TryMatch(tt.in)
			if !ok {
				t.Fatalf("expected match for %q", tt.in)
			}
			if res.Answer != tt.want {
				t.Fatalf("TryMatch(%q) = %q, want %q", tt.in, res.Answer, tt.want)
			}
			if res.Confidence != ConfidenceHigh {
				t.Fatalf("expected high confidence, got %v", res.Confidence)
			}
		})
	}
}

func TestTryMatchConversion(t *testing.T) {
	t.Parallel()
	res, ok := TryMatch("100 F to C")
	if !ok {
		t.Fatalf("expected conversion match")
	}
	if res.Answer != "37.78°C" {
		t.Fatalf("unexpected answer %q", res.Answer)
	}

	res, ok = TryMatch("convert 5 kg to lbs")
	if !ok {
		t.Fatalf("expected mass conversion match")
	}
	if !strings.HasSuffix(res.Answer, "lb") {
		t.Fatalf("unexpected answer %q", res.Answer)
	}
	if !strings.HasPrefix(res.Answer, "11.02") {
		t.Fatalf("unexpected value in %q", res.Answer)
	}
}

func TestTryMatchConversationalConversion(t *testing.T) {
	t.Parallel()
	res, ok := TryMatch("if I set it to 72F what is that in C")
	if !ok {
		t.Fatalf("expected medium-tier conversion match")
	}
	if res.Confidence != ConfidenceMedium {
		t.Fatalf("expected medium confidence, got %v", res.Confidence)
	}
	if res.Answer != "22.22°C" {
		t.Fatalf("unexpected answer %q", res.Answer)
	}
}

func TestTryMatchRejectsProse(t *testing.T) {
	t.Parallel()
	for _, in := range []string{
		"the meeting moved to room 12 tomorrow",
		"what should I cook tonight",
		"weather",
		"tell me about the 1969 moon landing",
	} {
		if res, ok := TryMatch(in); ok {
			t.Fatalf("expected no match for %q, got %+v", in, res)
		}
	}
}

func TestSafeExpressionRejectsInjection(t *testing.T) {
	t.Parallel()
	for _, expr := range []string{"2+2; drop", "system(1)", "1e9", "x+1"} {
		if safeExpression(expr) {
			t.Fatalf("expected %q to be rejected", expr)
		}
	}
}

func TestEvalExpression(t *testing.T) {
	t.Parallel()
	tests := []struct {
		expr string
		want float64
	}{
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"-4+10", 6},
		{"10/4", 2.5},
	}
	for _, tt := range tests {
		got, err := evalExpression(tt.expr)
		if err != nil {
			t.Fatalf("evalExpression(%q): %v", tt.expr, err)
		}
		if got != tt.want {
			t.Fatalf("evalExpression(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
	if _, err := evalExpression("1/0"); err == nil {
		t.Fatalf("expected division by zero error")
	}
	if _, err := evalExpression("1+"); err == nil {
		t.Fatalf("expected parse error")
	}
}
