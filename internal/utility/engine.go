package utility

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/converse/models"
)

// Confidence tiers for deterministic matches.
const (
	ConfidenceHigh   = 0.95
	ConfidenceMedium = 0.7
)

var (
	percentRe = regexp.MustCompile(`(?i)^\s*(?:what(?:\s+is|'s)\s+|calculate\s+|compute\s+)?(\d+(?:\.\d+)?)\s*%\s*of\s*(\d+(?:\.\d+)?)\s*\??\s*$`)
	arithRe   = regexp.MustCompile(`(?i)^\s*(?:what(?:\s+is|'s)\s+|calculate\s+|compute\s+)?([0-9+\-*/().\s]+?)\s*\??\s*$`)
	convRe    = regexp.MustCompile(`(?i)^\s*(?:what(?:\s+is|'s)\s+|convert\s+)?(-?\d+(?:\.\d+)?)\s*°?\s*([a-z]+)\s+(?:to|in|into)\s+°?\s*([a-z]+)\s*\??\s*$`)

	// looseConvRe spots a value+unit followed later by "in/to <unit>" inside
	// conversational wrapping ("if I set it to 72F what is that in C").
	looseConvRe = regexp.MustCompile(`(?i)(-?\d+(?:\.\d+)?)\s*°?\s*([a-z]+)\b.{0,60}?\b(?:in|to|into)\s+°?\s*([a-z]+)\b`)

	hasDigitRe = regexp.MustCompile(`\d`)
	hasOpRe    = regexp.MustCompile(`[+\-*/]`)
)

var arithKeywords = []string{"plus", "minus", "times", "divided", "percent", "calculate", "compute", "sum", "multiply"}

// TryMatch attempts a deterministic, network-free answer for the message.
// High-confidence matches are strict anchored patterns; medium-confidence
// matches allow conversational wrapping but only when the gating heuristic
// confirms numeric and unit cues, so ordinary prose with a number in it
// falls through.
func TryMatch(text string) (models.UtilityResult, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.UtilityResult{}, false
	}

	if m := percentRe.FindStringSubmatch(trimmed); m != nil {
		pct, err1 := strconv.ParseFloat(m[1], 64)
		base, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			return models.UtilityResult{
				Category:   "calculator",
				Answer:     formatNumber(pct / 100 * base),
				Confidence: ConfidenceHigh,
			}, true
		}
	}

	if m := convRe.FindStringSubmatch(trimmed); m != nil {
		if answer, ok := convert(m[1], m[2], m[3]); ok {
			return models.UtilityResult{
				Category:   "conversion",
				Answer:     answer,
				Confidence: ConfidenceHigh,
			}, true
		}
	}

	if m := arithRe.FindStringSubmatch(trimmed); m != nil {
		expr := strings.TrimSpace(m[1])
		if hasDigitRe.MatchString(expr) && hasOpRe.MatchString(expr) && safeExpression(expr) {
			if v, err := evalExpression(expr); err == nil {
				return models.UtilityResult{
					Category:   "calculator",
					Answer:     formatNumber(v),
					Confidence: ConfidenceHigh,
				}, true
			}
		}
	}

	// Medium tier: conversational wrapping, gated.
	if conversationalCues(trimmed) {
		if m := looseConvRe.FindStringSubmatch(trimmed); m != nil {
			if answer, ok := convert(m[1], m[2], m[3]); ok {
				return models.UtilityResult{
					Category:   "conversion",
					Answer:     answer,
					Confidence: ConfidenceMedium,
				}, true
			}
		}
	}

	return models.UtilityResult{}, false
}

// conversationalCues requires a numeric token plus either a unit token or an
// arithmetic keyword before the medium tier is allowed to fire.
func conversationalCues(text string) bool {
	if !hasDigitRe.MatchString(text) {
		return false
	}
	lower := strings.ToLower(text)
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '.'
	}) {
		stripped := strings.TrimLeft(w, "0123456789.")
		if stripped != w && stripped != "" {
			if _, ok := unitFor(stripped); ok {
				return true
			}
		}
		if _, ok := unitFor(w); ok {
			return true
		}
	}
	for _, kw := range arithKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// safeExpression allows only the characters the evaluator understands:
// digits, + - * / ( ) . and spaces. Anything else is rejected outright.
func safeExpression(expr string) bool {
	for _, r := range expr {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' || r == '-' || r == '*' || r == '/':
		case r == '(' || r == ')' || r == '.' || r == ' ':
		default:
			return false
		}
	}
	return true
}

// evalExpression is a small recursive-descent evaluator over the allow-listed
// character set. No names, no calls, no injection surface.
func evalExpression(expr string) (float64, error) {
	p := &exprParser{input: strings.ReplaceAll(expr, " ", "")}
	v, err := p.parseSum()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected character at %d", p.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("result out of range")
	}
	return v, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.input) {
		return p.input[p.pos]
	}
	return 0
}

func (p *exprParser) parseSum() (float64, error) {
	v, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.peek() == '-' {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing paren at %d", p.pos)
		}
		p.pos++
		return v, nil
	}
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 0, fmt.Errorf("expected number at %d", start)
	}
	return strconv.ParseFloat(p.input[start:p.pos], 64)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
}
