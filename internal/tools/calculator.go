package tools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

var calculatorSpec = Spec{
	Name: string(Calculator),
	Description: "Evaluate an arithmetic expression. Supports + - * / // % ** and parentheses, " +
		"e.g. \"5 + 3 * 2\" or \"(100 - 20) / 4\".",
	Parameters: map[string]Param{
		"expression": {
			Type:        "string",
			Description: "The arithmetic expression to evaluate",
			Required:    true,
		},
	},
}

type calculatorArgs struct {
	Expression string `json:"expression"`
}

func (a *calculatorArgs) validate() error {
	if strings.TrimSpace(a.Expression) == "" {
		return errors.New("expression is required")
	}
	return nil
}

func calculate(_ context.Context, args calculatorArgs) (string, error) {
	v, err := Evaluate(args.Expression)
	if err != nil {
		return "Error evaluating expression: " + err.Error(), nil
	}
	return v.String(), nil
}

// Number is an evaluation result. Integer results are exact (arbitrary
// precision) until a true division or a float operand is involved.
type Number struct {
	Value   float64
	Integer bool
	exact   *big.Int
}

// maxExactPowerBits bounds integer exponentiation; larger results are
// computed in floating point.
const maxExactPowerBits = 1 << 16

func intNumber(i *big.Int) Number {
	f, _ := new(big.Float).SetInt(i).Float64()
	return Number{Value: f, Integer: true, exact: i}
}

func floatNumber(v float64) Number {
	return Number{Value: v}
}

func (n Number) bigInt() *big.Int {
	if n.exact != nil {
		return n.exact
	}
	i, _ := big.NewFloat(n.Value).Int(nil)
	return i
}

// String formats integers without a fractional part and floats with at
// least one decimal ("8", "36.0", "0.30000000000000004").
func (n Number) String() string {
	if n.Integer {
		return n.bigInt().String()
	}
	if math.IsInf(n.Value, 0) || math.IsNaN(n.Value) {
		return strconv.FormatFloat(n.Value, 'g', -1, 64)
	}
	format := byte('f')
	if abs := math.Abs(n.Value); abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		format = 'g'
	}
	s := strconv.FormatFloat(n.Value, format, -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

var errDivisionByZero = errors.New("division by zero")

// Evaluate parses and evaluates an arithmetic expression.
//
//	expr   = term { ("+" | "-") term }
//	term   = factor { ("*" | "/" | "//" | "%") factor }
//	factor = ("+" | "-") factor | power
//	power  = atom [ "**" factor ]
//	atom   = number | "(" expr ")"
func Evaluate(expression string) (Number, error) {
	p := &exprParser{src: expression}
	v, err := p.expr()
	if err != nil {
		return Number{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return Number{}, fmt.Errorf("unexpected %q at position %d", p.src[p.pos], p.pos)
	}
	return v, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

// accept consumes op when it is next in the input.
func (p *exprParser) accept(op string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], op) {
		p.pos += len(op)
		return true
	}
	return false
}

func (p *exprParser) expr() (Number, error) {
	left, err := p.term()
	if err != nil {
		return Number{}, err
	}
	for {
		switch {
		case p.accept("+"):
			right, err := p.term()
			if err != nil {
				return Number{}, err
			}
			if left.Integer && right.Integer {
				left = intNumber(new(big.Int).Add(left.bigInt(), right.bigInt()))
			} else {
				left = floatNumber(left.Value + right.Value)
			}
		case p.accept("-"):
			right, err := p.term()
			if err != nil {
				return Number{}, err
			}
			if left.Integer && right.Integer {
				left = intNumber(new(big.Int).Sub(left.bigInt(), right.bigInt()))
			} else {
				left = floatNumber(left.Value - right.Value)
			}
		default:
			return left, nil
		}
	}
}

func (p *exprParser) term() (Number, error) {
	left, err := p.factor()
	if err != nil {
		return Number{}, err
	}
	for {
		var op string
		switch {
		case p.accept("//"):
			op = "//"
		case p.accept("*"):
			op = "*"
		case p.accept("/"):
			op = "/"
		case p.accept("%"):
			op = "%"
		default:
			return left, nil
		}

		right, err := p.factor()
		if err != nil {
			return Number{}, err
		}
		integer := left.Integer && right.Integer

		if op != "*" && right.Value == 0 {
			return Number{}, errDivisionByZero
		}
		switch {
		case op == "*" && integer:
			left = intNumber(new(big.Int).Mul(left.bigInt(), right.bigInt()))
		case op == "*":
			left = floatNumber(left.Value * right.Value)
		case op == "/":
			left = floatNumber(left.Value / right.Value)
		case op == "//" && integer:
			left = intNumber(floorDiv(left.bigInt(), right.bigInt()))
		case op == "//":
			left = floatNumber(math.Floor(left.Value / right.Value))
		case op == "%" && integer:
			left = intNumber(floorMod(left.bigInt(), right.bigInt()))
		case op == "%":
			// Result takes the sign of the divisor.
			m := math.Mod(left.Value, right.Value)
			if m != 0 && (m < 0) != (right.Value < 0) {
				m += right.Value
			}
			left = floatNumber(m)
		}
	}
}

// floorDiv rounds the quotient toward negative infinity.
func floorDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 && (r.Sign() < 0) != (b.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return q
}

// floorMod returns a remainder with the sign of the divisor.
func floorMod(a, b *big.Int) *big.Int {
	m := new(big.Int).Rem(a, b)
	if m.Sign() != 0 && (m.Sign() < 0) != (b.Sign() < 0) {
		m.Add(m, b)
	}
	return m
}

func (p *exprParser) factor() (Number, error) {
	switch {
	case p.accept("-"):
		v, err := p.factor()
		if err != nil {
			return Number{}, err
		}
		if v.Integer {
			return intNumber(new(big.Int).Neg(v.bigInt())), nil
		}
		return floatNumber(-v.Value), nil
	case p.accept("+"):
		return p.factor()
	default:
		return p.power()
	}
}

func (p *exprParser) power() (Number, error) {
	base, err := p.atom()
	if err != nil {
		return Number{}, err
	}
	if !p.accept("**") {
		return base, nil
	}
	exp, err := p.factor()
	if err != nil {
		return Number{}, err
	}
	if base.Value == 0 && exp.Value < 0 {
		return Number{}, errors.New("zero cannot be raised to a negative power")
	}
	if base.Integer && exp.Integer && exp.Value >= 0 {
		e := exp.bigInt()
		if e.IsInt64() && int64(base.bigInt().BitLen())*e.Int64() <= maxExactPowerBits {
			return intNumber(new(big.Int).Exp(base.bigInt(), e, nil)), nil
		}
	}
	v := math.Pow(base.Value, exp.Value)
	if math.IsNaN(v) {
		return Number{}, errors.New("result is not a real number")
	}
	return floatNumber(v), nil
}

func (p *exprParser) atom() (Number, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return Number{}, errors.New("unexpected end of expression")
	}

	if p.accept("(") {
		v, err := p.expr()
		if err != nil {
			return Number{}, err
		}
		if !p.accept(")") {
			return Number{}, errors.New("missing closing parenthesis")
		}
		return v, nil
	}

	start := p.pos
	integer := true
scan:
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c >= '0' && c <= '9':
			p.pos++
		case c == '.':
			integer = false
			p.pos++
		case (c == 'e' || c == 'E') && p.pos > start:
			integer = false
			p.pos++
			if p.pos < len(p.src) && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
				p.pos++
			}
		default:
			break scan
		}
	}
	if start == p.pos {
		return Number{}, fmt.Errorf("unexpected %q at position %d", p.src[p.pos], p.pos)
	}
	text := p.src[start:p.pos]
	if integer {
		i, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return Number{}, fmt.Errorf("invalid number %q", text)
		}
		return intNumber(i), nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Number{}, fmt.Errorf("invalid number %q", text)
	}
	return floatNumber(v), nil
}
