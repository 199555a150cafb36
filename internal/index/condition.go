package index

import (
	"fmt"
	"strings"
	"unicode"
)

// conditionContext holds the variables a package.xml condition may reference.
type conditionContext map[string]string

// newConditionContext returns the variables of distribution name: ROS_DISTRO
// always, ROS_VERSION from the distribution type and ROS_PYTHON_VERSION when
// the index declares one.
func newConditionContext(name string, d indexDistribution) conditionContext {
	c := conditionContext{"ROS_DISTRO": name}
	switch d.DistributionType {
	case "ros1":
		c["ROS_VERSION"] = "1"
	case "ros2":
		c["ROS_VERSION"] = "2"
	}
	if d.PythonVersion > 0 {
		c["ROS_PYTHON_VERSION"] = fmt.Sprint(d.PythonVersion)
	}
	return c
}

// evaluate reports whether condition holds. An empty condition always holds;
// unknown variables expand to the empty string.
//
//	expr    = and { "or" and }
//	and     = term { "and" term }
//	term    = "(" expr ")" | operand op operand
//	op      = "==" | "!=" | "<" | "<=" | ">" | ">="
func (c conditionContext) evaluate(condition string) (bool, error) {
	if strings.TrimSpace(condition) == "" {
		return true, nil
	}
	toks, err := tokenize(condition)
	if err != nil {
		return false, err
	}
	p := &condParser{toks: toks, vars: c}
	v, err := p.or()
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", condition, err)
	}
	if p.pos != len(p.toks) {
		return false, fmt.Errorf("condition %q: unexpected %q", condition, p.toks[p.pos].text)
	}
	return v, nil
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokOp
	tokOpen
	tokClose
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(s string) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n':
			i++
		case ch == '(':
			toks = append(toks, token{tokOpen, "("})
			i++
		case ch == ')':
			toks = append(toks, token{tokClose, ")"})
			i++
		case ch == '\'' || ch == '"':
			end := strings.IndexByte(s[i+1:], ch)
			if end < 0 {
				return nil, fmt.Errorf("condition %q: unterminated string", s)
			}
			toks = append(toks, token{tokString, s[i+1 : i+1+end]})
			i += end + 2
		case strings.ContainsRune("=!<>", rune(ch)):
			op := string(ch)
			if i+1 < len(s) && s[i+1] == '=' {
				op += "="
			}
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("condition %q: bad operator %q", s, op)
			}
			toks = append(toks, token{tokOp, op})
			i += len(op)
		case isWordByte(ch):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			toks = append(toks, token{tokWord, s[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("condition %q: unexpected character %q", s, ch)
		}
	}
	return toks, nil
}

func isWordByte(ch byte) bool {
	return ch == '$' || ch == '_' || ch == '-' || ch == '.' ||
		unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch))
}

type condParser struct {
	toks []token
	pos  int
	vars conditionContext
}

func (p *condParser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *condParser) keyword(kw string) bool {
	t, ok := p.peek()
	if ok && t.kind == tokWord && t.text == kw {
		p.pos++
		return true
	}
	return false
}

func (p *condParser) or() (bool, error) {
	v, err := p.and()
	if err != nil {
		return false, err
	}
	for p.keyword("or") {
		rhs, err := p.and()
		if err != nil {
			return false, err
		}
		v = v || rhs
	}
	return v, nil
}

func (p *condParser) and() (bool, error) {
	v, err := p.term()
	if err != nil {
		return false, err
	}
	for p.keyword("and") {
		rhs, err := p.term()
		if err != nil {
			return false, err
		}
		v = v && rhs
	}
	return v, nil
}

func (p *condParser) term() (bool, error) {
	if t, ok := p.peek(); ok && t.kind == tokOpen {
		p.pos++
		v, err := p.or()
		if err != nil {
			return false, err
		}
		if t, ok := p.peek(); !ok || t.kind != tokClose {
			return false, fmt.Errorf("missing )")
		}
		p.pos++
		return v, nil
	}

	lhs, err := p.operand()
	if err != nil {
		return false, err
	}
	op, ok := p.peek()
	if !ok || op.kind != tokOp {
		return false, fmt.Errorf("expected comparison after %q", lhs)
	}
	p.pos++
	rhs, err := p.operand()
	if err != nil {
		return false, err
	}
	switch op.text {
	case "==":
		return lhs == rhs, nil
	case "!=":
		return lhs != rhs, nil
	case "<":
		return lhs < rhs, nil
	case "<=":
		return lhs <= rhs, nil
	case ">":
		return lhs > rhs, nil
	default:
		return lhs >= rhs, nil
	}
}

func (p *condParser) operand() (string, error) {
	t, ok := p.peek()
	if !ok {
		return "", fmt.Errorf("unexpected end")
	}
	switch {
	case t.kind == tokString:
		p.pos++
		return t.text, nil
	case t.kind == tokWord && t.text != "and" && t.text != "or":
		p.pos++
		if name, ok := strings.CutPrefix(t.text, "$"); ok {
			return p.vars[name], nil
		}
		return t.text, nil
	}
	return "", fmt.Errorf("unexpected %q", t.text)
}
