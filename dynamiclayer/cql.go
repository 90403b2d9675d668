package dynamiclayer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/skanjila/neo4j-spatial/geo"
	"github.com/skanjila/neo4j-spatial/internal/graph"
)

// cqlPredicate evaluates a parsed CQL-style boolean expression against a
// decoded feature's properties, per §4.7's second dialect. Unlike the
// structural dialect it requires the geometry encoder to decode the full
// feature, so it only runs once the bbox-level pruning is done.
type cqlPredicate struct {
	expr cqlExpr
}

func (p *cqlPredicate) Match(ctx context.Context, _ graph.Txn, enc geo.Encoder, geomRef graph.VertexID) (bool, error) {
	g, err := enc.DecodeGeometry(ctx, geomRef)
	if err != nil {
		return false, err
	}
	return p.expr.eval(g.Properties), nil
}

// ParseCQL parses a small subset of OGC CQL: property comparisons
// (`=`, `<>`, `<`, `<=`, `>`, `>=`) combined with AND/OR and grouped
// with parentheses, e.g. `highway = 'residential' AND lanes >= 2`.
func ParseCQL(text string) (Predicate, error) {
	toks, err := cqlTokenize(text)
	if err != nil {
		return nil, err
	}
	p := &cqlParser{toks: toks}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != cqlEOF {
		return nil, fmt.Errorf("dynamiclayer: unexpected token %q in CQL expression", p.toks[p.pos].text)
	}
	return &cqlPredicate{expr: expr}, nil
}

type cqlExpr interface {
	eval(props map[string]any) bool
}

type cqlAnd struct{ left, right cqlExpr }

func (e *cqlAnd) eval(p map[string]any) bool { return e.left.eval(p) && e.right.eval(p) }

type cqlOr struct{ left, right cqlExpr }

func (e *cqlOr) eval(p map[string]any) bool { return e.left.eval(p) || e.right.eval(p) }

type cqlCmp struct {
	key   string
	op    string
	value string
}

func (e *cqlCmp) eval(props map[string]any) bool {
	got, ok := props[e.key]
	if !ok {
		return false
	}
	gotNum, gotIsNum := toFloat(got)
	wantNum, parseErr := strconv.ParseFloat(e.value, 64)
	if gotIsNum && parseErr == nil {
		return compareNum(e.op, gotNum, wantNum)
	}
	return compareStr(e.op, fmt.Sprint(got), e.value)
}

func compareNum(op string, a, b float64) bool {
	switch op {
	case "=":
		return a == b
	case "<>":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	default:
		return false
	}
}

func compareStr(op string, a, b string) bool {
	switch op {
	case "=":
		return a == b
	case "<>":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// --- tokenizer ---

type cqlTokenKind int

const (
	cqlIdent cqlTokenKind = iota
	cqlString
	cqlOp
	cqlAndKw
	cqlOrKw
	cqlLParen
	cqlRParen
	cqlEOF
)

type cqlToken struct {
	kind cqlTokenKind
	text string
}

func cqlTokenize(text string) ([]cqlToken, error) {
	var toks []cqlToken
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, cqlToken{cqlLParen, "("})
			i++
		case c == ')':
			toks = append(toks, cqlToken{cqlRParen, ")"})
			i++
		case c == '\'':
			j := i + 1
			for j < len(runes) && runes[j] != '\'' {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("dynamiclayer: unterminated string literal in CQL expression")
			}
			toks = append(toks, cqlToken{cqlString, string(runes[i+1 : j])})
			i = j + 1
		case strings.ContainsRune("=<>", c):
			j := i + 1
			if j < len(runes) && (runes[j] == '=' || (c == '<' && runes[j] == '>')) {
				j++
			}
			toks = append(toks, cqlToken{cqlOp, string(runes[i:j])})
			i = j
		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) && !strings.ContainsRune("()='<>", runes[j]) {
				j++
			}
			if j == i {
				return nil, fmt.Errorf("dynamiclayer: unexpected character %q in CQL expression", c)
			}
			word := string(runes[i:j])
			switch strings.ToUpper(word) {
			case "AND":
				toks = append(toks, cqlToken{cqlAndKw, word})
			case "OR":
				toks = append(toks, cqlToken{cqlOrKw, word})
			default:
				toks = append(toks, cqlToken{cqlIdent, word})
			}
			i = j
		}
	}
	toks = append(toks, cqlToken{cqlEOF, ""})
	return toks, nil
}

// --- recursive-descent parser: or -> and -> comparison | '(' or ')' ---

type cqlParser struct {
	toks []cqlToken
	pos  int
}

func (p *cqlParser) peek() cqlToken { return p.toks[p.pos] }

func (p *cqlParser) next() cqlToken {
	t := p.toks[p.pos]
	if t.kind != cqlEOF {
		p.pos++
	}
	return t
}

func (p *cqlParser) parseOr() (cqlExpr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == cqlOrKw {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &cqlOr{left: left, right: right}
	}
	return left, nil
}

func (p *cqlParser) parseAnd() (cqlExpr, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == cqlAndKw {
		p.next()
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		left = &cqlAnd{left: left, right: right}
	}
	return left, nil
}

func (p *cqlParser) parseAtom() (cqlExpr, error) {
	if p.peek().kind == cqlLParen {
		p.next()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != cqlRParen {
			return nil, fmt.Errorf("dynamiclayer: expected ')' in CQL expression")
		}
		p.next()
		return expr, nil
	}
	return p.parseComparison()
}

func (p *cqlParser) parseComparison() (cqlExpr, error) {
	key := p.next()
	if key.kind != cqlIdent {
		return nil, fmt.Errorf("dynamiclayer: expected property name, got %q", key.text)
	}
	op := p.next()
	if op.kind != cqlOp {
		return nil, fmt.Errorf("dynamiclayer: expected comparison operator after %q", key.text)
	}
	val := p.next()
	if val.kind != cqlString && val.kind != cqlIdent {
		return nil, fmt.Errorf("dynamiclayer: expected value after operator %q", op.text)
	}
	return &cqlCmp{key: key.text, op: op.text, value: val.text}, nil
}
