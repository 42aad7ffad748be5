package customyaml

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
	"github.com/dezoomify/dezoomify-go/internal/tile"
)

var (
	exprRE = regexp.MustCompile(`\{\{.*?}}`)
	zeroRE = regexp.MustCompile(`:0(\d+)$`)
)

// compiledExpr is one expr-lang program, evaluated once per variable
// context.
type compiledExpr struct {
	program *vm.Program
	source  string
}

func compileExpr(source string) (compiledExpr, error) {
	p, err := expr.Compile(source)
	if err != nil {
		return compiledExpr{}, fmt.Errorf("bad expression %q: %w", source, err)
	}
	return compiledExpr{program: p, source: source}, nil
}

func (c compiledExpr) eval(ctx map[string]interface{}) (interface{}, error) {
	out, err := expr.Run(c.program, ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to evaluate %q: %w", c.source, err)
	}
	return out, nil
}

// intTemplate evaluates to an integer; it backs a tile's x and y
// coordinates.
type intTemplate struct {
	expr compiledExpr
}

func parseIntTemplate(source string) (intTemplate, error) {
	e, err := compileExpr(source)
	if err != nil {
		return intTemplate{}, err
	}
	return intTemplate{expr: e}, nil
}

func (t intTemplate) eval(ctx map[string]interface{}) (uint32, error) {
	v, err := t.expr.eval(ctx)
	if err != nil {
		return 0, err
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("%q did not evaluate to a number: %w", t.expr.source, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%q evaluated to a negative number: %d", t.expr.source, n)
	}
	return uint32(n), nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

// toString renders an evaluated expr-lang value the way the string gets
// substituted into a URL template.
func toString(v interface{}) string {
	switch n := v.(type) {
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", n)
	}
}

// padLeft zero-pads s on the left up to width characters (Rust's
// "{:0>width$}" applied to a string, not a number).
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// urlPart is one piece of a parsed URL template: either literal text or an
// expression with its minimum zero-padded width.
type urlPart struct {
	literal  string
	isExpr   bool
	expr     compiledExpr
	minWidth int
}

// urlTemplate is a "{{expr}}"/"{{expr:0N}}" tile URL template, split into
// constant and expression parts ahead of time.
type urlTemplate struct {
	parts []urlPart
}

func parseURLTemplate(input string) (urlTemplate, error) {
	var parts []urlPart
	pos := 0
	matches := exprRE.FindAllStringIndex(input, -1)
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > pos {
			parts = append(parts, urlPart{literal: input[pos:start]})
		}
		inner := input[start+2 : end-2] // strip "{{" and "}}"
		source := inner
		minWidth := 0
		if zm := zeroRE.FindStringSubmatchIndex(inner); zm != nil {
			width, err := strconv.Atoi(inner[zm[2]:zm[3]])
			if err != nil {
				return urlTemplate{}, fmt.Errorf("bad padding width in %q: %w", inner, err)
			}
			minWidth = width
			source = inner[:zm[0]]
		}
		e, err := compileExpr(source)
		if err != nil {
			return urlTemplate{}, err
		}
		parts = append(parts, urlPart{isExpr: true, expr: e, minWidth: minWidth})
		pos = end
	}
	if pos < len(input) {
		parts = append(parts, urlPart{literal: input[pos:]})
	}
	return urlTemplate{parts: parts}, nil
}

func (t urlTemplate) render(ctx map[string]interface{}) (string, error) {
	var sb strings.Builder
	for _, p := range t.parts {
		if !p.isExpr {
			sb.WriteString(p.literal)
			continue
		}
		v, err := p.expr.eval(ctx)
		if err != nil {
			return "", err
		}
		sb.WriteString(padLeft(toString(v), p.minWidth))
	}
	return sb.String(), nil
}

// tileSet is the full tiles.yaml document: a set of variables and the
// templates that turn one variable context into a tile's URL and (x, y)
// position.
type tileSet struct {
	variables  variableList
	urlTmpl    urlTemplate
	xTemplate  intTemplate
	yTemplate  intTemplate
}

func (ts *tileSet) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Variables   variableList `yaml:"variables"`
		URLTemplate string       `yaml:"url_template"`
		XTemplate   *string      `yaml:"x_template"`
		YTemplate   *string      `yaml:"y_template"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	urlTmpl, err := parseURLTemplate(raw.URLTemplate)
	if err != nil {
		return err
	}
	xSource, ySource := "x", "y"
	if raw.XTemplate != nil {
		xSource = *raw.XTemplate
	}
	if raw.YTemplate != nil {
		ySource = *raw.YTemplate
	}
	xTmpl, err := parseIntTemplate(xSource)
	if err != nil {
		return err
	}
	yTmpl, err := parseIntTemplate(ySource)
	if err != nil {
		return err
	}
	ts.variables = raw.Variables
	ts.urlTmpl = urlTmpl
	ts.xTemplate = xTmpl
	ts.yTemplate = yTmpl
	return nil
}

// tiles evaluates every variable context into a tile reference, in the
// same order the variables were declared (first variable slowest).
func (ts *tileSet) tiles() ([]tile.Reference, error) {
	contexts := ts.variables.iterContexts()
	refs := make([]tile.Reference, 0, len(contexts))
	for _, ctx := range contexts {
		url, err := ts.urlTmpl.render(ctx)
		if err != nil {
			return nil, err
		}
		x, err := ts.xTemplate.eval(ctx)
		if err != nil {
			return nil, err
		}
		y, err := ts.yTemplate.eval(ctx)
		if err != nil {
			return nil, err
		}
		refs = append(refs, tile.Reference{URL: url, Position: geometry.Vec2d{X: x, Y: y}})
	}
	return refs, nil
}
