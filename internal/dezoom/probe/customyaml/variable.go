package customyaml

import (
	"fmt"
	"math"
	"regexp"

	"gopkg.in/yaml.v3"
)

var variableNameRE = regexp.MustCompile(`^\w+$`)

// variable is one named integer range: from, to, step (default 1), walked
// inclusive of both ends regardless of direction (step may be negative).
type variable struct {
	name string
	from int64
	to   int64
	step int64
}

// constant is a variable with a single fixed value, written in YAML as
// "name: value" instead of the from/to/step form.
type constant struct {
	name  string
	value int64
}

// varOrConst is one entry of a tiles.yaml "variables" list: either a ranged
// variable or a single constant, told apart by which keys are present.
type varOrConst struct {
	isConst  bool
	variable variable
	constant constant
}

func (v varOrConst) name() string {
	if v.isConst {
		return v.constant.name
	}
	return v.variable.name
}

// values returns every value this entry takes, in order.
func (v varOrConst) values() []int64 {
	if v.isConst {
		return []int64{v.constant.value}
	}
	return v.variable.values()
}

func (v variable) values() []int64 {
	out := make([]int64, 0, v.steps()+1)
	for cur := v.from; v.inRange(cur); cur += v.step {
		out = append(out, cur)
	}
	return out
}

func (v variable) inRange(i int64) bool {
	if v.from <= v.to {
		return v.from <= i && i <= v.to
	}
	return v.to <= i && i <= v.from
}

func (v variable) steps() int64 {
	if v.step == 0 {
		return -1
	}
	return (v.to - v.from) / v.step
}

// check validates a variable the way it would be rejected before any value
// is ever produced: a bad name, a step that never reaches "to", or a range
// so large it couldn't be represented as tile grid coordinates.
func (v variable) check() error {
	if !variableNameRE.MatchString(v.name) {
		return fmt.Errorf("invalid variable name: %q", v.name)
	}
	steps := v.steps()
	if steps < 0 {
		return fmt.Errorf("variable %q never reaches its end value with the given step", v.name)
	}
	if steps > int64(math.MaxUint32) {
		return fmt.Errorf("variable %q has too many values", v.name)
	}
	return nil
}

func (v *varOrConst) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name  string `yaml:"name"`
		Value *int64 `yaml:"value"`
		From  *int64 `yaml:"from"`
		To    *int64 `yaml:"to"`
		Step  *int64 `yaml:"step"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Value != nil {
		*v = varOrConst{isConst: true, constant: constant{name: raw.Name, value: *raw.Value}}
		return nil
	}
	if raw.From == nil || raw.To == nil {
		return fmt.Errorf("variable %q needs either a value or a from/to range", raw.Name)
	}
	step := int64(1)
	if raw.Step != nil {
		step = *raw.Step
	}
	vv := variable{name: raw.Name, from: *raw.From, to: *raw.To, step: step}
	if err := vv.check(); err != nil {
		return err
	}
	*v = varOrConst{variable: vv}
	return nil
}

// variableList is the "variables" list of a tiles.yaml document.
type variableList []varOrConst

// iterContexts returns the Cartesian product of all variables' value
// sequences, as evaluation contexts for expr-lang expressions. The first
// variable varies slowest, the last variable fastest.
func (vs variableList) iterContexts() []map[string]interface{} {
	contexts := []map[string]interface{}{{}}
	for _, v := range vs {
		values := v.values()
		name := v.name()
		next := make([]map[string]interface{}, 0, len(contexts)*len(values))
		for _, ctx := range contexts {
			for _, val := range values {
				extended := make(map[string]interface{}, len(ctx)+1)
				for k, vv := range ctx {
					extended[k] = vv
				}
				extended[name] = val
				next = append(next, extended)
			}
		}
		contexts = next
	}
	return contexts
}
