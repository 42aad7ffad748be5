package customyaml

import (
	"fmt"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/dezoomify/dezoomify-go/internal/geometry"
)

func TestURLTemplateEvaluation(t *testing.T) {
	tmpl, err := parseURLTemplate("a {{x}} b {{y}} c")
	if err != nil {
		t.Fatalf("parseURLTemplate: %v", err)
	}
	got, err := tmpl.render(map[string]interface{}{"x": int64(0), "y": int64(10)})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "a 0 b 10 c"; got != want {
		t.Fatalf("render = %q, want %q", got, want)
	}
}

func TestURLTemplateEvaluationLeadingZeroes(t *testing.T) {
	tmpl, err := parseURLTemplate("{{x:03}} {{ x + y/2 :02}}")
	if err != nil {
		t.Fatalf("parseURLTemplate: %v", err)
	}
	got, err := tmpl.render(map[string]interface{}{"x": int64(0), "y": int64(10)})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "000 05"; got != want {
		t.Fatalf("render = %q, want %q", got, want)
	}
}

func refString(pos geometry.Vec2d, url string) string {
	return fmt.Sprintf("%d %d %s", pos.X, pos.Y, url)
}

func TestTileIteration(t *testing.T) {
	var ts tileSet
	doc := []byte(`
variables:
  - name: x
    from: 0
    to: 1
  - name: y
    from: 0
    to: 1
url_template: "{{x}}/{{y}}"
`)
	if err := yaml.Unmarshal(doc, &ts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	refs, err := ts.tiles()
	if err != nil {
		t.Fatalf("tiles: %v", err)
	}
	want := []string{"0 0 0/0", "0 1 0/1", "1 0 1/0", "1 1 1/1"}
	if len(refs) != len(want) {
		t.Fatalf("got %d refs, want %d", len(refs), len(want))
	}
	for i, w := range want {
		if got := refString(refs[i].Position, refs[i].URL); got != w {
			t.Fatalf("ref %d = %q, want %q", i, got, w)
		}
	}
}

func TestTileSetFromYAML(t *testing.T) {
	var ts tileSet
	doc := []byte(`
variables:
  - name: x
    from: 0
    to: 1
  - name: y
    from: 0
    to: 1
  - name: tile_size
    value: 100
url_template: "{{x*tile_size}}/{{y*tile_size}}"
`)
	if err := yaml.Unmarshal(doc, &ts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	refs, err := ts.tiles()
	if err != nil {
		t.Fatalf("tiles: %v", err)
	}
	want := []string{"0 0 0/0", "0 1 0/100", "1 0 100/0", "1 1 100/100"}
	if len(refs) != len(want) {
		t.Fatalf("got %d refs, want %d", len(refs), len(want))
	}
	for i, w := range want {
		if got := refString(refs[i].Position, refs[i].URL); got != w {
			t.Fatalf("ref %d = %q, want %q", i, got, w)
		}
	}
}

func TestVariableIteration(t *testing.T) {
	v := variable{name: "x", from: 3, to: -3, step: -3}
	got := v.values()
	want := []int64{3, 0, -3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestVariableValidityCheckName(t *testing.T) {
	v := variable{name: "hello world", from: 0, to: 1, step: 1}
	err := v.check()
	if err == nil {
		t.Fatal("expected an error for an invalid variable name")
	}
	if got := err.Error(); got == "" || !contains(got, "invalid variable name") {
		t.Fatalf("error = %q, want it to mention an invalid variable name", got)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || (len(substr) > 0 && indexOf(s, substr) >= 0))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestIterContexts(t *testing.T) {
	vars := variableList{
		{variable: variable{name: "x", from: 0, to: 1, step: 1}},
		{variable: variable{name: "y", from: 8, to: 9, step: 1}},
	}
	contexts := vars.iterContexts()
	want := []struct {
		x, y int64
	}{
		{0, 8}, {0, 9}, {1, 8}, {1, 9},
	}
	if len(contexts) != len(want) {
		t.Fatalf("got %d contexts, want %d", len(contexts), len(want))
	}
	for i, w := range want {
		if contexts[i]["x"] != w.x || contexts[i]["y"] != w.y {
			t.Fatalf("context %d = %+v, want x=%d y=%d", i, contexts[i], w.x, w.y)
		}
	}
}

func TestHasDefaultUserAgent(t *testing.T) {
	var doc document
	if err := yaml.Unmarshal([]byte("url_template: test.com\nvariables: []\n"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	headers := doc.headers
	if len(headers) == 0 {
		headers = defaultHeaders()
	}
	if _, ok := headers["User-Agent"]; !ok {
		t.Fatalf("headers = %v, want a User-Agent entry", headers)
	}
}
