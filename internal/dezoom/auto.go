package dezoom

import (
	"fmt"
	"log"
	"strings"
)

// namedError pairs a probe's name with the error it returned, so a final
// aggregate failure can explain what every probe tried and why it gave up.
type namedError struct {
	name string
	err  error
}

// AutoProbe fans an Input out across every registered probe, keeping only
// the ones that ask for more data. While any NeedsData URI is outstanding
// it returns one of them (the most recently recorded); once none remain it
// returns every level collected so far, or an aggregate error if no probe
// succeeded. Call Probe
// again with the same Input's URI and freshly loaded Contents once the
// caller has fetched whatever NeedsDataError asked for — AutoProbe tracks
// which sub-probes already gave a final answer and does not re-run them.
type AutoProbe struct {
	probes    []Probe
	errors    []namedError
	successes []ZoomLevel
	needsURIs []string
}

// NewAutoProbe builds an AutoProbe that tries every probe in probes, in
// order, on each call.
func NewAutoProbe(probes []Probe) *AutoProbe {
	cp := make([]Probe, len(probes))
	copy(cp, probes)
	return &AutoProbe{probes: cp}
}

func (a *AutoProbe) Name() string { return "auto" }

func (a *AutoProbe) Probe(in Input) ([]ZoomLevel, error) {
	i := 0
	for i != len(a.probes) {
		p := a.probes[i]
		levels, err := p.Probe(in)
		keep := false
		switch e := err.(type) {
		case nil:
			log.Printf("probe %q found %d zoom levels", p.Name(), len(levels))
			a.successes = append(a.successes, levels...)
		case *NeedsDataError:
			log.Printf("probe %q requested to load %s", p.Name(), e.URI)
			if !containsString(a.needsURIs, e.URI) {
				a.needsURIs = append(a.needsURIs, e.URI)
			}
			keep = true
		default:
			log.Printf("probe %q cannot process this input: %v", p.Name(), err)
			a.errors = append(a.errors, namedError{name: p.Name(), err: err})
		}
		if keep {
			i++
		} else {
			a.probes = append(a.probes[:i], a.probes[i+1:]...)
		}
	}

	if n := len(a.needsURIs); n > 0 {
		uri := a.needsURIs[n-1]
		a.needsURIs = a.needsURIs[:n-1]
		return nil, &NeedsDataError{URI: uri}
	}
	if len(a.successes) == 0 {
		log.Printf("no probe recognized %q", in.URI)
		errs := a.errors
		a.errors = nil
		return nil, Wrap(&AggregateError{Errors: errs})
	}
	successes := a.successes
	a.successes = nil
	return successes, nil
}

func containsString(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}

// AggregateError collects what every probe said when none of them
// recognized an input, formatted so a user can tell what was tried.
type AggregateError struct {
	Errors []namedError
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "no probe is available"
	}
	var b strings.Builder
	b.WriteString("none of the probes recognized this input; they reported:\n")
	for _, ne := range e.Errors {
		fmt.Fprintf(&b, " - %s: %v\n", ne.name, ne.err)
	}
	b.WriteString("\nIf this format isn't supported yet, check the project's issue tracker.")
	return b.String()
}
