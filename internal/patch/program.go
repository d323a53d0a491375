package patch

import (
	"encoding/json"
	"errors"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// OpError reports the operation that aborted a program.
type OpError struct {
	Source string
	Index  int
	Op     Operation
	Err    error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("patch %s: op %d (%s): %v", e.Source, e.Index, e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Program is the ordered operation list for one source, plus an optional
// hook run after the last operation.
type Program struct {
	Source string      `yaml:"-"`
	Ops    []Operation `yaml:"ops"`
	Hook   string      `yaml:"hook,omitempty"`

	compiled []compiledOp
	hook     Hook
}

// compile validates every operation and resolves the hook.
func (p *Program) compile(hooks *HookRegistry) error {
	p.compiled = make([]compiledOp, 0, len(p.Ops))
	for i, op := range p.Ops {
		c, err := op.compile()
		if err != nil {
			return fmt.Errorf("program %s: op %d (%s): %w", p.Source, i, op, err)
		}
		p.compiled = append(p.compiled, c)
	}

	p.hook = nil
	if p.Hook != "" {
		h, err := hooks.Lookup(p.Hook)
		if err != nil {
			return fmt.Errorf("program %s: %w", p.Source, err)
		}
		p.hook = h
	}
	return nil
}

// Apply runs the program against raw. raw is not modified.
func (p *Program) Apply(raw map[string]any) (map[string]any, error) {
	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("patch %s: encode item: %w", p.Source, err)
	}

	for i, c := range p.compiled {
		out, applyErr := c.patch.ApplyWithOptions(doc, c.opts)
		if applyErr != nil {
			if c.op.Optional && errors.Is(applyErr, jsonpatch.ErrMissing) {
				continue
			}
			return nil, &OpError{Source: p.Source, Index: i, Op: c.op, Err: applyErr}
		}
		doc = out
	}

	var patched map[string]any
	if err := json.Unmarshal(doc, &patched); err != nil {
		return nil, fmt.Errorf("patch %s: result is not an object: %w", p.Source, err)
	}

	if p.hook != nil {
		hooked, _ := deepCopy(patched).(map[string]any)
		patched = p.hook(hooked)
	}
	return patched, nil
}
