// Package patch normalizes raw feed items into the canonical item schema
// using per-source RFC 6902 programs and optional post-patch hooks.
package patch

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"gopkg.in/yaml.v3"
)

// Operation names.
const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpMove    = "move"
	OpCopy    = "copy"
	OpTest    = "test"
)

// ErrInvalidOperation is wrapped by every operation validation failure.
var ErrInvalidOperation = errors.New("invalid patch operation")

// Operation is a single RFC 6902 operation. Optional operations whose
// source path is missing are skipped instead of failing the program.
type Operation struct {
	Op       string `yaml:"op" json:"op"`
	Path     string `yaml:"path" json:"path"`
	From     string `yaml:"from,omitempty" json:"from,omitempty"`
	Value    any    `yaml:"value,omitempty" json:"value,omitempty"`
	Optional bool   `yaml:"optional,omitempty" json:"optional,omitempty"`

	// HasValue distinguishes an explicit null value from an absent one.
	HasValue bool `yaml:"-" json:"-"`
}

// UnmarshalYAML records whether a value key was present.
func (o *Operation) UnmarshalYAML(node *yaml.Node) error {
	type plain Operation
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*o = Operation(p)

	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "value" {
				o.HasValue = true
			}
		}
	}
	return nil
}

// Add builds an add operation.
func Add(path string, value any) Operation {
	return Operation{Op: OpAdd, Path: path, Value: value, HasValue: true}
}

// Replace builds a replace operation.
func Replace(path string, value any) Operation {
	return Operation{Op: OpReplace, Path: path, Value: value, HasValue: true}
}

// Remove builds a remove operation.
func Remove(path string) Operation {
	return Operation{Op: OpRemove, Path: path}
}

// Move builds a move operation.
func Move(from, path string) Operation {
	return Operation{Op: OpMove, From: from, Path: path}
}

// Copy builds a copy operation.
func Copy(from, path string) Operation {
	return Operation{Op: OpCopy, From: from, Path: path}
}

// Test builds a test operation.
func Test(path string, value any) Operation {
	return Operation{Op: OpTest, Path: path, Value: value, HasValue: true}
}

// Optionally marks o as skippable when its source path is missing.
func Optionally(o Operation) Operation {
	o.Optional = true
	return o
}

func (o Operation) String() string {
	if o.From != "" {
		return fmt.Sprintf("%s %s -> %s", o.Op, o.From, o.Path)
	}
	return fmt.Sprintf("%s %s", o.Op, o.Path)
}

// Validate checks the operation against RFC 6902 structure.
func (o Operation) Validate() error {
	switch o.Op {
	case OpAdd, OpReplace, OpTest:
		if !o.HasValue {
			return fmt.Errorf("%w: %s requires a value", ErrInvalidOperation, o.Op)
		}
		if o.From != "" {
			return fmt.Errorf("%w: %s does not take from", ErrInvalidOperation, o.Op)
		}
	case OpRemove:
		if o.From != "" {
			return fmt.Errorf("%w: remove does not take from", ErrInvalidOperation)
		}
		if o.HasValue {
			return fmt.Errorf("%w: remove does not take a value", ErrInvalidOperation)
		}
	case OpMove, OpCopy:
		if o.From == "" {
			return fmt.Errorf("%w: %s requires from", ErrInvalidOperation, o.Op)
		}
		if err := validPointer(o.From); err != nil {
			return fmt.Errorf("%w: from: %w", ErrInvalidOperation, err)
		}
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, o.Op)
	}

	if err := validPointer(o.Path); err != nil {
		return fmt.Errorf("%w: path: %w", ErrInvalidOperation, err)
	}
	if o.Optional && o.Op != OpRemove && o.Op != OpMove && o.Op != OpCopy {
		return fmt.Errorf("%w: only remove, move and copy may be optional", ErrInvalidOperation)
	}
	return nil
}

func validPointer(p string) error {
	if p != "" && !strings.HasPrefix(p, "/") {
		return fmt.Errorf("json pointer %q must start with /", p)
	}
	for i := 0; i < len(p); i++ {
		if p[i] == '~' && (i+1 >= len(p) || (p[i+1] != '0' && p[i+1] != '1')) {
			return fmt.Errorf("json pointer %q has an invalid escape", p)
		}
	}
	return nil
}

type compiledOp struct {
	op    Operation
	patch jsonpatch.Patch
	opts  *jsonpatch.ApplyOptions
}

func (o Operation) compile() (compiledOp, error) {
	if err := o.Validate(); err != nil {
		return compiledOp{}, err
	}

	doc := map[string]any{"op": o.Op, "path": o.Path}
	if o.From != "" {
		doc["from"] = o.From
	}
	if o.HasValue {
		doc["value"] = o.Value
	}
	raw, err := json.Marshal([]any{doc})
	if err != nil {
		return compiledOp{}, fmt.Errorf("%w: encode: %w", ErrInvalidOperation, err)
	}

	p, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return compiledOp{}, fmt.Errorf("%w: decode: %w", ErrInvalidOperation, err)
	}

	opts := jsonpatch.NewApplyOptions()
	opts.EnsurePathExistsOnAdd = o.Op == OpAdd
	opts.AllowMissingPathOnRemove = o.Optional && o.Op == OpRemove

	return compiledOp{op: o, patch: p, opts: opts}, nil
}
