// Package validator checks generated extension descriptors against an
// embedded CUE contract. A descriptor that fails the contract means the
// synthesizer produced something the Scratch runtime would reject, so
// callers treat a failure as an internal error rather than a user error.
package validator

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed descriptor_schema.cue
var descriptorSchema []byte

const descriptorDef = "#Descriptor"

// Validator holds a compiled schema. It is not safe for concurrent use;
// create one per goroutine.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// New compiles the embedded descriptor schema.
func New() (*Validator, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(descriptorSchema)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling descriptor schema: %w", schema.Err())
	}

	return &Validator{
		ctx:    ctx,
		schema: schema,
	}, nil
}

// Validate checks a descriptor (anything that marshals to the getInfo
// payload shape) against #Descriptor.
func (v *Validator) Validate(descriptor any) error {
	jsonBytes, err := json.Marshal(descriptor)
	if err != nil {
		return fmt.Errorf("marshaling descriptor to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON is Validate for an already encoded payload.
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	unified, err := v.unify(jsonBytes)
	if err != nil {
		return err
	}
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("descriptor schema validation failed: %w", err)
	}
	return nil
}

// ValidationErrors lists every contract failure, or nil when the
// descriptor is valid.
func (v *Validator) ValidationErrors(descriptor any) []string {
	jsonBytes, err := json.Marshal(descriptor)
	if err != nil {
		return []string{fmt.Sprintf("marshal error: %v", err)}
	}

	unified, err := v.unify(jsonBytes)
	if err != nil {
		return []string{err.Error()}
	}

	err = unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var errs []string
	for _, e := range errors.Errors(err) {
		errs = append(errs, e.Error())
	}
	return errs
}

func (v *Validator) unify(jsonBytes []byte) (cue.Value, error) {
	dataValue := v.ctx.CompileBytes(jsonBytes)
	if dataValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("compiling descriptor as CUE: %w", dataValue.Err())
	}

	def := v.schema.LookupPath(cue.ParsePath(descriptorDef))
	if def.Err() != nil {
		return cue.Value{}, fmt.Errorf("looking up %s definition: %w", descriptorDef, def.Err())
	}

	return def.Unify(dataValue), nil
}
