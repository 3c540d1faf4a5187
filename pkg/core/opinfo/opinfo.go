// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package opinfo describes operators to the passes that lower them: their inputs and
// attributes, the kernel that implements them, and which of their inputs or attributes
// determine the kernel key.
//
// OpInfo is the declaration, Parser the indexed accessor used by the passes, and Catalog the
// registry of all known operators.
package opinfo

import (
	"github.com/gomlx/kernelpass/pkg/support/sets"
)

// Attribute type names used in AttributeInfo.TypeName.
const (
	AttrTypeBool     = "BoolAttribute"
	AttrTypeInt32    = "Int32Attribute"
	AttrTypeInt64    = "Int64Attribute"
	AttrTypeFloat32  = "Float32Attribute"
	AttrTypeStr      = "StrAttribute"
	AttrTypeDataType = "DataTypeAttribute"
	AttrTypePlace    = "PlaceAttribute"
	AttrTypeIntArray = "IntArrayAttribute"
)

// InputInfo declares one input of an operator.
type InputInfo struct {
	Name     string
	TypeName string
	Optional bool

	// IsTensorAttribute marks inputs that carry, as a tensor, the value of what would
	// otherwise be a compile-time attribute (e.g. a shape). They don't take part in the
	// kernel key resolution, and kernels prefer to read them from host memory.
	IsTensorAttribute bool
}

// AttributeInfo declares one attribute of an operator.
type AttributeInfo struct {
	Name     string
	TypeName string
}

// OutputInfo declares one output of an operator.
type OutputInfo struct {
	Name     string
	TypeName string
	Optional bool
}

// RuntimeInfo tells how an operator maps to a kernel.
type RuntimeInfo struct {
	// KernelFunc lists the kernel names, the first one being the one used.
	KernelFunc []string

	// KernelParam lists the inputs and attributes passed to the kernel.
	KernelParam []string

	// KernelKeyBackend lists, in priority order, the slots that determine the kernel backend.
	// Each slot is either an input name or the name of a place attribute.
	KernelKeyBackend []string

	// KernelKeyDType lists, in priority order, the slots that determine the kernel dtype.
	// Each slot is a literal data type (see LiteralDTypes), an input name or the name of a
	// data type attribute.
	KernelKeyDType []string
}

// Trait is a capability of an operator.
type Trait int

const (
	// TraitInplace marks operators that write their result in the memory of one of their inputs.
	TraitInplace Trait = iota + 1
)

func (t Trait) String() string {
	switch t {
	case TraitInplace:
		return "inplace"
	}
	return "unknown_trait"
}

// OpInfo declares an operator.
type OpInfo struct {
	Name       string
	Inputs     []InputInfo
	Attributes []AttributeInfo
	Outputs    []OutputInfo
	Runtime    RuntimeInfo
	Traits     []Trait

	// Legacy operators are lowered to a distinct node kind, dispatched through the legacy
	// kernel interface. Their number of outputs is not checked against the kernel.
	Legacy bool
}

// Parser is an indexed, read-only view of an OpInfo.
type Parser struct {
	info            *OpInfo
	inputName2Id    map[string]int
	attrTypes       map[string]string
	tensorAttrs     sets.Set[int]
	traits          sets.Set[Trait]
	numTensorInputs int
}

// NewParser indexes the given OpInfo. The OpInfo must not be changed afterwards.
func NewParser(info *OpInfo) *Parser {
	p := &Parser{
		info:         info,
		inputName2Id: make(map[string]int, len(info.Inputs)),
		attrTypes:    make(map[string]string, len(info.Attributes)),
		tensorAttrs:  sets.Make[int](),
		traits:       sets.MakeWith(info.Traits...),
	}
	for i, input := range info.Inputs {
		p.inputName2Id[input.Name] = i
		if input.IsTensorAttribute {
			p.tensorAttrs.Insert(i)
		} else {
			p.numTensorInputs++
		}
	}
	for _, attr := range info.Attributes {
		p.attrTypes[attr.Name] = attr.TypeName
	}
	return p
}

// OpName returns the name of the operator.
func (p *Parser) OpName() string { return p.info.Name }

// Info returns the parsed declaration.
func (p *Parser) Info() *OpInfo { return p.info }

// KernelFuncName returns the name of the kernel implementing the operator, or "" if none.
func (p *Parser) KernelFuncName() string {
	if len(p.info.Runtime.KernelFunc) == 0 {
		return ""
	}
	return p.info.Runtime.KernelFunc[0]
}

// KernelKeyBackendSlots returns the slots determining the kernel backend, in priority order.
func (p *Parser) KernelKeyBackendSlots() []string { return p.info.Runtime.KernelKeyBackend }

// KernelKeyDTypeSlots returns the slots determining the kernel dtype, in priority order.
func (p *Parser) KernelKeyDTypeSlots() []string { return p.info.Runtime.KernelKeyDType }

// InputIndex returns the index of the named input, and whether it exists.
func (p *Parser) InputIndex(name string) (int, bool) {
	idx, found := p.inputName2Id[name]
	return idx, found
}

// NumInputs returns the number of declared inputs, including tensor attributes.
func (p *Parser) NumInputs() int { return len(p.info.Inputs) }

// IsTensorAttribute returns whether the input at index carries a compile-time attribute.
func (p *Parser) IsTensorAttribute(index int) bool { return p.tensorAttrs.Has(index) }

// InputTensorNumber returns the number of inputs that are not tensor attributes.
func (p *Parser) InputTensorNumber() int { return p.numTensorInputs }

// AttrTypeName returns the declared type name of the attribute, and whether it was declared.
func (p *Parser) AttrTypeName(name string) (string, bool) {
	typeName, found := p.attrTypes[name]
	return typeName, found
}

// HasTrait returns whether the operator declares the trait.
func (p *Parser) HasTrait(trait Trait) bool { return p.traits.Has(trait) }

// IsLegacy returns whether the operator is dispatched through the legacy kernel interface.
func (p *Parser) IsLegacy() bool { return p.info.Legacy }
