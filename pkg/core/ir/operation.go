// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"github.com/gomlx/exceptions"
)

// Value is the output slot of an Operation. Values are referenced by pointer, never copied:
// many operations may read the same value, but it has exactly one producer.
type Value struct {
	op    *Operation
	index int
	typ   Type
}

// Type of the value. It may be nil for operations that declare an absent result.
func (v *Value) Type() Type { return v.typ }

// DefiningOp returns the operation that produces the value.
func (v *Value) DefiningOp() *Operation { return v.op }

// Index of the value among the results of its defining operation.
func (v *Value) Index() int { return v.index }

// Operation is a node of the IR: an operator name, its operands, its attributes and its
// typed results.
//
// Operations are immutable once created. They are owned by the Block they are pushed to.
type Operation struct {
	name     string
	operands []*Value
	attrs    Attributes
	results  []*Value

	block *Block
	id    int
}

// NewOperation creates a new operation. It is not part of any block until Block.PushBack is called.
//
// Operands may contain nil entries for absent optional inputs. The attributes map is copied.
func NewOperation(name string, operands []*Value, attrs Attributes, resultTypes []Type) *Operation {
	op := &Operation{
		name:     name,
		operands: append([]*Value(nil), operands...),
		attrs:    attrs.Clone(),
		id:       -1,
	}
	op.results = make([]*Value, len(resultTypes))
	for i, t := range resultTypes {
		op.results[i] = &Value{op: op, index: i, typ: t}
	}
	return op
}

// Name of the operator, e.g. "op.relu".
func (op *Operation) Name() string { return op.name }

// NumOperands returns the number of operands, including absent ones.
func (op *Operation) NumOperands() int { return len(op.operands) }

// Operand returns the i-th operand, or nil if it is an absent optional input.
func (op *Operation) Operand(i int) *Value { return op.operands[i] }

// Operands returns a copy of the list of operands.
func (op *Operation) Operands() []*Value { return append([]*Value(nil), op.operands...) }

// NumResults returns the number of results.
func (op *Operation) NumResults() int { return len(op.results) }

// Result returns the i-th result.
func (op *Operation) Result(i int) *Value { return op.results[i] }

// Results returns a copy of the list of results.
func (op *Operation) Results() []*Value { return append([]*Value(nil), op.results...) }

// HasAttribute returns whether the attribute is set.
func (op *Operation) HasAttribute(name string) bool {
	_, found := op.attrs[name]
	return found
}

// Attribute returns the named attribute, and whether it was found.
func (op *Operation) Attribute(name string) (Attribute, bool) {
	attr, found := op.attrs[name]
	return attr, found
}

// Attributes returns a copy of the attributes of the operation.
func (op *Operation) Attributes() Attributes { return op.attrs.Clone() }

// Block owning the operation, or nil if it was not pushed yet.
func (op *Operation) Block() *Block { return op.block }

// Id is the position of the operation in its block, or -1 if it was not pushed yet.
func (op *Operation) Id() int { return op.id }

// Block is an ordered list of operations. It only grows: operations are appended with PushBack,
// and the creation order is the execution order.
type Block struct {
	ops []*Operation
}

// PushBack appends the operation to the block, which becomes its owner.
//
// It panics if the operation already belongs to a block.
func (b *Block) PushBack(op *Operation) {
	if op.block != nil {
		exceptions.Panicf("operation %q (#%d) already belongs to a block", op.name, op.id)
	}
	op.block = b
	op.id = len(b.ops)
	b.ops = append(b.ops, op)
}

// Append creates a new operation and pushes it to the block. It returns the new operation.
func (b *Block) Append(name string, operands []*Value, attrs Attributes, resultTypes ...Type) *Operation {
	op := NewOperation(name, operands, attrs, resultTypes)
	b.PushBack(op)
	return op
}

// Len returns the number of operations in the block.
func (b *Block) Len() int { return len(b.ops) }

// Op returns the i-th operation of the block.
func (b *Block) Op(i int) *Operation { return b.ops[i] }

// Operations returns the operations of the block, in creation order.
// The returned slice must not be modified.
func (b *Block) Operations() []*Operation { return b.ops }

// Program is a named top-level block.
type Program struct {
	name  string
	block *Block
}

// NewProgram returns an empty program.
func NewProgram(name string) *Program {
	return &Program{name: name, block: &Block{}}
}

// Name of the program.
func (p *Program) Name() string { return p.name }

// Block returns the top-level block of the program.
func (p *Program) Block() *Block { return p.block }
