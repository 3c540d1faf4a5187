// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernellower

import (
	"github.com/gomlx/kernelpass/pkg/core/ir"
)

// ValueMap links the values and operations of the source program to their counterparts in the
// lowered program.
//
// Several source values may point to the same lowered value, but each source value has at most
// one counterpart: recording it again replaces the previous entry.
type ValueMap struct {
	values map[*ir.Value]*ir.Value
	ops    map[*ir.Operation]*ir.Operation
}

// NewValueMap returns an empty map.
func NewValueMap() *ValueMap {
	return &ValueMap{
		values: make(map[*ir.Value]*ir.Value),
		ops:    make(map[*ir.Operation]*ir.Operation),
	}
}

// Record sets the lowered counterpart of a source value.
func (m *ValueMap) Record(source, lowered *ir.Value) {
	m.values[source] = lowered
}

// RecordOp sets the lowered counterpart of a source operation, and pairs their results by index.
func (m *ValueMap) RecordOp(source, lowered *ir.Operation) {
	m.ops[source] = lowered
	n := min(source.NumResults(), lowered.NumResults())
	for i := range n {
		m.values[source.Result(i)] = lowered.Result(i)
	}
}

// Lookup returns the lowered counterpart of a source value, if one was recorded.
func (m *ValueMap) Lookup(source *ir.Value) (*ir.Value, bool) {
	lowered, found := m.values[source]
	return lowered, found
}

// LookupOp returns the lowered counterpart of a source operation, if one was recorded.
func (m *ValueMap) LookupOp(source *ir.Operation) (*ir.Operation, bool) {
	lowered, found := m.ops[source]
	return lowered, found
}

// Len returns the number of values recorded.
func (m *ValueMap) Len() int { return len(m.values) }

// Resolve returns the lowered counterpart of the operand of op at the given index.
// Absent operands resolve to nil.
//
// It panics with an UnmappedOperandError if the operand has no counterpart yet.
func (m *ValueMap) Resolve(op *ir.Operation, index int) *ir.Value {
	operand := op.Operand(index)
	if operand == nil {
		return nil
	}
	lowered, found := m.values[operand]
	if !found {
		panicUnmapped(op.Name(), index)
	}
	return lowered
}

// ResolveAll resolves all operands of op, see Resolve.
func (m *ValueMap) ResolveAll(op *ir.Operation) []*ir.Value {
	resolved := make([]*ir.Value, op.NumOperands())
	for i := range resolved {
		resolved[i] = m.Resolve(op, i)
	}
	return resolved
}
