// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernellower

import (
	"github.com/gomlx/kernelpass/pkg/core/ir"
)

// lowerStructural rebuilds a combine, slice or split: its result types are computed from the
// lowered operand types, no kernel is involved and attributes are kept as they are.
func (l *lowering) lowerStructural(op *ir.Operation) {
	var lowered *ir.Operation
	switch op.Name() {
	case ir.CombineOpName:
		for i := range op.NumOperands() {
			if v := l.values.Resolve(op, i); v != nil {
				if _, ok := v.Type().(ir.AllocatedType); !ok {
					panicUnsupported(op.Name(), "operand #%d has type %v, only allocated tensors can be combined", i, v.Type())
				}
			}
		}
		lowered = l.appendCombine(l.values.ResolveAll(op), op.Attributes())
	case ir.SliceOpName:
		list := l.listOperand(op)
		index := int(requireAttr[ir.Int32Attr](op, ir.AttrIndex))
		if index < 0 || index >= list.Len() {
			panicPrecondition(op.Name(), -1, "index %d out of range for a list of %d elements", index, list.Len())
		}
		lowered = l.block.Append(op.Name(), l.values.ResolveAll(op), op.Attributes(), list.Elements[index])
	case ir.SplitOpName:
		list := l.listOperand(op)
		if op.NumResults() != list.Len() {
			panicPrecondition(op.Name(), -1, "%d results for a list of %d elements", op.NumResults(), list.Len())
		}
		lowered = l.block.Append(op.Name(), l.values.ResolveAll(op), op.Attributes(), list.Elements...)
	default:
		panicUnsupported(op.Name(), "not a structural operator")
	}
	l.values.RecordOp(op, lowered)
}

// appendCombine appends a combine of the given values. Absent values become absent elements.
func (l *lowering) appendCombine(elements []*ir.Value, attrs ir.Attributes) *ir.Operation {
	types := make([]ir.Type, len(elements))
	for i, element := range elements {
		if element != nil {
			types[i] = element.Type()
		}
	}
	return l.block.Append(ir.CombineOpName, elements, attrs, ir.NewVectorType(types...))
}

// listOperand returns the lowered type of the single list operand of a slice or split.
func (l *lowering) listOperand(op *ir.Operation) ir.VectorType {
	if op.NumOperands() != 1 {
		panicPrecondition(op.Name(), -1, "expected one operand, got %d", op.NumOperands())
	}
	v := l.values.Resolve(op, 0)
	if v == nil {
		panicPrecondition(op.Name(), 0, "operand is absent")
	}
	list, ok := v.Type().(ir.VectorType)
	if !ok {
		panicUnsupported(op.Name(), "operand has type %v, only lists are accepted", v.Type())
	}
	return list
}
