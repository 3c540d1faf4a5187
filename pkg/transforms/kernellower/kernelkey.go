// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernellower

import (
	"math"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"github.com/gomlx/kernelpass/pkg/core/ir"
	"github.com/gomlx/kernelpass/pkg/core/opinfo"
	"github.com/gomlx/kernelpass/pkg/opset"
	"k8s.io/klog/v2"
)

// resolveKernelKey returns the kernel key of op, before any fallback is applied.
//
// Feeds and graph inputs take their key from their result type. Other operators try, in order:
// their declared dtype and backend slots, the accelerator threshold for generators, the
// tensors they read and, for the backend, the execution place.
func (l *lowering) resolveKernelKey(op *ir.Operation, parser *opinfo.Parser) dispatch.KernelKey {
	switch op.Name() {
	case opset.Feed:
		return dispatch.KernelKey{Backend: dispatch.BackendCPU, Layout: dispatch.LayoutAny, DType: resultDType(op)}
	case opset.Data:
		backend := dispatch.BackendOf(dispatch.Place(requireAttr[ir.PlaceAttr](op, ir.AttrPlace)))
		if backend == dispatch.BackendUndefined {
			backend = dispatch.BackendCPU
		}
		return dispatch.KernelKey{Backend: backend, Layout: dispatch.LayoutAny, DType: resultDType(op)}
	}

	var key dispatch.KernelKey
	if parser != nil {
		key.DType = l.dtypeFromSlots(op, parser)
		key.Backend = l.backendFromSlots(op, parser)
		if parser.InputTensorNumber() == 0 || zeroInputGenerators.Has(op.Name()) {
			if l.exceedsAcceleratorThreshold(op) {
				key.Backend = dispatch.BackendGPU
			}
			if key.Backend == dispatch.BackendUndefined {
				key.Backend = l.execBackend
			}
		}
	}

	if op.NumOperands() > 0 {
		suggested := l.operandsKeySet(op, parser).HighestPriorityKey()
		if key.Backend == dispatch.BackendUndefined {
			key.Backend = suggested.Backend
		}
		if key.Layout == dispatch.LayoutUndefined {
			key.Layout = suggested.Layout
		}
		if key.DType == dtypes.InvalidDType {
			key.DType = suggested.DType
		}
	}

	if key.Backend == dispatch.BackendUndefined {
		key.Backend = l.execBackend
	}
	if key.Layout == dispatch.LayoutUndefined {
		key.Layout = dispatch.LayoutAny
	}
	return key
}

// resultDType returns the dtype of the first result of op, which must be a DenseTensorType.
func resultDType(op *ir.Operation) dtypes.DType {
	if op.NumResults() == 0 {
		panicPrecondition(op.Name(), -1, "expected one result, got none")
	}
	dense, ok := op.Result(0).Type().(ir.DenseTensorType)
	if !ok {
		panicUnsupported(op.Name(), "result type %v, only dense tensors are accepted", op.Result(0).Type())
	}
	return dense.DType
}

// dtypeFromSlots returns the dtype given by the first of the declared dtype slots that
// defines one, or dtypes.InvalidDType.
func (l *lowering) dtypeFromSlots(op *ir.Operation, parser *opinfo.Parser) dtypes.DType {
	for _, slot := range parser.KernelKeyDTypeSlots() {
		dtype := dtypes.InvalidDType
		if literal, found := opinfo.LiteralDTypes[slot]; found {
			dtype = literal
		} else if index, found := parser.InputIndex(slot); found {
			if tensor := l.slotTensor(op, index); tensor != nil {
				dtype = tensor.Meta().DType
			}
		} else {
			requireDeclaredAttr(op, parser, slot, opinfo.AttrTypeDataType)
			dtype = dtypes.DType(requireAttr[ir.DTypeAttr](op, slot))
		}
		if dtype != dtypes.InvalidDType {
			return dtype
		}
	}
	return dtypes.InvalidDType
}

// backendFromSlots returns the backend given by the first of the declared backend slots that
// defines one, or dispatch.BackendUndefined.
func (l *lowering) backendFromSlots(op *ir.Operation, parser *opinfo.Parser) dispatch.Backend {
	for _, slot := range parser.KernelKeyBackendSlots() {
		backend := dispatch.BackendUndefined
		if index, found := parser.InputIndex(slot); found {
			if tensor := l.slotTensor(op, index); tensor != nil {
				backend = dispatch.BackendOf(tensor.Place())
			}
		} else {
			requireDeclaredAttr(op, parser, slot, opinfo.AttrTypePlace)
			backend = dispatch.BackendOf(dispatch.Place(requireAttr[ir.PlaceAttr](op, slot)))
		}
		if backend != dispatch.BackendUndefined {
			return backend
		}
	}
	return dispatch.BackendUndefined
}

// slotTensor returns the lowered tensor that the input at index holds, unwrapping one level of
// VectorType. It returns nil for absent inputs and empty lists.
func (l *lowering) slotTensor(op *ir.Operation, index int) ir.AllocatedType {
	if index >= op.NumOperands() {
		panicPrecondition(op.Name(), index, "declared input is missing, the operation has only %d operands", op.NumOperands())
	}
	value := l.values.Resolve(op, index)
	if value == nil {
		return nil
	}
	switch t := value.Type().(type) {
	case ir.AllocatedDenseTensorType, ir.AllocatedSelectedRowsType:
		return t.(ir.AllocatedType)
	case ir.VectorType:
		if t.Len() == 0 || t.Elements[0] == nil {
			return nil
		}
		if element, ok := t.Elements[0].(ir.AllocatedType); ok {
			return element
		}
		panicUnsupported(op.Name(), "operand #%d is a list of %v", index, t.Elements[0])
	default:
		panicUnsupported(op.Name(), "operand #%d has type %v", index, value.Type())
	}
	return nil
}

// exceedsAcceleratorThreshold applies the thresholdPolicies: it returns true if op generates
// more elements than the threshold and the execution place is an accelerator.
func (l *lowering) exceedsAcceleratorThreshold(op *ir.Operation) bool {
	policy, found := thresholdPolicies[op.Name()]
	if !found || !l.execBackend.IsAccelerator() || policy.shapeOperand >= op.NumOperands() {
		return false
	}
	shape := op.Operand(policy.shapeOperand)
	if shape == nil || shape.DefiningOp() == nil || shape.DefiningOp().Name() != policy.shapeProducer {
		return false
	}
	numElements := countElements(requireAttr[ir.IntArrayAttr](shape.DefiningOp(), policy.shapeAttr))
	exceeds := numElements > l.initOnAcceleratorThreshold
	if klog.V(6).Enabled() {
		klog.Infof("kernellower: %q generates %s elements (threshold %s): on accelerator=%v", op.Name(),
			humanize.Comma(numElements), humanize.Comma(l.initOnAcceleratorThreshold), exceeds)
	}
	return exceeds
}

// countElements returns the number of elements of a tensor with the given dimensions.
// Dynamic (negative) dimensions and products that overflow count as math.MaxInt64.
func countElements(dims ir.IntArrayAttr) int64 {
	if slices.Contains(dims, 0) {
		return 0
	}
	count := int64(1)
	for _, dim := range dims {
		if dim < 0 || count > math.MaxInt64/dim {
			return math.MaxInt64
		}
		count *= dim
	}
	return count
}

// operandsKeySet accumulates the place, layout and dtype of the tensors op reads, skipping
// tensor attributes and absent operands.
//
// Graph inputs add the backend of their declared place too (or the execution backend, if
// undefined), also when they are read through a combine.
func (l *lowering) operandsKeySet(op *ir.Operation, parser *opinfo.Parser) *dispatch.KernelKeySet {
	set := &dispatch.KernelKeySet{}
	for i, operand := range op.Operands() {
		if operand == nil || (parser != nil && parser.IsTensorAttribute(i)) {
			continue
		}
		addTensors(set, l.values.Resolve(op, i).Type())

		producer := operand.DefiningOp()
		switch producer.Name() {
		case opset.Data:
			set.AddBackend(l.dataBackend(producer))
		case ir.CombineOpName:
			for _, element := range producer.Operands() {
				if element != nil && element.DefiningOp().Name() == opset.Data {
					set.AddBackend(l.dataBackend(element.DefiningOp()))
					break
				}
			}
		}
	}
	return set
}

// addTensors adds the allocated tensors of t (or of its elements, for lists) to the set.
func addTensors(set *dispatch.KernelKeySet, t ir.Type) {
	switch tt := t.(type) {
	case ir.AllocatedDenseTensorType:
		set.AddTensor(tt.Placement, tt.Layout, tt.DType)
	case ir.AllocatedSelectedRowsType:
		set.AddTensor(tt.Placement, tt.Layout, tt.DType)
	case ir.VectorType:
		for _, element := range tt.Elements {
			if element != nil {
				addTensors(set, element)
			}
		}
	}
}

// dataBackend returns the backend of the declared place of a graph input.
func (l *lowering) dataBackend(data *ir.Operation) dispatch.Backend {
	backend := dispatch.BackendOf(dispatch.Place(requireAttr[ir.PlaceAttr](data, ir.AttrPlace)))
	if backend == dispatch.BackendUndefined {
		backend = l.execBackend
	}
	return backend
}

// requireAttr returns the attribute of op with the given name, which must be present and of type T.
func requireAttr[T ir.Attribute](op *ir.Operation, name string) T {
	attr, found := op.Attribute(name)
	if !found {
		panicPrecondition(op.Name(), -1, "missing attribute %q", name)
	}
	typed, ok := attr.(T)
	if !ok {
		panicPrecondition(op.Name(), -1, "attribute %q is %T, expected %T", name, attr, typed)
	}
	return typed
}

// requireDeclaredAttr checks that the operator declares the attribute with the given type name.
func requireDeclaredAttr(op *ir.Operation, parser *opinfo.Parser, name, typeName string) {
	declared, found := parser.AttrTypeName(name)
	if !found {
		panicPrecondition(op.Name(), -1, "kernel key slot %q is neither an input nor an attribute", name)
	}
	if declared != typeName {
		panicPrecondition(op.Name(), -1, "kernel key slot %q is a %s, only %s is accepted", name, declared, typeName)
	}
}
