// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernellower

import (
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"github.com/gomlx/kernelpass/pkg/core/ir"
	"github.com/gomlx/kernelpass/pkg/core/kernels"
	"github.com/gomlx/kernelpass/pkg/core/opinfo"
	"github.com/gomlx/kernelpass/pkg/opset"
	"k8s.io/klog/v2"
)

// prepareOperands resolves the operands of op and, when the kernel can't read one of them
// where it is, inserts the copy operations that move it.
//
// Absent operands stay absent.
func (l *lowering) prepareOperands(op *ir.Operation, parser *opinfo.Parser, kernel kernels.Kernel) []*ir.Value {
	operands := l.values.ResolveAll(op)
	checkPlaces := op.Name() == ir.SetParameterOpName ||
		(kernel.IsValid() && !unchangedOutputOps.Has(op.Name()))
	if !checkPlaces {
		return operands
	}
	for i, operand := range operands {
		if operand == nil {
			continue
		}
		switch t := operand.Type().(type) {
		case ir.AllocatedDenseTensorType, ir.AllocatedSelectedRowsType:
			src := t.(ir.AllocatedType).Place()
			dst := l.destinationBackend(op, parser, kernel, i)
			if src.IsDefined() && dispatch.NeedTransformPlace(src, dst) {
				operands[i] = l.addPlaceTransfer(op.Name(), operand, dispatch.PlaceOf(dst, l.place.Device))
			}
		case ir.VectorType:
			operands[i] = l.transferListElements(op, parser, kernel, i, operand)
		default:
			panicUnsupported(op.Name(), "operand #%d has type %v, only allocated tensors and lists are accepted", i, operand.Type())
		}
	}
	return operands
}

// destinationBackend returns the backend the operand at index must be on.
//
// Parameters are set on the execution place when it is an accelerator, and tensor attributes
// are read from the host. Everything else follows the kernel input declarations.
func (l *lowering) destinationBackend(op *ir.Operation, parser *opinfo.Parser, kernel kernels.Kernel, index int) dispatch.Backend {
	if op.Name() == ir.SetParameterOpName {
		if l.place.IsGPU() {
			return l.execBackend
		}
		return dispatch.BackendUndefined
	}
	if parser != nil && parser.IsTensorAttribute(index) {
		return dispatch.BackendCPU
	}
	def, found := kernel.InputAt(index)
	if !found {
		panicPrecondition(op.Name(), index, "kernel %s declares only %d inputs", kernel, len(kernel.Args.Inputs))
	}
	return def.Backend
}

// transferListElements handles a list operand produced by a combine: each element is moved
// individually, and a new combine is created only if at least one element was moved.
// Lists produced by anything else are used as they are.
func (l *lowering) transferListElements(op *ir.Operation, parser *opinfo.Parser, kernel kernels.Kernel, index int, list *ir.Value) *ir.Value {
	combine := op.Operand(index).DefiningOp()
	if combine.Name() != ir.CombineOpName {
		return list
	}
	if parser == nil || parser.IsTensorAttribute(index) {
		return list
	}
	def, found := kernel.InputAt(index)
	if !found {
		panicPrecondition(op.Name(), index, "kernel %s declares only %d inputs", kernel, len(kernel.Args.Inputs))
	}

	elements := l.values.ResolveAll(combine)
	moved := false
	for j, element := range elements {
		if element == nil {
			continue
		}
		allocated, ok := element.Type().(ir.AllocatedType)
		if !ok {
			panicUnsupported(op.Name(), "element %d of operand #%d has type %v", j, index, element.Type())
		}
		src := allocated.Place()
		if src.IsDefined() && dispatch.NeedTransformPlace(src, def.Backend) {
			elements[j] = l.addPlaceTransfer(op.Name(), element, dispatch.PlaceOf(def.Backend, l.place.Device))
			moved = true
		}
	}
	if !moved {
		return list
	}
	klog.V(6).Infof("kernellower: rebuilding combine for operand #%d of %q", index, op.Name())
	return l.appendCombine(elements, combine.Attributes()).Result(0)
}

// addPlaceTransfer appends a copy of value to dst, and returns the copied value.
// Only host to accelerator and accelerator to host copies exist: other pairs of places are
// reported as an UnsupportedError for the consumer.
func (l *lowering) addPlaceTransfer(consumer string, value *ir.Value, dst dispatch.Place) *ir.Value {
	allocated := value.Type().(ir.AllocatedType)
	src := allocated.Place()
	attrs := ir.Attributes{}
	switch {
	case src.Type == dispatch.AllocationCPU && dst.Type == dispatch.AllocationGPU:
		attrs[AttrOpName] = ir.StrAttr(opset.MemcpyH2D)
		attrs[AttrKernelName] = ir.StrAttr(opset.KernelMemcpyH2D)
		attrs[AttrDstPlaceType] = ir.Int32Attr(1)
	case src.Type == dispatch.AllocationGPU && dst.Type == dispatch.AllocationCPU:
		attrs[AttrOpName] = ir.StrAttr(opset.MemcpyD2H)
		attrs[AttrKernelName] = ir.StrAttr(opset.KernelMemcpyD2H)
		attrs[AttrDstPlaceType] = ir.Int32Attr(0)
	default:
		panicUnsupported(consumer, "transfer from %s to %s, only host to accelerator and accelerator to host are supported", src, dst)
	}
	key := dispatch.KernelKey{Backend: dispatch.BackendGPU, Layout: dispatch.LayoutAny, DType: allocated.Meta().DType}
	attrs[AttrKernelKey] = ir.KernelKeyAttr(key)
	if persistable, found := value.DefiningOp().Attribute(ir.AttrPersistable); found {
		attrs[ir.AttrPersistable] = persistable
	}
	klog.V(6).Infof("kernellower: %s for %q: %s -> %s", attrs[AttrKernelName], consumer, src, dst)
	copyOp := l.block.Append(KernelOpName, []*ir.Value{value}, attrs, allocated.WithPlace(dst))
	l.numTransfers++
	return copyOp.Result(0)
}
