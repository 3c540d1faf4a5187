// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernellower

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"github.com/gomlx/kernelpass/pkg/core/ir"
	"github.com/gomlx/kernelpass/pkg/core/kernels"
)

// buildOutputTypes returns the allocated result types of the lowered op.
//
// Results are placed on the backend the kernel declares for them, or on the key backend for
// operators with unchanged outputs, legacy operators and when no kernel was found.
func (l *lowering) buildOutputTypes(op *ir.Operation, kernel kernels.Kernel, key dispatch.KernelKey) []ir.Type {
	useKernelDefs := kernel.IsValid() && !unchangedOutputOps.Has(op.Name()) && !l.ops.IsLegacy(op.Name())
	if useKernelDefs && op.NumResults() != len(kernel.Args.Outputs) {
		panicPrecondition(op.Name(), -1, "%d results, but kernel %s declares %d outputs",
			op.NumResults(), kernel, len(kernel.Args.Outputs))
	}

	types := make([]ir.Type, op.NumResults())
	for i := range types {
		backend := key.Backend
		if useKernelDefs {
			// The dtype declared by the kernel output is not used: results keep their own dtype.
			def, _ := kernel.OutputAt(i)
			if def.Backend != dispatch.BackendUndefined {
				backend = def.Backend
			}
		}
		place := dispatch.PlaceOf(backend, l.place.Device)
		types[i] = allocateResultType(op.Name(), op.Result(i).Type(), place)
	}
	return types
}

// allocateResultType binds the device-agnostic type t to place.
// Absent (nil) types stay absent, and absent list elements are replaced by defaultListElement.
func allocateResultType(opName string, t ir.Type, place dispatch.Place) ir.Type {
	switch tt := t.(type) {
	case nil:
		return nil
	case ir.DenseTensorType, ir.SelectedRowsType:
		return ir.Allocate(tt, place)
	case ir.VectorType:
		elements := make([]ir.Type, tt.Len())
		for i, element := range tt.Elements {
			switch element.(type) {
			case nil:
				elements[i] = defaultListElement(place)
			case ir.DenseTensorType, ir.SelectedRowsType:
				elements[i] = ir.Allocate(element, place)
			default:
				panicUnsupported(opName, "result list element %d has type %v", i, element)
			}
		}
		return ir.NewVectorType(elements...)
	}
	panicUnsupported(opName, "result type %v, only tensors and lists of tensors are accepted", t)
	return nil
}

// defaultListElement is the type given to absent list elements of results: kernels don't accept
// absent entries in lists.
func defaultListElement(place dispatch.Place) ir.AllocatedType {
	return ir.AllocatedDenseTensorType{
		TensorMeta: ir.TensorMeta{
			DType:  dtypes.Float32,
			Dims:   []int{},
			Layout: dispatch.LayoutNCHW,
			LoD:    [][]int{{}},
			Offset: 0,
		},
		Placement: place,
	}
}
