// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package kernellower lowers a device-agnostic program into a program of kernel operations.
//
// Every operation of the source program is rewritten into a KernelOpName (or, for legacy
// operators, LegacyKernelOpName) operation that carries the resolved kernel name and kernel key
// (backend, layout and dtype), and whose results are bound to a concrete place. When an operand
// lives on a place the selected kernel can't read, a copy operation (host to accelerator or
// accelerator to host) is inserted before its consumer.
//
// The source program is never modified: a new program is built, and the old-to-new
// correspondence is tracked with a ValueMap.
//
// Example:
//
//	pass := kernellower.New(opset.NewKernelRegistry(true), opset.NewCatalog(), dispatch.GPUPlace(0))
//	lowered, err := pass.Lower(program)
//	if err != nil {
//		return err
//	}
package kernellower

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"github.com/gomlx/kernelpass/pkg/core/ir"
	"github.com/gomlx/kernelpass/pkg/core/kernels"
	"github.com/gomlx/kernelpass/pkg/core/opinfo"
	"k8s.io/klog/v2"
)

// Names of the operations created by the pass.
const (
	KernelOpName       = "kernel.op"
	LegacyKernelOpName = "kernel.legacy_op"
)

// Attributes set on the operations created by the pass.
const (
	// AttrOpName is the name of the source operator.
	AttrOpName = "op_name"

	// AttrKernelName is the kernel function to call.
	AttrKernelName = "kernel_name"

	// AttrKernelKey holds the resolved dispatch.KernelKey, as an ir.KernelKeyAttr.
	AttrKernelKey = "kernel_key"

	// AttrIsInplace is set to true for operators with the in-place trait.
	AttrIsInplace = "is_inplace"

	// AttrDstPlaceType is set on copy operations: 1 for host to accelerator, 0 for accelerator to host.
	AttrDstPlaceType = "dst_place_type"
)

// DefaultInitOnAcceleratorThreshold is the default number of elements above which generators
// (see Pass.WithInitOnAcceleratorThreshold) are placed on the accelerator.
const DefaultInitOnAcceleratorThreshold = 1000

// KernelRegistry is what the pass needs to know about the available kernels.
// It is implemented by *kernels.Registry.
type KernelRegistry interface {
	HasKernel(name string, key dispatch.KernelKey) bool
	Select(name string, key dispatch.KernelKey) kernels.Kernel
}

// OpInfoProvider gives access to the declarations of the operators.
// It is implemented by *opinfo.Catalog.
type OpInfoProvider interface {
	// Parser returns nil for operators without a declaration.
	Parser(opName string) *opinfo.Parser
	HasTrait(opName string, trait opinfo.Trait) bool
	IsLegacy(opName string) bool
}

// Pass lowers programs for one execution place.
//
// A Pass holds no state between calls to Lower, and it is safe to use it concurrently on
// different programs, as long as the collaborators are.
type Pass struct {
	kernels KernelRegistry
	ops     OpInfoProvider
	place   dispatch.Place

	initOnAcceleratorThreshold int64
}

// New returns a pass that lowers programs to be executed on place, selecting kernels from
// registry and reading operator declarations from ops.
func New(registry KernelRegistry, ops OpInfoProvider, place dispatch.Place) *Pass {
	return &Pass{
		kernels:                    registry,
		ops:                        ops,
		place:                      place,
		initOnAcceleratorThreshold: DefaultInitOnAcceleratorThreshold,
	}
}

// WithInitOnAcceleratorThreshold sets the number of elements above which values created by
// generators (e.g.: random initializers given a shape) are placed on the accelerator, when the
// execution place is an accelerator. It returns the pass itself, so calls can be cascaded.
func (p *Pass) WithInitOnAcceleratorThreshold(numElements int64) *Pass {
	if numElements < 0 {
		exceptions.Panicf("kernellower: negative threshold %d", numElements)
	}
	p.initOnAcceleratorThreshold = numElements
	return p
}

// InitOnAcceleratorThreshold returns the current threshold, see WithInitOnAcceleratorThreshold.
func (p *Pass) InitOnAcceleratorThreshold() int64 { return p.initOnAcceleratorThreshold }

// Place returns the execution place the pass lowers to.
func (p *Pass) Place() dispatch.Place { return p.place }

// Lower returns a new program with every operation of src lowered to a kernel operation.
//
// The source program is not modified. Errors are either *UnmappedOperandError,
// *PreconditionError or *UnsupportedError (use errors.As), and no program is returned with them.
func (p *Pass) Lower(src *ir.Program) (lowered *ir.Program, err error) {
	err = exceptions.TryCatch[error](func() { lowered = p.MustLower(src) })
	if err != nil {
		klog.V(1).Infof("kernellower: lowering %q failed: %v", src.Name(), err)
		return nil, err
	}
	return lowered, nil
}

// MustLower is like Lower, but it panics with the error instead.
func (p *Pass) MustLower(src *ir.Program) *ir.Program {
	if !p.place.IsDefined() {
		exceptions.Panicf("kernellower: execution place is undefined")
	}
	l := newLowering(p, src)
	l.run()
	return l.program
}
