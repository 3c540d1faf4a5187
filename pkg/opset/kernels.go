// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opset

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"github.com/gomlx/kernelpass/pkg/core/kernels"
	"github.com/gomlx/kernelpass/pkg/core/opinfo"
)

var (
	floatDTypes = []dtypes.DType{dtypes.Float32, dtypes.Float64, dtypes.Float16}
	intDTypes   = []dtypes.DType{dtypes.Int32, dtypes.Int64}
	allDTypes   = append(append([]dtypes.DType{dtypes.Bool}, floatDTypes...), intDTypes...)

	hostOnly    = []dispatch.Backend{dispatch.BackendCPU}
	hostAndGPU  = []dispatch.Backend{dispatch.BackendCPU, dispatch.BackendGPU}
	withCuDNN   = []dispatch.Backend{dispatch.BackendCPU, dispatch.BackendGPU, dispatch.BackendGPUDNN}
	numericType = append(append([]dtypes.DType{}, floatDTypes...), intDTypes...)
)

// kernelSpec lists the implementations available for one kernel of the standard set.
type kernelSpec struct {
	kernel   string
	op       string // Operator declaration used to derive the arguments.
	backends []dispatch.Backend
	dtypes   []dtypes.DType // Element types implemented for each backend.
}

var kernelSpecs = []kernelSpec{
	{"full", Full, hostAndGPU, numericType},
	{"full_int_array", FullIntArray, hostOnly, intDTypes},
	{"uniform", Uniform, hostAndGPU, floatDTypes},
	{"relu", Relu, hostAndGPU, floatDTypes},
	{"add", Add, hostAndGPU, numericType},
	{"matmul", MatMul, hostAndGPU, floatDTypes},
	{"scale", Scale, hostAndGPU, numericType},
	{"cast", Cast, hostAndGPU, allDTypes},
	{"sum", Sum, hostAndGPU, numericType},
	{"concat", Concat, hostAndGPU, numericType},
	{"split", Split, hostAndGPU, numericType},
	{"pool2d", Pool2D, withCuDNN, floatDTypes},
	{"pool2d_grad", Pool2DGrad, withCuDNN, floatDTypes},
	{"add_n", AddNInplace, hostAndGPU, floatDTypes},
	{KernelAddNSelectedRows, AddNInplace, hostAndGPU, floatDTypes},
	{"load_combine", LoadCombine, hostOnly, []dtypes.DType{dtypes.Float32}},
}

// NewKernelRegistry returns a registry with the kernels of the standard operator set.
//
// If withAccelerator is false, only host kernels are registered: this is the registry of a
// build without accelerator support.
func NewKernelRegistry(withAccelerator bool) *kernels.Registry {
	catalog := NewCatalog()
	r := kernels.NewRegistry()
	for _, spec := range kernelSpecs {
		parser := catalog.Parser(spec.op)
		if parser == nil {
			exceptions.Panicf("opset: kernel %q refers to unknown operator %q", spec.kernel, spec.op)
		}
		for _, backend := range spec.backends {
			if backend.IsAccelerator() && !withAccelerator {
				continue
			}
			for _, dtype := range spec.dtypes {
				key := dispatch.KernelKey{Backend: backend, Layout: dispatch.LayoutAny, DType: dtype}
				r.Register(spec.kernel, key, argsFromDeclaration(parser, backend, dtype))
			}
		}
	}
	if withAccelerator {
		for _, dtype := range allDTypes {
			key := dispatch.KernelKey{Backend: dispatch.BackendGPU, Layout: dispatch.LayoutAny, DType: dtype}
			r.Register(KernelMemcpyH2D, key, kernels.ArgsDef{
				Inputs:  []kernels.ArgDef{{Backend: dispatch.BackendUndefined, DType: dtype}},
				Outputs: []kernels.ArgDef{{Backend: dispatch.BackendGPU, DType: dtype}},
			})
			r.Register(KernelMemcpyD2H, key, kernels.ArgsDef{
				Inputs:  []kernels.ArgDef{{Backend: dispatch.BackendGPU, DType: dtype}},
				Outputs: []kernels.ArgDef{{Backend: dispatch.BackendCPU, DType: dtype}},
			})
		}
	}
	return r
}

// argsFromDeclaration derives the kernel arguments from the operator declaration:
// tensor inputs and outputs live on the kernel backend, tensor attributes are accepted anywhere.
func argsFromDeclaration(parser *opinfo.Parser, backend dispatch.Backend, dtype dtypes.DType) kernels.ArgsDef {
	info := parser.Info()
	var args kernels.ArgsDef
	for i := range info.Inputs {
		def := kernels.ArgDef{Backend: backend, Layout: dispatch.LayoutAny, DType: dtype}
		if parser.IsTensorAttribute(i) {
			def = kernels.ArgDef{Backend: dispatch.BackendUndefined, Layout: dispatch.LayoutAny}
		}
		args.Inputs = append(args.Inputs, def)
	}
	for range info.Outputs {
		args.Outputs = append(args.Outputs, kernels.ArgDef{Backend: backend, Layout: dispatch.LayoutAny, DType: dtype})
	}
	return args
}
