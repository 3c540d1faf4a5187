// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package opset defines the standard operator set: the names of the operators, their
// declarations (see NewCatalog) and a kernel registry with host and accelerator kernels for
// them (see NewKernelRegistry).
//
// It is used by the command line tools and by tests; production users will usually build
// their own catalog and registry with the operators they support.
package opset

// Operator names.
const (
	Data         = "op.data"
	Feed         = "op.feed"
	Fetch        = "op.fetch"
	ShadowOutput = "op.shadow_output"

	Full           = "op.full"
	FullInplace    = "op.full_"
	FullIntArray   = "op.full_int_array"
	Uniform        = "op.uniform"
	Relu           = "op.relu"
	Add            = "op.add"
	MatMul         = "op.matmul"
	Scale          = "op.scale"
	Cast           = "op.cast"
	Sum            = "op.sum"
	Concat         = "op.concat"
	Split          = "op.split"
	Pool2D         = "op.pool2d"
	Pool2DGrad     = "op.pool2d_grad"
	AddNInplace    = "op.add_n_"
	AddNWithKernel = "op.add_n_with_kernel"
	LoadCombine    = "op.load_combine"
	MemcpyH2D      = "op.memcpy_h2d"
	MemcpyD2H      = "op.memcpy_d2h"
)

// Kernel names.
const (
	KernelAddNSelectedRows = "add_n_sr"
	KernelMemcpyH2D        = "memcpy_h2d"
	KernelMemcpyD2H        = "memcpy_d2h"
)
