// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernellower

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/kernelpass/pkg/core/ir"
	"github.com/gomlx/kernelpass/pkg/opset"
	"github.com/gomlx/kernelpass/pkg/support/sets"
)

// Operators with special treatment, kept as tables so the exceptions can be audited in one place.
var (
	// unchangedOutputOps have result types that don't depend on the kernel chosen: they are
	// exempt from the kernel-existence fallback, their results are placed on the key backend,
	// and their operands are not transferred.
	unchangedOutputOps = sets.MakeWith(
		opset.Data, opset.Feed, opset.Fetch, opset.ShadowOutput,
		ir.CombineOpName, ir.SliceOpName, ir.SplitOpName,
		ir.SetParameterOpName, ir.GetParameterOpName,
	)

	// structuralOps are rebuilt from their input types, with no kernel.
	structuralOps = sets.MakeWith(ir.CombineOpName, ir.SliceOpName, ir.SplitOpName)

	// zeroInputGenerators get their backend from attributes and the execution place even
	// though they declare tensor inputs.
	zeroInputGenerators = sets.MakeWith(opset.FullInplace)

	// adaptiveGPUDNNOps maps operators to the boolean attribute that, when true, forbids the
	// GPUDNN implementation: the plain GPU kernel is used instead.
	adaptiveGPUDNNOps = map[string]string{
		opset.Pool2D:     "adaptive",
		opset.Pool2DGrad: "adaptive",
	}

	// sparseKernelOverrides maps operators to the kernel used when their first result is a
	// SelectedRowsType.
	sparseKernelOverrides = map[string]string{
		opset.AddNInplace:    opset.KernelAddNSelectedRows,
		opset.AddNWithKernel: opset.KernelAddNSelectedRows,
	}

	// forcedKernelDTypes overrides the dtype of the kernel key of some operators.
	forcedKernelDTypes = map[string]dtypes.DType{
		opset.LoadCombine: dtypes.Float32,
	}

	// thresholdPolicies lists the generators that are placed on the accelerator when the
	// number of elements they produce is larger than Pass.InitOnAcceleratorThreshold.
	thresholdPolicies = map[string]thresholdPolicy{
		opset.Uniform: {shapeOperand: 0, shapeProducer: opset.FullIntArray, shapeAttr: "value"},
	}
)

// thresholdPolicy tells where to find the shape of the values produced by a generator: in the
// IntArrayAttr shapeAttr of the shapeProducer operation feeding the operand shapeOperand.
type thresholdPolicy struct {
	shapeOperand  int
	shapeProducer string
	shapeAttr     string
}
