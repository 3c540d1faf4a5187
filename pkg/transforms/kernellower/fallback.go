// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernellower

import (
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"github.com/gomlx/kernelpass/pkg/core/ir"
	"k8s.io/klog/v2"
)

// applyFallbacks corrects the resolved key of op: the dtype overrides, then the host fallback
// for kernels missing on the accelerator, then the GPUDNN correction of adaptive operators.
func (l *lowering) applyFallbacks(op *ir.Operation, kernelName string, key dispatch.KernelKey) dispatch.KernelKey {
	if dtype, found := forcedKernelDTypes[op.Name()]; found {
		key = key.WithDType(dtype)
	}
	if l.needsHostFallback(op, kernelName, key) {
		klog.V(6).Infof("kernellower: %q has no kernel %q for %s, falling back to host", op.Name(), kernelName, key)
		key = key.WithBackend(dispatch.BackendCPU)
	}
	if needsGPUDNNCorrection(op, key) {
		klog.V(6).Infof("kernellower: %q is adaptive, using the plain %s kernel", op.Name(), dispatch.BackendGPU)
		key = key.WithBackend(dispatch.BackendGPU)
	}
	return key
}

// needsHostFallback returns true if there is no kernel for key, nor for its GPUDNN-to-GPU
// variant, but there is one for the host backend.
func (l *lowering) needsHostFallback(op *ir.Operation, kernelName string, key dispatch.KernelKey) bool {
	if unchangedOutputOps.Has(op.Name()) || kernelName == "" {
		return false
	}
	if l.kernels.HasKernel(kernelName, key) {
		return false
	}
	if key.Backend == dispatch.BackendGPUDNN && l.kernels.HasKernel(kernelName, key.WithBackend(dispatch.BackendGPU)) {
		return false
	}
	return l.kernels.HasKernel(kernelName, key.WithBackend(dispatch.BackendCPU))
}

// needsGPUDNNCorrection returns true for operators listed in adaptiveGPUDNNOps with a GPUDNN key
// and their adaptive attribute set.
func needsGPUDNNCorrection(op *ir.Operation, key dispatch.KernelKey) bool {
	attrName, found := adaptiveGPUDNNOps[op.Name()]
	if !found || key.Backend != dispatch.BackendGPUDNN {
		return false
	}
	return bool(requireAttr[ir.BoolAttr](op, attrName))
}
