// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dispatch defines the vocabulary used to select kernels: compute backends,
// memory places, data layouts and the kernel key that combines them with a dtype.
//
// All types here are small comparable values, so they can be used as map keys
// (see kernels.Registry) and compared with ==.
package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Backend identifies the compute domain a kernel was written for.
//
// The order of the constants is the selection priority used by BackendSet.Highest:
// later backends win.
type Backend int

const (
	BackendUndefined Backend = iota
	BackendCPU
	BackendGPU
	BackendOneDNN
	BackendGPUDNN
	numBackends
)

var backendNames = [numBackends]string{"undefined", "cpu", "gpu", "onednn", "gpudnn"}

// String implements fmt.Stringer.
func (b Backend) String() string {
	if b < 0 || b >= numBackends {
		return "Backend(" + strconv.Itoa(int(b)) + ")"
	}
	return backendNames[b]
}

// IsAccelerator returns whether kernels of this backend run on accelerator memory.
func (b Backend) IsAccelerator() bool {
	return b == BackendGPU || b == BackendGPUDNN
}

// Generic returns the plain backend of a specialized one: GPUDNN becomes GPU and OneDNN becomes CPU.
func (b Backend) Generic() Backend {
	switch b {
	case BackendGPUDNN:
		return BackendGPU
	case BackendOneDNN:
		return BackendCPU
	}
	return b
}

// AllocationType is the kind of memory a Place refers to.
type AllocationType int

const (
	AllocationUndefined AllocationType = iota
	AllocationCPU
	AllocationGPU
	AllocationGPUPinned
)

// String implements fmt.Stringer.
func (t AllocationType) String() string {
	switch t {
	case AllocationUndefined:
		return "undefined"
	case AllocationCPU:
		return "cpu"
	case AllocationGPU:
		return "gpu"
	case AllocationGPUPinned:
		return "gpu_pinned"
	}
	return "AllocationType(" + strconv.Itoa(int(t)) + ")"
}

// Place is a concrete memory location: the kind of memory plus a device index,
// only meaningful for accelerators.
type Place struct {
	Type   AllocationType
	Device int
}

// CPUPlace returns the host place.
func CPUPlace() Place { return Place{Type: AllocationCPU} }

// GPUPlace returns the place of the accelerator with the given device index.
func GPUPlace(device int) Place { return Place{Type: AllocationGPU, Device: device} }

// IsDefined returns whether the place refers to an actual memory location.
func (p Place) IsDefined() bool { return p.Type != AllocationUndefined }

// IsGPU returns whether the place is accelerator memory. Pinned host memory is not.
func (p Place) IsGPU() bool { return p.Type == AllocationGPU }

// String implements fmt.Stringer, in the same format accepted by ParsePlace.
func (p Place) String() string {
	if p.Type == AllocationGPU || p.Type == AllocationGPUPinned {
		return fmt.Sprintf("%s:%d", p.Type, p.Device)
	}
	return p.Type.String()
}

// ParsePlace parses a place given as "<type>[:<device>]", e.g.: "cpu", "gpu:1".
//
// The type can also be given as "host" (for cpu) and "accelerator" (for gpu).
func ParsePlace(config string) (Place, error) {
	name, deviceStr, hasDevice := strings.Cut(strings.TrimSpace(config), ":")
	var p Place
	switch strings.ToLower(name) {
	case "cpu", "host":
		p.Type = AllocationCPU
	case "gpu", "accelerator", "cuda":
		p.Type = AllocationGPU
	case "gpu_pinned", "pinned":
		p.Type = AllocationGPUPinned
	case "", "undefined":
		p.Type = AllocationUndefined
	default:
		return Place{}, errors.Errorf("unknown place type %q in %q", name, config)
	}
	if hasDevice {
		device, err := strconv.Atoi(deviceStr)
		if err != nil || device < 0 {
			return Place{}, errors.Errorf("invalid device index %q in place %q", deviceStr, config)
		}
		if p.Type != AllocationGPU && p.Type != AllocationGPUPinned {
			return Place{}, errors.Errorf("place %q doesn't take a device index", config)
		}
		p.Device = device
	}
	return p, nil
}

// BackendOf returns the generic backend that owns memory at the given place.
// Pinned memory is host memory, so it maps to BackendCPU.
func BackendOf(p Place) Backend {
	switch p.Type {
	case AllocationCPU, AllocationGPUPinned:
		return BackendCPU
	case AllocationGPU:
		return BackendGPU
	}
	return BackendUndefined
}

// PlaceOf returns the place where kernels of the given backend keep their data.
// The device index is only used for accelerator backends.
func PlaceOf(backend Backend, device int) Place {
	switch backend {
	case BackendCPU, BackendOneDNN:
		return CPUPlace()
	case BackendGPU, BackendGPUDNN:
		return GPUPlace(device)
	case BackendUndefined:
		return Place{}
	}
	exceptions.Panicf("dispatch.PlaceOf(): unknown backend %s", backend)
	return Place{}
}

// NeedTransformPlace returns whether data at src has to be copied before a kernel of the
// target backend can read it.
//
// An undefined target accepts data anywhere. Pinned memory always needs a transfer.
func NeedTransformPlace(src Place, target Backend) bool {
	if src.Type == AllocationGPUPinned {
		return true
	}
	if target == BackendUndefined {
		return false
	}
	return BackendOf(src) != target.Generic()
}

// Layout of the data in memory.
type Layout int

const (
	LayoutUndefined Layout = iota

	// LayoutAny matches any layout: kernels registered with it accept data in any layout.
	LayoutAny
	LayoutNCHW
	LayoutNHWC
	LayoutNCDHW
	LayoutNDHWC
	numLayouts
)

var layoutNames = [numLayouts]string{"undefined", "any", "NCHW", "NHWC", "NCDHW", "NDHWC"}

// String implements fmt.Stringer.
func (l Layout) String() string {
	if l < 0 || l >= numLayouts {
		return "Layout(" + strconv.Itoa(int(l)) + ")"
	}
	return layoutNames[l]
}

// KernelKey selects a concrete kernel implementation for a kernel name.
//
// Any of its components may be undefined while it is being resolved.
type KernelKey struct {
	Backend Backend
	Layout  Layout
	DType   dtypes.DType
}

// IsDefined returns whether all components are defined.
func (k KernelKey) IsDefined() bool {
	return k.Backend != BackendUndefined && k.Layout != LayoutUndefined && k.DType != dtypes.InvalidDType
}

// WithBackend returns a copy of the key with the backend replaced.
func (k KernelKey) WithBackend(backend Backend) KernelKey {
	k.Backend = backend
	return k
}

// WithLayout returns a copy of the key with the layout replaced.
func (k KernelKey) WithLayout(layout Layout) KernelKey {
	k.Layout = layout
	return k
}

// WithDType returns a copy of the key with the dtype replaced.
func (k KernelKey) WithDType(dtype dtypes.DType) KernelKey {
	k.DType = dtype
	return k
}

// String implements fmt.Stringer.
func (k KernelKey) String() string {
	dtype := "undefined"
	if k.DType != dtypes.InvalidDType {
		dtype = k.DType.String()
	}
	return fmt.Sprintf("<backend:%s|layout:%s|dtype:%s>", k.Backend, k.Layout, dtype)
}
