// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package kernels implements the kernel registry: for each kernel name, the kernel
// implementations available per kernel key, with the declared placement and dtype of
// their arguments.
//
// Registration is expected to happen during initialization. After that the Registry is
// only queried, and it is safe for concurrent use.
package kernels

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"k8s.io/klog/v2"
)

// ArgDef declares where a kernel expects (for inputs) or produces (for outputs) one argument.
//
// BackendUndefined means "any backend": inputs are accepted wherever they are, and outputs
// are produced on the backend of the kernel key.
type ArgDef struct {
	Backend dispatch.Backend
	Layout  dispatch.Layout
	DType   dtypes.DType
}

// ArgsDef holds the declarations of all inputs and outputs of a kernel.
type ArgsDef struct {
	Inputs  []ArgDef
	Outputs []ArgDef
}

// Kernel describes one registered kernel implementation.
//
// The zero value is an invalid kernel, returned by Registry.Select when nothing matches.
type Kernel struct {
	Name string
	Key  dispatch.KernelKey
	Args ArgsDef

	valid bool
}

// IsValid returns whether the kernel was found in the registry.
func (k Kernel) IsValid() bool { return k.valid }

// InputAt returns the declaration of the i-th input, and false if the kernel has no such input.
func (k Kernel) InputAt(i int) (ArgDef, bool) {
	if i < 0 || i >= len(k.Args.Inputs) {
		return ArgDef{}, false
	}
	return k.Args.Inputs[i], true
}

// OutputAt returns the declaration of the i-th output, and false if the kernel has no such output.
func (k Kernel) OutputAt(i int) (ArgDef, bool) {
	if i < 0 || i >= len(k.Args.Outputs) {
		return ArgDef{}, false
	}
	return k.Args.Outputs[i], true
}

func (k Kernel) String() string {
	if !k.valid {
		return "<invalid kernel>"
	}
	return fmt.Sprintf("%s%s", k.Name, k.Key)
}

// Registry of kernels, indexed by name and kernel key.
type Registry struct {
	mu      sync.RWMutex
	kernels map[string]map[dispatch.KernelKey]*Kernel
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{kernels: make(map[string]map[dispatch.KernelKey]*Kernel)}
}

// Register a kernel implementation for the given name and key.
//
// Kernels registered with dispatch.LayoutAny match requests for any layout.
// The key must have a defined backend and dtype, and registering the same (name, key) twice panics.
func (r *Registry) Register(name string, key dispatch.KernelKey, args ArgsDef) {
	if name == "" {
		exceptions.Panicf("kernels.Register(): empty kernel name for key %s", key)
	}
	if key.Backend == dispatch.BackendUndefined || key.DType == dtypes.InvalidDType {
		exceptions.Panicf("kernels.Register(%q): key %s must have a defined backend and dtype", name, key)
	}
	if key.Layout == dispatch.LayoutUndefined {
		key.Layout = dispatch.LayoutAny
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byKey, found := r.kernels[name]
	if !found {
		byKey = make(map[dispatch.KernelKey]*Kernel)
		r.kernels[name] = byKey
	}
	if _, found := byKey[key]; found {
		exceptions.Panicf("kernels.Register(%q): kernel for key %s already registered", name, key)
	}
	byKey[key] = &Kernel{
		Name: name,
		Key:  key,
		Args: ArgsDef{
			Inputs:  slices.Clone(args.Inputs),
			Outputs: slices.Clone(args.Outputs),
		},
		valid: true,
	}
	klog.V(3).Infof("registered kernel %s%s", name, key)
}

// lookup must be called with r.mu held (for reading).
func (r *Registry) lookup(name string, key dispatch.KernelKey) *Kernel {
	byKey, found := r.kernels[name]
	if !found {
		return nil
	}
	if k, found := byKey[key]; found {
		return k
	}
	if key.Layout != dispatch.LayoutAny {
		return byKey[key.WithLayout(dispatch.LayoutAny)]
	}
	return nil
}

// HasKernel returns whether a kernel is registered for exactly the backend and dtype of the key.
func (r *Registry) HasKernel(name string, key dispatch.KernelKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(name, key) != nil
}

// Select returns the kernel registered for the name and key.
//
// If the key backend is dispatch.BackendGPUDNN and there is no such kernel, the plain
// dispatch.BackendGPU kernel is selected instead.
// It returns an invalid Kernel (see Kernel.IsValid) if nothing matches.
func (r *Registry) Select(name string, key dispatch.KernelKey) Kernel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k := r.lookup(name, key)
	if k == nil && key.Backend == dispatch.BackendGPUDNN {
		k = r.lookup(name, key.WithBackend(dispatch.BackendGPU))
	}
	if k == nil {
		return Kernel{}
	}
	return *k
}

// Names returns the sorted list of registered kernel names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.kernels))
	for name := range r.kernels {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Keys returns the keys registered for the kernel name, sorted by their string representation.
func (r *Registry) Keys(name string) []dispatch.KernelKey {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]dispatch.KernelKey, 0, len(r.kernels[name]))
	for key := range r.kernels[name] {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b dispatch.KernelKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}
