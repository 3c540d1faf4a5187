// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"github.com/gomlx/gopjrt/dtypes"
)

// BackendSet is a bit set of backends.
type BackendSet uint32

// BackendSetOf returns the set with the given backends. BackendUndefined is ignored.
func BackendSetOf(backends ...Backend) BackendSet {
	var s BackendSet
	for _, b := range backends {
		s = s.With(b)
	}
	return s
}

// With returns the union of the set and the given backend.
func (s BackendSet) With(b Backend) BackendSet {
	if b == BackendUndefined {
		return s
	}
	return s | (1 << uint(b))
}

// Union returns s ∪ s2.
func (s BackendSet) Union(s2 BackendSet) BackendSet { return s | s2 }

// Has returns whether the backend is in the set.
func (s BackendSet) Has(b Backend) bool {
	return b != BackendUndefined && s&(1<<uint(b)) != 0
}

// IsEmpty returns whether no backend is in the set.
func (s BackendSet) IsEmpty() bool { return s == 0 }

// Highest returns the backend with the highest priority in the set, or BackendUndefined if empty.
func (s BackendSet) Highest() Backend {
	for b := numBackends - 1; b > BackendUndefined; b-- {
		if s.Has(b) {
			return b
		}
	}
	return BackendUndefined
}

// KernelKeySet accumulates the placement, layout and dtype of the tensors an operation reads,
// and derives from them the kernel key the tensors themselves would suggest.
//
// The zero value is an empty set, ready to use.
type KernelKeySet struct {
	Backends BackendSet
	Layout   Layout
	DType    dtypes.DType
}

// AddTensor merges the information of one allocated tensor into the set.
//
// The layout with the highest value wins, and each defined dtype replaces the previous one, so
// the last tensor added decides the dtype.
func (s *KernelKeySet) AddTensor(place Place, layout Layout, dtype dtypes.DType) {
	s.Backends = s.Backends.With(BackendOf(place))
	if layout > s.Layout {
		s.Layout = layout
	}
	if dtype != dtypes.InvalidDType {
		s.DType = dtype
	}
}

// AddBackend adds a backend affinity without any tensor data.
func (s *KernelKeySet) AddBackend(b Backend) {
	s.Backends = s.Backends.With(b)
}

// HighestPriorityKey returns the key suggested by the accumulated tensors.
// Components for which nothing was accumulated are left undefined.
func (s *KernelKeySet) HighestPriorityKey() KernelKey {
	return KernelKey{Backend: s.Backends.Highest(), Layout: s.Layout, DType: s.DType}
}
