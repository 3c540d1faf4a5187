// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
)

// Type of a Value. It is a closed union, the only implementations are:
//
//   - DenseTensorType and SelectedRowsType: device-agnostic tensors, with no placement.
//   - AllocatedDenseTensorType and AllocatedSelectedRowsType: the same tensors bound to a Place.
//   - VectorType: an ordered list of types, some of which may be absent (nil).
//
// Code switching over types should handle all variants and fail on anything else.
type Type interface {
	fmt.Stringer

	// isType prevents implementations outside this package.
	isType()
}

// TensorMeta holds the description of a tensor shared by all tensor types.
type TensorMeta struct {
	DType  dtypes.DType
	Dims   []int
	Layout dispatch.Layout

	// LoD (level of details) is the row-offset bookkeeping of variable length sequences.
	LoD    [][]int
	Offset int
}

// Equal returns whether both metas describe the same tensor.
func (m TensorMeta) Equal(m2 TensorMeta) bool {
	if m.DType != m2.DType || m.Layout != m2.Layout || m.Offset != m2.Offset {
		return false
	}
	if !slices.Equal(m.Dims, m2.Dims) || len(m.LoD) != len(m2.LoD) {
		return false
	}
	for i := range m.LoD {
		if !slices.Equal(m.LoD[i], m2.LoD[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the meta, so it can be shared by types without aliasing slices.
func (m TensorMeta) Clone() TensorMeta {
	c := m
	c.Dims = slices.Clone(m.Dims)
	if m.LoD != nil {
		c.LoD = make([][]int, len(m.LoD))
		for i, level := range m.LoD {
			c.LoD[i] = slices.Clone(level)
		}
	}
	return c
}

func (m TensorMeta) String() string {
	parts := make([]string, 0, len(m.Dims)+1)
	for _, dim := range m.Dims {
		if dim < 0 {
			parts = append(parts, "?")
		} else {
			parts = append(parts, fmt.Sprint(dim))
		}
	}
	dtype := "undefined"
	if m.DType != dtypes.InvalidDType {
		dtype = m.DType.String()
	}
	parts = append(parts, dtype)
	s := strings.Join(parts, "x")
	if m.Layout != dispatch.LayoutUndefined {
		s += ", " + m.Layout.String()
	}
	if len(m.LoD) > 0 && !(len(m.LoD) == 1 && len(m.LoD[0]) == 0) {
		s += fmt.Sprintf(", lod=%v", m.LoD)
	}
	if m.Offset != 0 {
		s += fmt.Sprintf(", offset=%d", m.Offset)
	}
	return s
}

// TensorType is implemented by all the tensor variants of Type (all but VectorType).
type TensorType interface {
	Type
	Meta() TensorMeta
}

// AllocatedType is implemented by the tensor types bound to a place.
type AllocatedType interface {
	TensorType
	Place() dispatch.Place

	// WithPlace returns the same type bound to a different place.
	WithPlace(place dispatch.Place) AllocatedType
}

// DenseTensorType is a device-agnostic dense tensor.
type DenseTensorType struct {
	TensorMeta
}

// NewDenseTensorType returns a dense tensor type with the given dtype and dimensions,
// in LayoutNCHW and with no LoD.
func NewDenseTensorType(dtype dtypes.DType, dims ...int) DenseTensorType {
	return DenseTensorType{TensorMeta{DType: dtype, Dims: dims, Layout: dispatch.LayoutNCHW}}
}

func (DenseTensorType) isType()            {}
func (t DenseTensorType) Meta() TensorMeta { return t.TensorMeta }
func (t DenseTensorType) String() string   { return "tensor<" + t.TensorMeta.String() + ">" }

// SelectedRowsType is a device-agnostic row-sparse tensor: a subset of the rows of a dense tensor.
type SelectedRowsType struct {
	TensorMeta
}

// NewSelectedRowsType returns a row-sparse tensor type with the given dtype and dimensions, in LayoutNCHW.
func NewSelectedRowsType(dtype dtypes.DType, dims ...int) SelectedRowsType {
	return SelectedRowsType{TensorMeta{DType: dtype, Dims: dims, Layout: dispatch.LayoutNCHW}}
}

func (SelectedRowsType) isType()            {}
func (t SelectedRowsType) Meta() TensorMeta { return t.TensorMeta }
func (t SelectedRowsType) String() string   { return "selected_rows<" + t.TensorMeta.String() + ">" }

// AllocatedDenseTensorType is a dense tensor with a concrete place.
type AllocatedDenseTensorType struct {
	TensorMeta
	Placement dispatch.Place
}

func (AllocatedDenseTensorType) isType()                 {}
func (t AllocatedDenseTensorType) Meta() TensorMeta      { return t.TensorMeta }
func (t AllocatedDenseTensorType) Place() dispatch.Place { return t.Placement }

func (t AllocatedDenseTensorType) WithPlace(place dispatch.Place) AllocatedType {
	return AllocatedDenseTensorType{TensorMeta: t.TensorMeta.Clone(), Placement: place}
}

func (t AllocatedDenseTensorType) String() string {
	return fmt.Sprintf("tensor<%s, %s>", t.TensorMeta, t.Placement)
}

// AllocatedSelectedRowsType is a row-sparse tensor with a concrete place.
type AllocatedSelectedRowsType struct {
	TensorMeta
	Placement dispatch.Place
}

func (AllocatedSelectedRowsType) isType()                 {}
func (t AllocatedSelectedRowsType) Meta() TensorMeta      { return t.TensorMeta }
func (t AllocatedSelectedRowsType) Place() dispatch.Place { return t.Placement }

func (t AllocatedSelectedRowsType) WithPlace(place dispatch.Place) AllocatedType {
	return AllocatedSelectedRowsType{TensorMeta: t.TensorMeta.Clone(), Placement: place}
}

func (t AllocatedSelectedRowsType) String() string {
	return fmt.Sprintf("selected_rows<%s, %s>", t.TensorMeta, t.Placement)
}

// Allocate binds a device-agnostic tensor type to a place, keeping its metadata.
// It returns nil for types that are not DenseTensorType or SelectedRowsType.
func Allocate(t Type, place dispatch.Place) AllocatedType {
	switch tt := t.(type) {
	case DenseTensorType:
		return AllocatedDenseTensorType{TensorMeta: tt.TensorMeta.Clone(), Placement: place}
	case SelectedRowsType:
		return AllocatedSelectedRowsType{TensorMeta: tt.TensorMeta.Clone(), Placement: place}
	}
	return nil
}

// VectorType is an ordered list of types. Elements may be nil, for absent entries.
type VectorType struct {
	Elements []Type
}

// NewVectorType returns a VectorType with the given elements.
func NewVectorType(elements ...Type) VectorType {
	return VectorType{Elements: elements}
}

func (VectorType) isType() {}

// Len returns the number of elements.
func (t VectorType) Len() int { return len(t.Elements) }

func (t VectorType) String() string {
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		if e == nil {
			parts[i] = "null"
		} else {
			parts[i] = e.String()
		}
	}
	return "vec[" + strings.Join(parts, ", ") + "]"
}

// TypesEqual returns whether both types are structurally equal. Two nil types are equal.
func TypesEqual(t1, t2 Type) bool {
	if t1 == nil || t2 == nil {
		return t1 == nil && t2 == nil
	}
	switch tt1 := t1.(type) {
	case DenseTensorType:
		tt2, ok := t2.(DenseTensorType)
		return ok && tt1.TensorMeta.Equal(tt2.TensorMeta)
	case SelectedRowsType:
		tt2, ok := t2.(SelectedRowsType)
		return ok && tt1.TensorMeta.Equal(tt2.TensorMeta)
	case AllocatedDenseTensorType:
		tt2, ok := t2.(AllocatedDenseTensorType)
		return ok && tt1.Placement == tt2.Placement && tt1.TensorMeta.Equal(tt2.TensorMeta)
	case AllocatedSelectedRowsType:
		tt2, ok := t2.(AllocatedSelectedRowsType)
		return ok && tt1.Placement == tt2.Placement && tt1.TensorMeta.Equal(tt2.TensorMeta)
	case VectorType:
		tt2, ok := t2.(VectorType)
		if !ok || len(tt1.Elements) != len(tt2.Elements) {
			return false
		}
		for i := range tt1.Elements {
			if !TypesEqual(tt1.Elements[i], tt2.Elements[i]) {
				return false
			}
		}
		return true
	}
	return false
}
