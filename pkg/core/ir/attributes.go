// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
)

// Attribute is a static (known at compile time) value attached to an Operation.
// Like Type, it is a closed union of the types defined in this file.
type Attribute interface {
	fmt.Stringer
	isAttribute()
}

// Attributes maps attribute names to values.
type Attributes map[string]Attribute

type (
	StrAttr       string
	BoolAttr      bool
	Int32Attr     int32
	Int64Attr     int64
	Float32Attr   float32
	DTypeAttr     dtypes.DType
	PlaceAttr     dispatch.Place
	IntArrayAttr  []int64
	KernelKeyAttr dispatch.KernelKey
)

func (StrAttr) isAttribute()       {}
func (BoolAttr) isAttribute()      {}
func (Int32Attr) isAttribute()     {}
func (Int64Attr) isAttribute()     {}
func (Float32Attr) isAttribute()   {}
func (DTypeAttr) isAttribute()     {}
func (PlaceAttr) isAttribute()     {}
func (IntArrayAttr) isAttribute()  {}
func (KernelKeyAttr) isAttribute() {}

func (a StrAttr) String() string   { return strconv.Quote(string(a)) }
func (a BoolAttr) String() string  { return strconv.FormatBool(bool(a)) }
func (a Int32Attr) String() string { return strconv.FormatInt(int64(a), 10) + ":i32" }
func (a Int64Attr) String() string { return strconv.FormatInt(int64(a), 10) + ":i64" }
func (a DTypeAttr) String() string { return "DataType(" + dtypes.DType(a).String() + ")" }
func (a PlaceAttr) String() string { return "Place(" + dispatch.Place(a).String() + ")" }

func (a Float32Attr) String() string {
	return strconv.FormatFloat(float64(a), 'g', -1, 32) + ":f32"
}

func (a IntArrayAttr) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return "IntArray[" + strings.Join(parts, ",") + "]"
}

func (a KernelKeyAttr) String() string { return dispatch.KernelKey(a).String() }

// Clone returns a shallow copy of the attributes map. Attribute values are immutable.
func (attrs Attributes) Clone() Attributes {
	c := make(Attributes, len(attrs))
	for k, v := range attrs {
		c[k] = v
	}
	return c
}
