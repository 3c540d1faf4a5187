// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

// Builtin operators: they manipulate lists of values or parameters, and don't belong to any
// operator set.
const (
	// CombineOpName packs its N operands into one value of VectorType.
	CombineOpName = "builtin.combine"

	// SliceOpName extracts the element at attribute "index" (Int32Attr) of its VectorType operand.
	SliceOpName = "builtin.slice"

	// SplitOpName unpacks its VectorType operand into one result per element.
	SplitOpName = "builtin.split"

	// SetParameterOpName stores its operand as the parameter named by attribute "parameter_name".
	SetParameterOpName = "builtin.set_parameter"

	// GetParameterOpName loads the parameter named by attribute "parameter_name".
	GetParameterOpName = "builtin.get_parameter"
)

// Common attribute names.
const (
	// AttrIndex is the element index of a SliceOpName.
	AttrIndex = "index"

	// AttrPersistable marks values that are parameters (persistent across executions).
	AttrPersistable = "persistable"

	// AttrName is the symbolic name of feeds and graph inputs.
	AttrName = "name"

	// AttrPlace is the declared place of graph inputs.
	AttrPlace = "place"
)
