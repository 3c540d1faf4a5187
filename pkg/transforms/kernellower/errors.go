// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernellower

import (
	"fmt"

	"github.com/pkg/errors"
)

// UnmappedOperandError is returned when an operation reads a value whose producer has not been
// lowered yet. It means the source block is not in topological order.
type UnmappedOperandError struct {
	OpName string
	Index  int
}

func (e *UnmappedOperandError) Error() string {
	return fmt.Sprintf("kernellower: operand #%d of %q is used before its producer was lowered", e.Index, e.OpName)
}

// PreconditionError is returned when an operation doesn't fulfill what lowering requires from it:
// a missing or mistyped attribute, a number of results that doesn't match its kernel, etc.
//
// Index is the operand involved, or -1 if the error is not about a specific operand.
type PreconditionError struct {
	OpName string
	Index  int
	Reason string
}

func (e *PreconditionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("kernellower: %q: %s", e.OpName, e.Reason)
	}
	return fmt.Sprintf("kernellower: %q, operand #%d: %s", e.OpName, e.Index, e.Reason)
}

// UnsupportedError is returned for types or placement transfers the pass can't handle.
type UnsupportedError struct {
	OpName string
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("kernellower: %q not supported: %s", e.OpName, e.Reason)
}

func panicUnmapped(opName string, index int) {
	panic(errors.WithStack(&UnmappedOperandError{OpName: opName, Index: index}))
}

func panicPrecondition(opName string, index int, format string, args ...any) {
	panic(errors.WithStack(&PreconditionError{OpName: opName, Index: index, Reason: fmt.Sprintf(format, args...)}))
}

func panicUnsupported(opName string, format string, args ...any) {
	panic(errors.WithStack(&UnsupportedError{OpName: opName, Reason: fmt.Sprintf(format, args...)}))
}
