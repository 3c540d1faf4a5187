// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"
)

// String pretty-prints the program, one operation per line.
//
// Values are numbered by order of definition, so two structurally identical programs print
// the same text. Attributes are printed sorted by name.
func (p *Program) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "program %q {\n", p.name)
	names := make(map[*Value]string)
	for _, op := range p.block.ops {
		sb.WriteString("  ")
		sb.WriteString(formatOperation(op, names))
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")
	return sb.String()
}

// String pretty-prints a single operation, with its values numbered within its block.
func (op *Operation) String() string {
	names := make(map[*Value]string)
	if op.block != nil {
		for _, prev := range op.block.ops[:op.id] {
			for _, r := range prev.results {
				names[r] = fmt.Sprintf("%%%d", len(names))
			}
		}
	}
	return formatOperation(op, names)
}

func formatOperation(op *Operation, names map[*Value]string) string {
	var sb strings.Builder
	operands := make([]string, len(op.operands))
	for i, v := range op.operands {
		switch {
		case v == nil:
			operands[i] = "<null>"
		case names[v] != "":
			operands[i] = names[v]
		default:
			operands[i] = "%?"
		}
	}
	results := make([]string, len(op.results))
	resultTypes := make([]string, len(op.results))
	for i, r := range op.results {
		name := fmt.Sprintf("%%%d", len(names))
		names[r] = name
		results[i] = name
		if r.typ == nil {
			resultTypes[i] = "<<NULL TYPE>>"
		} else {
			resultTypes[i] = r.typ.String()
		}
	}
	if len(results) > 0 {
		sb.WriteString("(")
		sb.WriteString(strings.Join(results, ", "))
		sb.WriteString(") = ")
	}
	fmt.Fprintf(&sb, "%q(%s)", op.name, strings.Join(operands, ", "))
	if len(op.attrs) > 0 {
		keys := maps.Keys(op.attrs)
		slices.Sort(keys)
		attrs := make([]string, len(keys))
		for i, key := range keys {
			attrs[i] = key + ":" + op.attrs[key].String()
		}
		fmt.Fprintf(&sb, " {%s}", strings.Join(attrs, ", "))
	}
	fmt.Fprintf(&sb, " : (%s)", strings.Join(resultTypes, ", "))
	return sb.String()
}
