// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"github.com/gomlx/kernelpass/pkg/core/ir"
	"github.com/gomlx/kernelpass/pkg/core/kernels"
	"github.com/gomlx/kernelpass/pkg/core/opinfo"
	"github.com/gomlx/kernelpass/pkg/opset"
	"github.com/gomlx/kernelpass/pkg/support/xslices"
	"github.com/gomlx/kernelpass/pkg/transforms/kernellower"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)
	transferRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FA0")).
				PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

// newTable returns a table with the report style. Data rows listed in highlight are rendered
// with the transfer style.
func newTable(highlight map[int]bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row == lgtable.HeaderRow:
				return headerRowStyle
			case highlight[row]:
				s = transferRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

// loweredSummary counts what the pass created.
type loweredSummary struct {
	kernelOps, legacyOps, structuralOps, transfers, hostFallbacks int
}

func summarize(lowered *ir.Program, place dispatch.Place) (s loweredSummary) {
	for _, op := range lowered.Block().Operations() {
		switch op.Name() {
		case kernellower.KernelOpName:
			s.kernelOps++
		case kernellower.LegacyKernelOpName:
			s.legacyOps++
		default:
			s.structuralOps++
			continue
		}
		if name := attrString(op, kernellower.AttrOpName); name == opset.MemcpyH2D || name == opset.MemcpyD2H {
			s.transfers++
		}
		if attr, found := op.Attribute(kernellower.AttrKernelKey); found && place.IsGPU() &&
			attrString(op, kernellower.AttrKernelName) != "" &&
			dispatch.KernelKey(attr.(ir.KernelKeyAttr)).Backend == dispatch.BackendCPU {
			s.hostFallbacks++
		}
	}
	return
}

func attrString(op *ir.Operation, name string) string {
	attr, found := op.Attribute(name)
	if !found {
		return ""
	}
	if str, ok := attr.(ir.StrAttr); ok {
		return string(str)
	}
	return attr.String()
}

func resultPlaces(op *ir.Operation) string {
	return strings.Join(xslices.Map(op.Results(), func(result *ir.Value) string { return placesOf(result.Type()) }), ", ")
}

func placesOf(t ir.Type) string {
	switch tt := t.(type) {
	case nil:
		return "-"
	case ir.AllocatedType:
		return tt.Place().String()
	case ir.VectorType:
		return "[" + strings.Join(xslices.Map(tt.Elements, placesOf), " ") + "]"
	}
	return "?"
}

// registrySizes returns the number of kernels and of kernel variants (one per kernel key) in r.
func registrySizes(r *kernels.Registry) (numKernels, numVariants int) {
	names := r.Names()
	for _, name := range names {
		numVariants += len(r.Keys(name))
	}
	return len(names), numVariants
}

func report(src, lowered *ir.Program, pass *kernellower.Pass, registry *kernels.Registry, catalog *opinfo.Catalog) {
	summary := summarize(lowered, pass.Place())
	numKernels, numVariants := registrySizes(registry)
	fmt.Println(titleStyle.Render("Summary"))
	table := newTable(nil)
	table.Row("program", src.Name())
	table.Row("execution place", pass.Place().String())
	table.Row("# operators declared", humanize.Comma(int64(len(catalog.Names()))))
	table.Row("# kernels registered", fmt.Sprintf("%s (%s variants)",
		humanize.Comma(int64(numKernels)), humanize.Comma(int64(numVariants))))
	table.Row("accelerator threshold", humanize.Comma(pass.InitOnAcceleratorThreshold()))
	table.Row("# source operations", humanize.Comma(int64(src.Block().Len())))
	table.Row("# lowered operations", humanize.Comma(int64(lowered.Block().Len())))
	table.Row("# kernel operations", humanize.Comma(int64(summary.kernelOps)))
	table.Row("# legacy kernel operations", humanize.Comma(int64(summary.legacyOps)))
	table.Row("# structural operations", humanize.Comma(int64(summary.structuralOps)))
	table.Row("# transfers", humanize.Comma(int64(summary.transfers)))
	table.Row("# host kernels on accelerator", humanize.Comma(int64(summary.hostFallbacks)))
	fmt.Println(table.Render())

	fmt.Println(titleStyle.Render("Operations"))
	highlight := make(map[int]bool)
	table = newTable(highlight).Headers("#", "Node", "Operator", "Kernel", "Kernel Key", "Results")
	for i, op := range lowered.Block().Operations() {
		opName := attrString(op, kernellower.AttrOpName)
		if opName == "" {
			opName = op.Name()
		}
		if opName == opset.MemcpyH2D || opName == opset.MemcpyD2H {
			highlight[i] = true
		}
		table.Row(humanize.Comma(int64(i)), op.Name(), opName,
			attrString(op, kernellower.AttrKernelName),
			attrString(op, kernellower.AttrKernelKey),
			resultPlaces(op))
	}
	fmt.Println(table.Render())
}
