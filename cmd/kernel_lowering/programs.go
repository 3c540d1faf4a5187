// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"github.com/gomlx/kernelpass/pkg/core/ir"
	"github.com/gomlx/kernelpass/pkg/opset"
	"github.com/gomlx/kernelpass/pkg/support/xslices"
)

// demoPrograms built with the standard operator set, indexed by name.
var demoPrograms = map[string]func() *ir.Program{
	"mlp":    mlpProgram,
	"concat": concatProgram,
	"init":   initProgram,
	"pool":   poolProgram,
}

func dense(dtype dtypes.DType, dims ...int) ir.DenseTensorType {
	return ir.NewDenseTensorType(dtype, dims...)
}

func input(b *ir.Block, name string, place dispatch.Place, t ir.DenseTensorType) *ir.Value {
	dims := ir.IntArrayAttr(xslices.Map(t.Dims, func(dim int) int64 { return int64(dim) }))
	return b.Append(opset.Data, nil, ir.Attributes{
		ir.AttrName:  ir.StrAttr(name),
		ir.AttrPlace: ir.PlaceAttr(place),
		"dtype":      ir.DTypeAttr(t.DType),
		"shape":      dims,
	}, t).Result(0)
}

func parameter(b *ir.Block, name string, t ir.Type) *ir.Value {
	return b.Append(ir.GetParameterOpName, nil, ir.Attributes{
		"parameter_name":   ir.StrAttr(name),
		ir.AttrPersistable: ir.BoolAttr(true),
	}, t).Result(0)
}

func intArray(b *ir.Block, values ...int64) *ir.Value {
	return b.Append(opset.FullIntArray, nil, ir.Attributes{
		"value":      ir.IntArrayAttr(values),
		"dtype":      ir.DTypeAttr(dtypes.Int64),
		ir.AttrPlace: ir.PlaceAttr(dispatch.CPUPlace()),
	}, dense(dtypes.Int64, len(values))).Result(0)
}

func fetch(b *ir.Block, name string, x *ir.Value, t ir.Type) {
	b.Append(opset.Fetch, []*ir.Value{x}, ir.Attributes{ir.AttrName: ir.StrAttr(name), "col": ir.Int32Attr(0)}, t)
}

// mlpProgram: relu(x·w + b), with x fed by the host.
func mlpProgram() *ir.Program {
	prog := ir.NewProgram("mlp")
	b := prog.Block()
	x := input(b, "x", dispatch.CPUPlace(), dense(dtypes.Float32, 32, 16))
	w := parameter(b, "w", dense(dtypes.Float32, 16, 8))
	bias := parameter(b, "b", dense(dtypes.Float32, 8))
	y := b.Append(opset.MatMul, []*ir.Value{x, w}, ir.Attributes{
		"transpose_x": ir.BoolAttr(false), "transpose_y": ir.BoolAttr(false),
	}, dense(dtypes.Float32, 32, 8)).Result(0)
	y = b.Append(opset.Add, []*ir.Value{y, bias}, nil, dense(dtypes.Float32, 32, 8)).Result(0)
	y = b.Append(opset.Relu, []*ir.Value{y}, nil, dense(dtypes.Float32, 32, 8)).Result(0)
	axis := intArray(b, 1)
	sum := b.Append(opset.Sum, []*ir.Value{y, axis}, ir.Attributes{
		"dtype": ir.DTypeAttr(dtypes.Float64), "keepdim": ir.BoolAttr(false),
	}, dense(dtypes.Float64, 32)).Result(0)
	fetch(b, "y", sum, dense(dtypes.Float64, 32))
	return prog
}

// concatProgram concatenates a host generated tensor with an input, and splits the result back.
func concatProgram() *ir.Program {
	prog := ir.NewProgram("concat")
	b := prog.Block()
	i64 := dense(dtypes.Int64, 4)
	host := intArray(b, 1, 2, 3, 4)
	x := input(b, "x", dispatch.GPUPlace(0), i64)
	list := b.Append(ir.CombineOpName, []*ir.Value{host, x}, nil, ir.NewVectorType(i64, i64)).Result(0)
	joined := b.Append(opset.Concat, []*ir.Value{list, intArray(b, 0)}, nil, dense(dtypes.Int64, 8)).Result(0)
	sections := intArray(b, 4, 4)
	parts := b.Append(opset.Split, []*ir.Value{joined, sections, intArray(b, 0)}, nil, ir.NewVectorType(i64, i64)).Result(0)
	split := b.Append(ir.SplitOpName, []*ir.Value{parts}, nil, i64, i64)
	fetch(b, "first", split.Result(0), i64)
	fetch(b, "second", split.Result(1), i64)
	return prog
}

// initProgram initializes parameters with generators of different sizes.
func initProgram() *ir.Program {
	prog := ir.NewProgram("init")
	b := prog.Block()
	for _, p := range []struct {
		name string
		dims []int64
	}{{"small", []int64{8, 8}}, {"large", []int64{512, 512}}} {
		shape := intArray(b, p.dims...)
		dims := xslices.Map(p.dims, func(dim int64) int { return int(dim) })
		value := b.Append(opset.Uniform, []*ir.Value{shape, nil, nil}, ir.Attributes{
			"dtype":      ir.DTypeAttr(dtypes.Float32),
			"seed":       ir.Int32Attr(42),
			ir.AttrPlace: ir.PlaceAttr(dispatch.CPUPlace()),
		}, dense(dtypes.Float32, dims...)).Result(0)
		b.Append(ir.SetParameterOpName, []*ir.Value{value}, ir.Attributes{"parameter_name": ir.StrAttr(p.name)})
	}
	b.Append(opset.LoadCombine, nil, ir.Attributes{"file_path": ir.StrAttr("params.bin")},
		ir.NewVectorType(dense(dtypes.Float32, 16), nil))
	return prog
}

// poolProgram runs an adaptive pooling and its gradient.
func poolProgram() *ir.Program {
	prog := ir.NewProgram("pool")
	b := prog.Block()
	x := input(b, "images", dispatch.CPUPlace(), dense(dtypes.Float32, 8, 3, 32, 32))
	attrs := ir.Attributes{
		"strides":      ir.IntArrayAttr{1, 1},
		"paddings":     ir.IntArrayAttr{0, 0},
		"pooling_type": ir.StrAttr("avg"),
		"adaptive":     ir.BoolAttr(true),
	}
	kernelSize := intArray(b, 4, 4)
	pooled := b.Append(opset.Pool2D, []*ir.Value{x, kernelSize}, attrs, dense(dtypes.Float32, 8, 3, 4, 4)).Result(0)
	b.Append(opset.Pool2DGrad, []*ir.Value{x, pooled, pooled, kernelSize}, attrs, dense(dtypes.Float32, 8, 3, 32, 32))
	return prog
}
