// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernellower

import (
	"fmt"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"github.com/gomlx/kernelpass/pkg/core/ir"
	"github.com/gomlx/kernelpass/pkg/core/kernels"
	"github.com/gomlx/kernelpass/pkg/core/opinfo"
	"github.com/gomlx/kernelpass/pkg/opset"
	"github.com/gomlx/kernelpass/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Operators only used by the tests: one with a kernel only on the accelerator, one with a kernel
// only on the host, and one returning two results for a kernel declaring a single output.
const (
	accelOnly = "op.accel_only"
	hostOnly  = "op.host_only"
	twoOuts   = "op.two_outs"
)

var f32 = ir.NewDenseTensorType(dtypes.Float32, 2, 3)

func unaryInfo(name, kernel string, numOutputs int) opinfo.OpInfo {
	info := opinfo.OpInfo{
		Name:    name,
		Inputs:  []opinfo.InputInfo{{Name: "x", TypeName: "DenseTensorType"}},
		Runtime: opinfo.RuntimeInfo{KernelFunc: []string{kernel}, KernelKeyDType: []string{"x"}},
	}
	for i := range numOutputs {
		info.Outputs = append(info.Outputs, opinfo.OutputInfo{Name: fmt.Sprintf("out%d", i), TypeName: "DenseTensorType"})
	}
	return info
}

func testCatalog() *opinfo.Catalog {
	c := opset.NewCatalog()
	c.Register(unaryInfo(accelOnly, "accel_only", 1))
	c.Register(unaryInfo(hostOnly, "host_only", 1))
	c.Register(unaryInfo(twoOuts, "two_outs", 2))
	return c
}

func testRegistry() *kernels.Registry {
	r := opset.NewKernelRegistry(true)
	gpu := kernels.ArgDef{Backend: dispatch.BackendGPU, Layout: dispatch.LayoutAny, DType: dtypes.Float32}
	cpu := kernels.ArgDef{Backend: dispatch.BackendCPU, Layout: dispatch.LayoutAny, DType: dtypes.Float32}
	r.Register("accel_only", dispatch.KernelKey{Backend: dispatch.BackendGPU, Layout: dispatch.LayoutAny, DType: dtypes.Float32},
		kernels.ArgsDef{Inputs: []kernels.ArgDef{gpu}, Outputs: []kernels.ArgDef{gpu}})
	// The output declares a different dtype: it must be ignored.
	r.Register("host_only", dispatch.KernelKey{Backend: dispatch.BackendCPU, Layout: dispatch.LayoutAny, DType: dtypes.Float32},
		kernels.ArgsDef{Inputs: []kernels.ArgDef{cpu}, Outputs: []kernels.ArgDef{{Backend: dispatch.BackendCPU, DType: dtypes.Float64}}})
	r.Register("two_outs", dispatch.KernelKey{Backend: dispatch.BackendCPU, Layout: dispatch.LayoutAny, DType: dtypes.Float32},
		kernels.ArgsDef{Inputs: []kernels.ArgDef{cpu}, Outputs: []kernels.ArgDef{cpu}})
	return r
}

func newTestPass(place dispatch.Place) *Pass {
	return New(testRegistry(), testCatalog(), place)
}

func dataOp(b *ir.Block, name string, place dispatch.Place, t ir.DenseTensorType) *ir.Value {
	return b.Append(opset.Data, nil, ir.Attributes{
		ir.AttrName:  ir.StrAttr(name),
		ir.AttrPlace: ir.PlaceAttr(place),
		"dtype":      ir.DTypeAttr(t.DType),
		"shape":      ir.IntArrayAttr{2, 3},
	}, t).Result(0)
}

func fullIntArray(b *ir.Block, place dispatch.Place, values ...int64) *ir.Value {
	return b.Append(opset.FullIntArray, nil, ir.Attributes{
		"value":      ir.IntArrayAttr(values),
		"dtype":      ir.DTypeAttr(dtypes.Int64),
		ir.AttrPlace: ir.PlaceAttr(place),
	}, ir.NewDenseTensorType(dtypes.Int64, len(values))).Result(0)
}

func opName(op *ir.Operation) string {
	attr, found := op.Attribute(AttrOpName)
	if !found {
		return op.Name()
	}
	return string(attr.(ir.StrAttr))
}

func kernelKey(t *testing.T, op *ir.Operation) dispatch.KernelKey {
	attr, found := op.Attribute(AttrKernelKey)
	require.True(t, found, "operation %s has no kernel key", op)
	return dispatch.KernelKey(attr.(ir.KernelKeyAttr))
}

func placeOf(t *testing.T, v *ir.Value) dispatch.Place {
	allocated, ok := v.Type().(ir.AllocatedType)
	require.True(t, ok, "value of type %v is not allocated", v.Type())
	return allocated.Place()
}

func opNames(block *ir.Block) []string {
	return xslices.Map(block.Operations(), opName)
}

// endToEndProgram: data(x, host) -> accel_only -> host_only.
func endToEndProgram() *ir.Program {
	prog := ir.NewProgram("end_to_end")
	b := prog.Block()
	x := dataOp(b, "x", dispatch.CPUPlace(), f32)
	a := b.Append(accelOnly, []*ir.Value{x}, nil, f32).Result(0)
	b.Append(hostOnly, []*ir.Value{a}, nil, f32)
	return prog
}

func TestEndToEnd(t *testing.T) {
	src := endToEndProgram()
	srcText := src.String()
	lowered, err := newTestPass(dispatch.GPUPlace(1)).Lower(src)
	require.NoError(t, err)
	fmt.Printf("%s", lowered)

	assert.Equal(t, srcText, src.String(), "source program must not be modified")
	assert.Equal(t, []string{opset.Data, opset.MemcpyH2D, accelOnly, opset.MemcpyD2H, hostOnly}, opNames(lowered.Block()))

	ops := lowered.Block().Operations()
	for _, op := range ops {
		assert.Equal(t, KernelOpName, op.Name())
	}
	data, h2d, a, d2h, b := ops[0], ops[1], ops[2], ops[3], ops[4]
	assert.Equal(t, dispatch.CPUPlace(), placeOf(t, data.Result(0)))

	assert.Equal(t, data.Result(0), h2d.Operand(0))
	assert.Equal(t, dispatch.GPUPlace(1), placeOf(t, h2d.Result(0)))
	assert.Equal(t, ir.Int32Attr(1), h2d.Attributes()[AttrDstPlaceType])
	assert.Equal(t, dispatch.BackendGPU, kernelKey(t, h2d).Backend)

	assert.Equal(t, h2d.Result(0), a.Operand(0))
	assert.Equal(t, dispatch.BackendGPU, kernelKey(t, a).Backend)
	assert.Equal(t, dispatch.GPUPlace(1), placeOf(t, a.Result(0)))

	assert.Equal(t, a.Result(0), d2h.Operand(0))
	assert.Equal(t, ir.Int32Attr(0), d2h.Attributes()[AttrDstPlaceType])
	assert.Equal(t, dispatch.BackendGPU, kernelKey(t, d2h).Backend)
	assert.Equal(t, dispatch.CPUPlace(), placeOf(t, d2h.Result(0)))

	assert.Equal(t, d2h.Result(0), b.Operand(0))
	assert.Equal(t, dispatch.KernelKey{Backend: dispatch.BackendCPU, Layout: dispatch.LayoutNCHW, DType: dtypes.Float32}, kernelKey(t, b))
	assert.Equal(t, dispatch.CPUPlace(), placeOf(t, b.Result(0)))

	// On the host, nothing moves: accel_only has no kernel at all, and is left for the executor to fail.
	lowered, err = newTestPass(dispatch.CPUPlace()).Lower(src)
	require.NoError(t, err)
	assert.Equal(t, []string{opset.Data, accelOnly, hostOnly}, opNames(lowered.Block()))
}

func TestDeterminism(t *testing.T) {
	src := endToEndProgram()
	pass := newTestPass(dispatch.GPUPlace(0))
	first := pass.MustLower(src)
	second := pass.MustLower(src)
	assert.Equal(t, first.Block().Len(), second.Block().Len())
	assert.Equal(t, first.String(), second.String())
}

func TestOutputDTypeOverrideIgnored(t *testing.T) {
	lowered := newTestPass(dispatch.CPUPlace()).MustLower(endToEndProgram())
	last := lowered.Block().Op(lowered.Block().Len() - 1)
	require.Equal(t, hostOnly, opName(last))
	assert.Equal(t, dtypes.Float32, last.Result(0).Type().(ir.AllocatedDenseTensorType).DType)
}

func TestUnmappedOperand(t *testing.T) {
	prog := ir.NewProgram("reordered")
	producer := ir.NewOperation(opset.Data, nil, ir.Attributes{
		ir.AttrName: ir.StrAttr("x"), ir.AttrPlace: ir.PlaceAttr(dispatch.CPUPlace()),
	}, []ir.Type{f32})
	prog.Block().Append(opset.Relu, []*ir.Value{producer.Result(0)}, nil, f32)
	prog.Block().PushBack(producer)

	lowered, err := newTestPass(dispatch.CPUPlace()).Lower(prog)
	require.Error(t, err)
	assert.Nil(t, lowered)
	var unmapped *UnmappedOperandError
	require.ErrorAs(t, err, &unmapped)
	assert.Equal(t, opset.Relu, unmapped.OpName)
	assert.Equal(t, 0, unmapped.Index)

	assert.Panics(t, func() { newTestPass(dispatch.CPUPlace()).MustLower(prog) })
}

func TestPreconditions(t *testing.T) {
	pass := newTestPass(dispatch.CPUPlace())

	// Graph input without place.
	prog := ir.NewProgram("no_place")
	prog.Block().Append(opset.Data, nil, ir.Attributes{ir.AttrName: ir.StrAttr("x")}, f32)
	_, err := pass.Lower(prog)
	var precondition *PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, opset.Data, precondition.OpName)

	// Number of results doesn't match the kernel.
	prog = ir.NewProgram("two_outs")
	x := dataOp(prog.Block(), "x", dispatch.CPUPlace(), f32)
	prog.Block().Append(twoOuts, []*ir.Value{x}, nil, f32, f32)
	_, err = pass.Lower(prog)
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, twoOuts, precondition.OpName)

	// Mistyped attribute in a dtype slot.
	prog = ir.NewProgram("mistyped")
	prog.Block().Append(opset.Full, nil, ir.Attributes{
		"dtype": ir.StrAttr("float32"), ir.AttrPlace: ir.PlaceAttr(dispatch.CPUPlace()),
	}, f32)
	_, err = pass.Lower(prog)
	require.ErrorAs(t, err, &precondition)
	assert.Contains(t, precondition.Reason, "dtype")

	// Execution place must be defined.
	assert.Panics(t, func() { New(testRegistry(), testCatalog(), dispatch.Place{}).MustLower(endToEndProgram()) })
}

func TestHostFallback(t *testing.T) {
	// full_int_array only has host kernels.
	prog := ir.NewProgram("fallback")
	fullIntArray(prog.Block(), dispatch.GPUPlace(0), 2, 3)
	lowered := newTestPass(dispatch.GPUPlace(0)).MustLower(prog)
	op := lowered.Block().Op(0)
	assert.Equal(t, dispatch.BackendCPU, kernelKey(t, op).Backend)
	assert.Equal(t, dtypes.Int64, kernelKey(t, op).DType)
	assert.Equal(t, dispatch.CPUPlace(), placeOf(t, op.Result(0)))
}

func TestCombineReuse(t *testing.T) {
	pass := newTestPass(dispatch.GPUPlace(0))
	i64 := ir.NewDenseTensorType(dtypes.Int64, 2, 3)

	// All elements already on the accelerator: the lowered combine is used directly.
	prog := ir.NewProgram("reuse")
	b := prog.Block()
	x := dataOp(b, "x", dispatch.GPUPlace(0), f32)
	y := dataOp(b, "y", dispatch.GPUPlace(0), f32)
	list := b.Append(ir.CombineOpName, []*ir.Value{x, y}, nil, ir.NewVectorType(f32, f32)).Result(0)
	b.Append(opset.Concat, []*ir.Value{list, nil}, nil, f32)
	lowered := pass.MustLower(prog)
	assert.Equal(t, []string{opset.Data, opset.Data, ir.CombineOpName, opset.Concat}, opNames(lowered.Block()))
	combine, concat := lowered.Block().Op(2), lowered.Block().Op(3)
	assert.Same(t, combine.Result(0), concat.Operand(0))
	assert.Nil(t, concat.Operand(1))
	assert.Equal(t, dispatch.BackendGPU, kernelKey(t, concat).Backend)

	// One element on the host: it is copied, and a new combine is built.
	prog = ir.NewProgram("rebuild")
	b = prog.Block()
	hostValue := fullIntArray(b, dispatch.CPUPlace(), 2, 3)
	y = dataOp(b, "y", dispatch.GPUPlace(0), i64)
	list = b.Append(ir.CombineOpName, []*ir.Value{hostValue, y}, nil, ir.NewVectorType(hostValue.Type(), i64)).Result(0)
	b.Append(opset.Concat, []*ir.Value{list, nil}, nil, i64)
	lowered = pass.MustLower(prog)
	require.Equal(t, []string{opset.FullIntArray, opset.Data, ir.CombineOpName, opset.MemcpyH2D, ir.CombineOpName, opset.Concat},
		opNames(lowered.Block()))
	ops := lowered.Block().Operations()
	full, gpuData, original, h2d, rebuilt, concat := ops[0], ops[1], ops[2], ops[3], ops[4], ops[5]
	assert.Same(t, full.Result(0), original.Operand(0))
	assert.Same(t, full.Result(0), h2d.Operand(0))
	assert.Same(t, h2d.Result(0), rebuilt.Operand(0))
	assert.Same(t, gpuData.Result(0), rebuilt.Operand(1))
	assert.Same(t, rebuilt.Result(0), concat.Operand(0))
	for _, element := range rebuilt.Result(0).Type().(ir.VectorType).Elements {
		assert.Equal(t, dispatch.GPUPlace(0), element.(ir.AllocatedType).Place())
	}
	assert.Equal(t, dispatch.KernelKey{Backend: dispatch.BackendGPU, Layout: dispatch.LayoutNCHW, DType: dtypes.Int64}, kernelKey(t, concat))
}

func TestStructuralRoundTrip(t *testing.T) {
	prog := ir.NewProgram("round_trip")
	b := prog.Block()
	types := []ir.DenseTensorType{f32, ir.NewDenseTensorType(dtypes.Float64, 4), ir.NewDenseTensorType(dtypes.Int32)}
	var inputs []*ir.Value
	var listTypes []ir.Type
	for i, dt := range types {
		inputs = append(inputs, dataOp(b, fmt.Sprintf("x%d", i), dispatch.CPUPlace(), dt))
		listTypes = append(listTypes, dt)
	}
	list := b.Append(ir.CombineOpName, inputs, nil, ir.NewVectorType(listTypes...)).Result(0)
	b.Append(ir.SplitOpName, []*ir.Value{list}, nil, listTypes...)
	b.Append(ir.SliceOpName, []*ir.Value{list}, ir.Attributes{ir.AttrIndex: ir.Int32Attr(1)}, listTypes[1])

	lowered := newTestPass(dispatch.CPUPlace()).MustLower(prog)
	ops := lowered.Block().Operations()
	require.Len(t, ops, 6)
	split, slice := ops[4], ops[5]
	assert.Equal(t, ir.SplitOpName, split.Name())
	require.Equal(t, len(types), split.NumResults())
	for i := range types {
		assert.True(t, ir.TypesEqual(ops[i].Result(0).Type(), split.Result(i).Type()), "element %d", i)
	}
	assert.Equal(t, ir.SliceOpName, slice.Name())
	assert.True(t, ir.TypesEqual(ops[1].Result(0).Type(), slice.Result(0).Type()))
	assert.Equal(t, ir.Int32Attr(1), slice.Attributes()[ir.AttrIndex])

	// Out of range slices and split arity mismatches are precondition errors.
	var precondition *PreconditionError
	bad := ir.NewProgram("bad_slice")
	x := dataOp(bad.Block(), "x", dispatch.CPUPlace(), f32)
	badList := bad.Block().Append(ir.CombineOpName, []*ir.Value{x}, nil, ir.NewVectorType(f32)).Result(0)
	bad.Block().Append(ir.SliceOpName, []*ir.Value{badList}, ir.Attributes{ir.AttrIndex: ir.Int32Attr(1)}, f32)
	_, err := newTestPass(dispatch.CPUPlace()).Lower(bad)
	require.ErrorAs(t, err, &precondition)

	bad = ir.NewProgram("bad_split")
	x = dataOp(bad.Block(), "x", dispatch.CPUPlace(), f32)
	badList = bad.Block().Append(ir.CombineOpName, []*ir.Value{x}, nil, ir.NewVectorType(f32)).Result(0)
	bad.Block().Append(ir.SplitOpName, []*ir.Value{badList}, nil, f32, f32)
	_, err = newTestPass(dispatch.CPUPlace()).Lower(bad)
	require.ErrorAs(t, err, &precondition)

	// Splitting something that is not a list is not supported.
	bad = ir.NewProgram("split_tensor")
	x = dataOp(bad.Block(), "x", dispatch.CPUPlace(), f32)
	bad.Block().Append(ir.SplitOpName, []*ir.Value{x}, nil, f32)
	_, err = newTestPass(dispatch.CPUPlace()).Lower(bad)
	var unsupported *UnsupportedError
	require.ErrorAs(t, err, &unsupported)
}

func TestFeeds(t *testing.T) {
	prog := ir.NewProgram("feeds")
	b := prog.Block()
	x := dataOp(b, "x", dispatch.CPUPlace(), f32)
	b.Append(opset.Feed, nil, ir.Attributes{ir.AttrName: ir.StrAttr("x"), "col": ir.Int32Attr(0)}, f32)
	y := b.Append(opset.Feed, nil, ir.Attributes{ir.AttrName: ir.StrAttr("y"), "col": ir.Int32Attr(1)}, f32).Result(0)
	b.Append(opset.Add, []*ir.Value{x, y}, nil, f32)

	lowered := newTestPass(dispatch.GPUPlace(0)).MustLower(prog)
	assert.Equal(t, []string{opset.Data, opset.MemcpyH2D, opset.Feed, opset.MemcpyH2D, opset.Add}, opNames(lowered.Block()))
	ops := lowered.Block().Operations()
	assert.Equal(t, dispatch.KernelKey{Backend: dispatch.BackendCPU, Layout: dispatch.LayoutAny, DType: dtypes.Float32}, kernelKey(t, ops[2]))
	add := ops[4]
	assert.Same(t, ops[1].Result(0), add.Operand(0))
	assert.Same(t, ops[3].Result(0), add.Operand(1))
	assert.Equal(t, dispatch.BackendGPU, kernelKey(t, add).Backend)

	// Graph inputs already on the accelerator need no copy, and nothing is copied on the host.
	prog = ir.NewProgram("gpu_input")
	dataOp(prog.Block(), "x", dispatch.GPUPlace(0), f32)
	assert.Equal(t, 1, newTestPass(dispatch.GPUPlace(0)).MustLower(prog).Block().Len())
	assert.Equal(t, []string{opset.Data}, opNames(newTestPass(dispatch.CPUPlace()).MustLower(endToEndProgram()).Block())[:1])
}

func TestTensorAttributesOnHost(t *testing.T) {
	prog := ir.NewProgram("scale")
	b := prog.Block()
	x := dataOp(b, "x", dispatch.GPUPlace(0), f32)
	factor := dataOp(b, "factor", dispatch.GPUPlace(0), ir.NewDenseTensorType(dtypes.Float32))
	b.Append(opset.Scale, []*ir.Value{x, factor}, ir.Attributes{"bias": ir.Float32Attr(0), "bias_after_scale": ir.BoolAttr(true)}, f32)

	lowered := newTestPass(dispatch.GPUPlace(0)).MustLower(prog)
	require.Equal(t, []string{opset.Data, opset.Data, opset.MemcpyD2H, opset.Scale}, opNames(lowered.Block()))
	scale := lowered.Block().Op(3)
	assert.Equal(t, dispatch.BackendGPU, kernelKey(t, scale).Backend)
	assert.Equal(t, dispatch.GPUPlace(0), placeOf(t, scale.Operand(0)))
	assert.Equal(t, dispatch.CPUPlace(), placeOf(t, scale.Operand(1)))
}

func TestParameters(t *testing.T) {
	prog := ir.NewProgram("parameters")
	b := prog.Block()
	w := b.Append(ir.GetParameterOpName, nil, ir.Attributes{
		"parameter_name": ir.StrAttr("w"), ir.AttrPersistable: ir.BoolAttr(true),
	}, f32).Result(0)
	b.Append(hostOnly, []*ir.Value{w}, nil, f32)
	init := fullIntArray(b, dispatch.CPUPlace(), 3)
	b.Append(ir.SetParameterOpName, []*ir.Value{init}, ir.Attributes{"parameter_name": ir.StrAttr("counter")})

	lowered := newTestPass(dispatch.GPUPlace(0)).MustLower(prog)
	require.Equal(t, []string{ir.GetParameterOpName, opset.MemcpyD2H, hostOnly, opset.FullIntArray, opset.MemcpyH2D, ir.SetParameterOpName},
		opNames(lowered.Block()))
	ops := lowered.Block().Operations()
	assert.Equal(t, dispatch.GPUPlace(0), placeOf(t, ops[0].Result(0)))
	assert.Equal(t, ir.BoolAttr(true), ops[1].Attributes()[ir.AttrPersistable])
	assert.False(t, ops[4].HasAttribute(ir.AttrPersistable))
	assert.Same(t, ops[4].Result(0), ops[5].Operand(0))
	assert.Equal(t, dtypes.Int64, kernelKey(t, ops[4]).DType)

	// On the host the parameter is set where it is.
	lowered = newTestPass(dispatch.CPUPlace()).MustLower(prog)
	assert.Equal(t, []string{ir.GetParameterOpName, hostOnly, opset.FullIntArray, ir.SetParameterOpName}, opNames(lowered.Block()))
}

func TestInitOnAcceleratorThreshold(t *testing.T) {
	uniformProgram := func(dims ...int64) *ir.Program {
		prog := ir.NewProgram("uniform")
		b := prog.Block()
		shape := fullIntArray(b, dispatch.CPUPlace(), dims...)
		b.Append(opset.Uniform, []*ir.Value{shape, nil, nil}, ir.Attributes{
			"dtype": ir.DTypeAttr(dtypes.Float32), "seed": ir.Int32Attr(0), ir.AttrPlace: ir.PlaceAttr(dispatch.CPUPlace()),
		}, f32)
		return prog
	}
	uniformKey := func(pass *Pass, dims ...int64) dispatch.KernelKey {
		lowered := pass.MustLower(uniformProgram(dims...))
		return kernelKey(t, lowered.Block().Op(lowered.Block().Len()-1))
	}

	gpu := newTestPass(dispatch.GPUPlace(0))
	assert.EqualValues(t, DefaultInitOnAcceleratorThreshold, gpu.InitOnAcceleratorThreshold())
	assert.Equal(t, dispatch.BackendGPU, uniformKey(gpu, 100, 100).Backend)
	assert.Equal(t, dispatch.BackendCPU, uniformKey(gpu, 10, 10).Backend)
	assert.Equal(t, dispatch.BackendCPU, uniformKey(gpu.WithInitOnAcceleratorThreshold(1_000_000), 100, 100).Backend)
	// Dynamic dimensions and overflowing sizes count as large.
	assert.Equal(t, dispatch.BackendGPU, uniformKey(gpu, -1, 3).Backend)
	assert.Equal(t, dispatch.BackendGPU, uniformKey(gpu, 1<<40, 1<<40).Backend)
	assert.Equal(t, dispatch.BackendCPU, uniformKey(gpu, 1<<40, 0).Backend)

	cpu := newTestPass(dispatch.CPUPlace())
	assert.Equal(t, dispatch.BackendCPU, uniformKey(cpu, 100, 100).Backend)
	key := uniformKey(cpu, 2, 3)
	assert.Equal(t, dtypes.Float32, key.DType)
	assert.Equal(t, dispatch.LayoutAny, key.Layout)
}

func TestKernelKeySlots(t *testing.T) {
	// Both slot lists read the list input first, then the attributes.
	const slotted = "op.slotted"
	catalog := testCatalog()
	catalog.Register(opinfo.OpInfo{
		Name:   slotted,
		Inputs: []opinfo.InputInfo{{Name: "x", TypeName: "VectorType<DenseTensorType>"}},
		Attributes: []opinfo.AttributeInfo{
			{Name: "dtype", TypeName: opinfo.AttrTypeDataType}, {Name: "place", TypeName: opinfo.AttrTypePlace},
		},
		Outputs: []opinfo.OutputInfo{{Name: "out", TypeName: "DenseTensorType"}},
		Runtime: opinfo.RuntimeInfo{
			KernelFunc:       []string{"slotted"},
			KernelKeyDType:   []string{"x", "dtype"},
			KernelKeyBackend: []string{"x", "place"},
		},
	})
	registry := testRegistry()
	for _, key := range []dispatch.KernelKey{
		{Backend: dispatch.BackendCPU, Layout: dispatch.LayoutAny, DType: dtypes.Float32},
		{Backend: dispatch.BackendGPU, Layout: dispatch.LayoutAny, DType: dtypes.Float64},
	} {
		def := kernels.ArgDef{Backend: key.Backend, Layout: dispatch.LayoutAny, DType: key.DType}
		registry.Register("slotted", key, kernels.ArgsDef{Inputs: []kernels.ArgDef{def}, Outputs: []kernels.ArgDef{def}})
	}
	slottedKey := func(withElement bool) dispatch.KernelKey {
		prog := ir.NewProgram("slots")
		b := prog.Block()
		var elements []*ir.Value
		var types []ir.Type
		if withElement {
			elements = append(elements, dataOp(b, "x", dispatch.CPUPlace(), f32))
			types = append(types, f32)
		}
		list := b.Append(ir.CombineOpName, elements, nil, ir.NewVectorType(types...)).Result(0)
		b.Append(slotted, []*ir.Value{list}, ir.Attributes{
			"dtype": ir.DTypeAttr(dtypes.Float64), "place": ir.PlaceAttr(dispatch.GPUPlace(0)),
		}, ir.NewDenseTensorType(dtypes.Float64, 2, 3))
		lowered := New(registry, catalog, dispatch.CPUPlace()).MustLower(prog)
		return kernelKey(t, lowered.Block().Op(lowered.Block().Len()-1))
	}

	// An empty list defines nothing: the attributes decide.
	assert.Equal(t, dispatch.KernelKey{Backend: dispatch.BackendGPU, Layout: dispatch.LayoutAny, DType: dtypes.Float64}, slottedKey(false))
	// The first element of the list wins over the attributes.
	assert.Equal(t, dispatch.KernelKey{Backend: dispatch.BackendCPU, Layout: dispatch.LayoutNCHW, DType: dtypes.Float32}, slottedKey(true))
}

func TestOperandsDType(t *testing.T) {
	// Without a dtype slot, the last operand read decides the dtype.
	prog := ir.NewProgram("mixed")
	b := prog.Block()
	i := dataOp(b, "i", dispatch.CPUPlace(), ir.NewDenseTensorType(dtypes.Int64, 2, 3))
	x := dataOp(b, "x", dispatch.CPUPlace(), f32)
	b.Append(opset.Add, []*ir.Value{i, x}, nil, f32)
	lowered := newTestPass(dispatch.CPUPlace()).MustLower(prog)
	assert.Equal(t, dtypes.Float32, kernelKey(t, lowered.Block().Op(2)).DType)
}

func TestGraphInputBehindCombine(t *testing.T) {
	// A graph input with an undefined place read through a list: the execution place is used.
	program := func() *ir.Program {
		prog := ir.NewProgram("combined_input")
		b := prog.Block()
		x := dataOp(b, "x", dispatch.Place{}, f32)
		list := b.Append(ir.CombineOpName, []*ir.Value{x}, nil, ir.NewVectorType(f32)).Result(0)
		axis := fullIntArray(b, dispatch.CPUPlace(), 0)
		b.Append(opset.Concat, []*ir.Value{list, axis}, nil, f32)
		return prog
	}

	lowered := newTestPass(dispatch.GPUPlace(0)).MustLower(program())
	require.Equal(t, []string{opset.Data, opset.MemcpyH2D, ir.CombineOpName, opset.FullIntArray, opset.Concat}, opNames(lowered.Block()))
	ops := lowered.Block().Operations()
	assert.Equal(t, dispatch.BackendCPU, kernelKey(t, ops[0]).Backend, "graph input with undefined place is created on the host")
	concat := ops[4]
	assert.Equal(t, dispatch.KernelKey{Backend: dispatch.BackendGPU, Layout: dispatch.LayoutNCHW, DType: dtypes.Float32}, kernelKey(t, concat))
	list, ok := concat.Operand(0).Type().(ir.VectorType)
	require.True(t, ok)
	require.Equal(t, 1, list.Len())
	assert.Equal(t, dispatch.GPUPlace(0), list.Elements[0].(ir.AllocatedType).Place())
	assert.Equal(t, dispatch.CPUPlace(), placeOf(t, concat.Operand(1)))

	lowered = newTestPass(dispatch.CPUPlace()).MustLower(program())
	require.Equal(t, []string{opset.Data, ir.CombineOpName, opset.FullIntArray, opset.Concat}, opNames(lowered.Block()))
	assert.Equal(t, dispatch.BackendCPU, kernelKey(t, lowered.Block().Op(3)).Backend)
}

func TestKernelNamesAndTraits(t *testing.T) {
	sparse := ir.NewSelectedRowsType(dtypes.Float32, 10, 4)
	prog := ir.NewProgram("sparse")
	b := prog.Block()
	g0 := b.Append(ir.GetParameterOpName, nil, ir.Attributes{"parameter_name": ir.StrAttr("g0")}, sparse).Result(0)
	g1 := b.Append(ir.GetParameterOpName, nil, ir.Attributes{"parameter_name": ir.StrAttr("g1")}, sparse).Result(0)
	list := b.Append(ir.CombineOpName, []*ir.Value{g0, g1}, nil, ir.NewVectorType(sparse, sparse)).Result(0)
	b.Append(opset.AddNInplace, []*ir.Value{list}, nil, sparse)
	b.Append(opset.LoadCombine, nil, ir.Attributes{"file_path": ir.StrAttr("/tmp/params")},
		ir.NewVectorType(ir.NewDenseTensorType(dtypes.Int64, 3), nil))

	lowered := newTestPass(dispatch.CPUPlace()).MustLower(prog)
	ops := lowered.Block().Operations()
	require.Len(t, ops, 5)

	addN := ops[3]
	assert.Equal(t, ir.StrAttr(opset.KernelAddNSelectedRows), addN.Attributes()[AttrKernelName])
	assert.Equal(t, ir.BoolAttr(true), addN.Attributes()[AttrIsInplace])
	_, isSparse := addN.Result(0).Type().(ir.AllocatedSelectedRowsType)
	assert.True(t, isSparse)

	load := ops[4]
	assert.Equal(t, LegacyKernelOpName, load.Name())
	assert.False(t, load.HasAttribute(AttrIsInplace))
	assert.Equal(t, dtypes.Float32, kernelKey(t, load).DType)
	elements := load.Result(0).Type().(ir.VectorType).Elements
	require.Len(t, elements, 2)
	assert.Equal(t, dtypes.Int64, elements[0].(ir.AllocatedDenseTensorType).DType)
	assert.True(t, ir.TypesEqual(defaultListElement(dispatch.CPUPlace()), elements[1]))
}

func TestPassWithOpSet(t *testing.T) {
	// A small network on the standard operator set, lowered for every place without errors.
	prog := ir.NewProgram("mlp")
	b := prog.Block()
	x := dataOp(b, "x", dispatch.CPUPlace(), f32)
	w := b.Append(ir.GetParameterOpName, nil, ir.Attributes{"parameter_name": ir.StrAttr("w")},
		ir.NewDenseTensorType(dtypes.Float32, 3, 3)).Result(0)
	y := b.Append(opset.MatMul, []*ir.Value{x, w}, ir.Attributes{"transpose_x": ir.BoolAttr(false), "transpose_y": ir.BoolAttr(false)}, f32).Result(0)
	y = b.Append(opset.Relu, []*ir.Value{y}, nil, f32).Result(0)
	b.Append(opset.Fetch, []*ir.Value{y}, ir.Attributes{ir.AttrName: ir.StrAttr("y"), "col": ir.Int32Attr(0)}, f32)

	for _, place := range []string{"cpu", "gpu:0", "gpu:1"} {
		pass := New(opset.NewKernelRegistry(true), opset.NewCatalog(), must.M1(dispatch.ParsePlace(place)))
		lowered, err := pass.Lower(prog)
		require.NoError(t, err, "place %s", place)
		require.GreaterOrEqual(t, lowered.Block().Len(), prog.Block().Len())
	}

	// Without accelerator kernels everything falls back to the host.
	lowered := New(opset.NewKernelRegistry(false), opset.NewCatalog(), dispatch.GPUPlace(0)).MustLower(prog)
	for _, op := range lowered.Block().Operations() {
		if opName(op) == opset.Relu || opName(op) == opset.MatMul {
			assert.Equal(t, dispatch.BackendCPU, kernelKey(t, op).Backend, "%s", op)
		}
	}
}
