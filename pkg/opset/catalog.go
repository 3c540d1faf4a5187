// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opset

import (
	"github.com/gomlx/kernelpass/pkg/core/opinfo"
)

const (
	denseType  = "DenseTensorType"
	vectorType = "VectorType<DenseTensorType>"
)

func tensorInput(name string) opinfo.InputInfo {
	return opinfo.InputInfo{Name: name, TypeName: denseType}
}

func attrInput(name string) opinfo.InputInfo {
	return opinfo.InputInfo{Name: name, TypeName: denseType, IsTensorAttribute: true}
}

func attr(name, typeName string) opinfo.AttributeInfo {
	return opinfo.AttributeInfo{Name: name, TypeName: typeName}
}

func outputs(names ...string) []opinfo.OutputInfo {
	outs := make([]opinfo.OutputInfo, len(names))
	for i, name := range names {
		outs[i] = opinfo.OutputInfo{Name: name, TypeName: denseType}
	}
	return outs
}

// declarations of the standard operator set.
var declarations = []opinfo.OpInfo{
	{
		Name: Data,
		Attributes: []opinfo.AttributeInfo{
			attr("name", opinfo.AttrTypeStr), attr("shape", opinfo.AttrTypeIntArray),
			attr("dtype", opinfo.AttrTypeDataType), attr("place", opinfo.AttrTypePlace),
		},
		Outputs: outputs("out"),
		Runtime: opinfo.RuntimeInfo{
			KernelFunc:       []string{"data"},
			KernelKeyBackend: []string{"place"},
			KernelKeyDType:   []string{"dtype"},
		},
	},
	{
		Name:       Feed,
		Attributes: []opinfo.AttributeInfo{attr("name", opinfo.AttrTypeStr), attr("col", opinfo.AttrTypeInt32)},
		Outputs:    outputs("out"),
	},
	{
		Name:       Fetch,
		Inputs:     []opinfo.InputInfo{tensorInput("x")},
		Attributes: []opinfo.AttributeInfo{attr("name", opinfo.AttrTypeStr), attr("col", opinfo.AttrTypeInt32)},
		Outputs:    outputs("out"),
		Runtime:    opinfo.RuntimeInfo{KernelFunc: []string{"fetch"}, KernelKeyDType: []string{"x"}},
	},
	{
		Name:       ShadowOutput,
		Inputs:     []opinfo.InputInfo{tensorInput("x")},
		Attributes: []opinfo.AttributeInfo{attr("output_name", opinfo.AttrTypeStr)},
	},
	{
		Name: Full,
		Attributes: []opinfo.AttributeInfo{
			attr("shape", opinfo.AttrTypeIntArray), attr("value", opinfo.AttrTypeFloat32),
			attr("dtype", opinfo.AttrTypeDataType), attr("place", opinfo.AttrTypePlace),
		},
		Outputs: outputs("out"),
		Runtime: opinfo.RuntimeInfo{
			KernelFunc:       []string{"full"},
			KernelParam:      []string{"shape", "value", "dtype"},
			KernelKeyBackend: []string{"place"},
			KernelKeyDType:   []string{"dtype"},
		},
	},
	{
		Name:   FullInplace,
		Inputs: []opinfo.InputInfo{tensorInput("output")},
		Attributes: []opinfo.AttributeInfo{
			attr("shape", opinfo.AttrTypeIntArray), attr("value", opinfo.AttrTypeFloat32),
			attr("dtype", opinfo.AttrTypeDataType), attr("place", opinfo.AttrTypePlace),
		},
		Outputs: outputs("out"),
		Runtime: opinfo.RuntimeInfo{
			KernelFunc:       []string{"full"},
			KernelParam:      []string{"output", "shape", "value", "dtype"},
			KernelKeyBackend: []string{"place"},
			KernelKeyDType:   []string{"dtype"},
		},
		Traits: []opinfo.Trait{opinfo.TraitInplace},
	},
	{
		Name: FullIntArray,
		Attributes: []opinfo.AttributeInfo{
			attr("value", opinfo.AttrTypeIntArray), attr("dtype", opinfo.AttrTypeDataType),
			attr("place", opinfo.AttrTypePlace),
		},
		Outputs: outputs("out"),
		Runtime: opinfo.RuntimeInfo{
			KernelFunc:       []string{"full_int_array"},
			KernelKeyBackend: []string{"place"},
			KernelKeyDType:   []string{"dtype"},
		},
	},
	{
		Name:   Uniform,
		Inputs: []opinfo.InputInfo{attrInput("shape"), attrInput("min"), attrInput("max")},
		Attributes: []opinfo.AttributeInfo{
			attr("dtype", opinfo.AttrTypeDataType), attr("seed", opinfo.AttrTypeInt32),
			attr("place", opinfo.AttrTypePlace),
		},
		Outputs: outputs("out"),
		Runtime: opinfo.RuntimeInfo{
			KernelFunc:       []string{"uniform"},
			KernelParam:      []string{"shape", "dtype", "min", "max", "seed"},
			KernelKeyBackend: []string{"place"},
			KernelKeyDType:   []string{"dtype"},
		},
	},
	{
		Name:    Relu,
		Inputs:  []opinfo.InputInfo{tensorInput("x")},
		Outputs: outputs("out"),
		Runtime: opinfo.RuntimeInfo{KernelFunc: []string{"relu"}, KernelParam: []string{"x"}, KernelKeyDType: []string{"x"}},
	},
	{
		Name:    Add,
		Inputs:  []opinfo.InputInfo{tensorInput("x"), tensorInput("y")},
		Outputs: outputs("out"),
		Runtime: opinfo.RuntimeInfo{KernelFunc: []string{"add"}, KernelParam: []string{"x", "y"}},
	},
	{
		Name:       MatMul,
		Inputs:     []opinfo.InputInfo{tensorInput("x"), tensorInput("y")},
		Attributes: []opinfo.AttributeInfo{attr("transpose_x", opinfo.AttrTypeBool), attr("transpose_y", opinfo.AttrTypeBool)},
		Outputs:    outputs("out"),
		Runtime:    opinfo.RuntimeInfo{KernelFunc: []string{"matmul"}, KernelParam: []string{"x", "y"}, KernelKeyDType: []string{"x"}},
	},
	{
		Name:       Scale,
		Inputs:     []opinfo.InputInfo{tensorInput("x"), attrInput("scale")},
		Attributes: []opinfo.AttributeInfo{attr("bias", opinfo.AttrTypeFloat32), attr("bias_after_scale", opinfo.AttrTypeBool)},
		Outputs:    outputs("out"),
		Runtime:    opinfo.RuntimeInfo{KernelFunc: []string{"scale"}, KernelParam: []string{"x", "scale"}, KernelKeyDType: []string{"x"}},
	},
	{
		Name:       Cast,
		Inputs:     []opinfo.InputInfo{tensorInput("x")},
		Attributes: []opinfo.AttributeInfo{attr("dtype", opinfo.AttrTypeDataType)},
		Outputs:    outputs("out"),
		Runtime:    opinfo.RuntimeInfo{KernelFunc: []string{"cast"}, KernelParam: []string{"x", "dtype"}, KernelKeyDType: []string{"x"}},
	},
	{
		Name:       Sum,
		Inputs:     []opinfo.InputInfo{tensorInput("x"), attrInput("axis")},
		Attributes: []opinfo.AttributeInfo{attr("dtype", opinfo.AttrTypeDataType), attr("keepdim", opinfo.AttrTypeBool)},
		Outputs:    outputs("out"),
		Runtime: opinfo.RuntimeInfo{
			KernelFunc:     []string{"sum"},
			KernelParam:    []string{"x", "axis", "dtype", "keepdim"},
			KernelKeyDType: []string{"dtype", "x"},
		},
	},
	{
		Name:    Concat,
		Inputs:  []opinfo.InputInfo{{Name: "x", TypeName: vectorType}, attrInput("axis")},
		Outputs: outputs("out"),
		Runtime: opinfo.RuntimeInfo{KernelFunc: []string{"concat"}, KernelParam: []string{"x", "axis"}, KernelKeyDType: []string{"x"}},
	},
	{
		Name:    Split,
		Inputs:  []opinfo.InputInfo{tensorInput("x"), attrInput("sections"), attrInput("axis")},
		Outputs: []opinfo.OutputInfo{{Name: "out", TypeName: vectorType}},
		Runtime: opinfo.RuntimeInfo{KernelFunc: []string{"split"}, KernelParam: []string{"x", "sections", "axis"}, KernelKeyDType: []string{"x"}},
	},
	{
		Name:   Pool2D,
		Inputs: []opinfo.InputInfo{tensorInput("x"), attrInput("kernel_size")},
		Attributes: []opinfo.AttributeInfo{
			attr("strides", opinfo.AttrTypeIntArray), attr("paddings", opinfo.AttrTypeIntArray),
			attr("pooling_type", opinfo.AttrTypeStr), attr("adaptive", opinfo.AttrTypeBool),
		},
		Outputs: outputs("out"),
		Runtime: opinfo.RuntimeInfo{KernelFunc: []string{"pool2d"}, KernelParam: []string{"x", "kernel_size"}, KernelKeyDType: []string{"x"}},
	},
	{
		Name:   Pool2DGrad,
		Inputs: []opinfo.InputInfo{tensorInput("x"), tensorInput("out"), tensorInput("out_grad"), attrInput("kernel_size")},
		Attributes: []opinfo.AttributeInfo{
			attr("strides", opinfo.AttrTypeIntArray), attr("paddings", opinfo.AttrTypeIntArray),
			attr("pooling_type", opinfo.AttrTypeStr), attr("adaptive", opinfo.AttrTypeBool),
		},
		Outputs: outputs("x_grad"),
		Runtime: opinfo.RuntimeInfo{
			KernelFunc:     []string{"pool2d_grad"},
			KernelParam:    []string{"x", "out", "out_grad", "kernel_size"},
			KernelKeyDType: []string{"x"},
		},
	},
	{
		Name:    AddNInplace,
		Inputs:  []opinfo.InputInfo{{Name: "inputs", TypeName: vectorType}},
		Outputs: outputs("out"),
		Runtime: opinfo.RuntimeInfo{KernelFunc: []string{"add_n"}, KernelParam: []string{"inputs"}, KernelKeyDType: []string{"inputs"}},
		Traits:  []opinfo.Trait{opinfo.TraitInplace},
	},
	{
		Name:    AddNWithKernel,
		Inputs:  []opinfo.InputInfo{{Name: "inputs", TypeName: vectorType}},
		Outputs: outputs("out"),
		Runtime: opinfo.RuntimeInfo{KernelFunc: []string{"add_n"}, KernelParam: []string{"inputs"}, KernelKeyDType: []string{"inputs"}},
	},
	{
		Name:       LoadCombine,
		Attributes: []opinfo.AttributeInfo{attr("file_path", opinfo.AttrTypeStr)},
		Outputs:    []opinfo.OutputInfo{{Name: "out", TypeName: vectorType}},
		Runtime:    opinfo.RuntimeInfo{KernelFunc: []string{"load_combine"}},
		Legacy:     true,
	},
	{
		Name:       MemcpyH2D,
		Inputs:     []opinfo.InputInfo{tensorInput("x")},
		Attributes: []opinfo.AttributeInfo{attr("dst_place_type", opinfo.AttrTypeInt32)},
		Outputs:    outputs("out"),
		Runtime:    opinfo.RuntimeInfo{KernelFunc: []string{KernelMemcpyH2D}, KernelKeyDType: []string{"x"}},
	},
	{
		Name:       MemcpyD2H,
		Inputs:     []opinfo.InputInfo{tensorInput("x")},
		Attributes: []opinfo.AttributeInfo{attr("dst_place_type", opinfo.AttrTypeInt32)},
		Outputs:    outputs("out"),
		Runtime:    opinfo.RuntimeInfo{KernelFunc: []string{KernelMemcpyD2H}, KernelKeyDType: []string{"x"}},
	},
}

// NewCatalog returns a catalog with the declarations of all operators of the standard set.
func NewCatalog() *opinfo.Catalog {
	c := opinfo.NewCatalog()
	for _, info := range declarations {
		c.Register(info)
	}
	return c
}
