// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernellower

import (
	"github.com/dustin/go-humanize"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"github.com/gomlx/kernelpass/pkg/core/ir"
	"github.com/gomlx/kernelpass/pkg/core/kernels"
	"github.com/gomlx/kernelpass/pkg/core/opinfo"
	"github.com/gomlx/kernelpass/pkg/opset"
	"github.com/gomlx/kernelpass/pkg/support/sets"
	"k8s.io/klog/v2"
)

// lowering holds the state of one call to Pass.Lower.
type lowering struct {
	*Pass

	src         *ir.Program
	program     *ir.Program
	block       *ir.Block
	values      *ValueMap
	execBackend dispatch.Backend

	numTransfers int
	skippedFeeds sets.Set[string]
}

func newLowering(p *Pass, src *ir.Program) *lowering {
	program := ir.NewProgram(src.Name())
	return &lowering{
		Pass:         p,
		src:          src,
		program:      program,
		block:        program.Block(),
		values:       NewValueMap(),
		execBackend:  dispatch.BackendOf(p.place),
		skippedFeeds: sets.Make[string](),
	}
}

// run lowers the operations of the source block in creation order, which is their
// topological order.
func (l *lowering) run() {
	if klog.V(2).Enabled() {
		klog.Infof("kernellower: program before lowering to %s:\n%s", l.place, l.src)
	}
	inputNames := graphInputNames(l.src.Block())
	for _, op := range l.src.Block().Operations() {
		klog.V(6).Infof("kernellower: lowering %q (#%d)", op.Name(), op.Id())
		if op.Name() == opset.Feed {
			if name := string(requireAttr[ir.StrAttr](op, ir.AttrName)); inputNames.Has(name) {
				klog.V(6).Infof("kernellower: skipping feed %q, shadowed by a graph input", name)
				l.skippedFeeds.Insert(name)
				continue
			}
		}
		if structuralOps.Has(op.Name()) {
			l.lowerStructural(op)
			continue
		}
		l.lowerKernelOp(op)
	}
	if klog.V(2).Enabled() {
		klog.Infof("kernellower: program after lowering to %s (%s operations, %s transfers, feeds skipped %v):\n%s",
			l.place, humanize.Comma(int64(l.block.Len())), humanize.Comma(int64(l.numTransfers)),
			sets.Sorted(l.skippedFeeds), l.program)
	}
}

// graphInputNames returns the names of the graph inputs of the block: feeds with the same
// name are redundant.
func graphInputNames(block *ir.Block) sets.Set[string] {
	names := sets.Make[string]()
	for _, op := range block.Operations() {
		if op.Name() == opset.Data {
			names.Insert(string(requireAttr[ir.StrAttr](op, ir.AttrName)))
		}
	}
	return names
}

// lowerKernelOp creates the kernel operation for op, along with the copies its operands need.
func (l *lowering) lowerKernelOp(op *ir.Operation) {
	name := op.Name()
	parser := l.ops.Parser(name)
	kernelName := l.kernelName(op, parser)

	key := l.resolveKernelKey(op, parser)
	key = l.applyFallbacks(op, kernelName, key)
	var kernel kernels.Kernel
	if kernelName != "" {
		kernel = l.kernels.Select(kernelName, key)
	}
	klog.V(6).Infof("kernellower: %q: kernel %q, key %s, found=%v", name, kernelName, key, kernel.IsValid())

	resultTypes := l.buildOutputTypes(op, kernel, key)
	operands := l.prepareOperands(op, parser, kernel)

	attrs := op.Attributes()
	attrs[AttrOpName] = ir.StrAttr(name)
	attrs[AttrKernelName] = ir.StrAttr(kernelName)
	attrs[AttrKernelKey] = ir.KernelKeyAttr(key)
	if l.ops.HasTrait(name, opinfo.TraitInplace) {
		attrs[AttrIsInplace] = ir.BoolAttr(true)
	}
	kind := KernelOpName
	if l.ops.IsLegacy(name) {
		kind = LegacyKernelOpName
	}
	lowered := l.block.Append(kind, operands, attrs, resultTypes...)
	l.values.RecordOp(op, lowered)
	l.addShadowCopy(op, lowered)
}

// kernelName returns the kernel declared for op, after the sparseKernelOverrides.
func (l *lowering) kernelName(op *ir.Operation, parser *opinfo.Parser) string {
	var kernelName string
	if parser != nil {
		kernelName = parser.KernelFuncName()
	}
	if sparse, found := sparseKernelOverrides[op.Name()]; found && op.NumResults() > 0 {
		if _, isSparse := op.Result(0).Type().(ir.SelectedRowsType); isSparse {
			kernelName = sparse
		}
	}
	return kernelName
}

// addShadowCopy copies the value produced by a feed, or by a graph input not declared on the
// accelerator, to the accelerator, when that is the execution place. Later readers of the
// source value get the copy.
func (l *lowering) addShadowCopy(op, lowered *ir.Operation) {
	if !l.place.IsGPU() {
		return
	}
	switch op.Name() {
	case opset.Feed:
	case opset.Data:
		if dispatch.Place(requireAttr[ir.PlaceAttr](op, ir.AttrPlace)).IsGPU() {
			return
		}
	default:
		return
	}
	produced := lowered.Result(0)
	if _, ok := produced.Type().(ir.AllocatedType); !ok {
		panicUnsupported(op.Name(), "result type %v can't be copied to the accelerator", produced.Type())
	}
	shadow := l.addPlaceTransfer(op.Name(), produced, l.place)
	l.values.RecordOp(op, shadow.DefiningOp())
}
