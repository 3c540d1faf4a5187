// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opinfo

import (
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"k8s.io/klog/v2"
)

// LiteralDTypes maps the literal data type constants accepted in RuntimeInfo.KernelKeyDType
// to their dtypes.
var LiteralDTypes = map[string]dtypes.DType{
	"DataType::FLOAT16":  dtypes.Float16,
	"DataType::BFLOAT16": dtypes.BFloat16,
	"DataType::FLOAT32":  dtypes.Float32,
	"DataType::FLOAT64":  dtypes.Float64,
	"DataType::INT16":    dtypes.Int16,
	"DataType::INT32":    dtypes.Int32,
	"DataType::INT64":    dtypes.Int64,
	"DataType::INT8":     dtypes.Int8,
	"DataType::BOOL":     dtypes.Bool,
}

// Catalog is the registry of operator declarations, indexed by operator name.
//
// It is safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	parsers map[string]*Parser
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{parsers: make(map[string]*Parser)}
}

// Register adds the operator declaration to the catalog. It panics if an operator with the
// same name is already registered, or if the declaration references unknown slots.
func (c *Catalog) Register(info OpInfo) {
	if info.Name == "" {
		exceptions.Panicf("opinfo.Register(): operator with empty name")
	}
	p := NewParser(&info)
	for _, slot := range info.Runtime.KernelKeyBackend {
		_, isInput := p.InputIndex(slot)
		_, isAttr := p.AttrTypeName(slot)
		if !isInput && !isAttr {
			exceptions.Panicf("opinfo.Register(%q): backend slot %q is neither an input nor an attribute", info.Name, slot)
		}
	}
	for _, slot := range info.Runtime.KernelKeyDType {
		_, isLiteral := LiteralDTypes[slot]
		_, isInput := p.InputIndex(slot)
		_, isAttr := p.AttrTypeName(slot)
		if !isLiteral && !isInput && !isAttr {
			exceptions.Panicf("opinfo.Register(%q): dtype slot %q is neither a data type, an input nor an attribute", info.Name, slot)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.parsers[info.Name]; found {
		exceptions.Panicf("opinfo.Register(%q): operator already registered", info.Name)
	}
	c.parsers[info.Name] = p
	klog.V(3).Infof("registered operator %q (kernel %q)", info.Name, p.KernelFuncName())
}

// Parser returns the parsed declaration of the operator, or nil if it is not registered.
func (c *Catalog) Parser(opName string) *Parser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parsers[opName]
}

// HasTrait returns whether the operator is registered and declares the trait.
func (c *Catalog) HasTrait(opName string, trait Trait) bool {
	p := c.Parser(opName)
	return p != nil && p.HasTrait(trait)
}

// IsLegacy returns whether the operator is registered as a legacy operator.
func (c *Catalog) IsLegacy(opName string) bool {
	p := c.Parser(opName)
	return p != nil && p.IsLegacy()
}

// Names returns the sorted names of the registered operators.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.parsers))
	for name := range c.parsers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
