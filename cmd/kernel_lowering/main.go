// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// kernel_lowering lowers one of the demo programs of the standard operator set and reports the
// kernels selected for each operation and the copies inserted between host and accelerator.
//
// Usage:
//
//	kernel_lowering -place=gpu:0 -program=mlp
//
// The default place can be set with the environment variable GOMLX_EXECUTION_PLACE.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/kernelpass/pkg/core/dispatch"
	"github.com/gomlx/kernelpass/pkg/opset"
	"github.com/gomlx/kernelpass/pkg/support/xslices"
	"github.com/gomlx/kernelpass/pkg/transforms/kernellower"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"k8s.io/klog/v2"
)

// ExecutionPlaceEnv is the environment variable with the default value of -place.
const ExecutionPlaceEnv = "GOMLX_EXECUTION_PLACE"

var (
	flagPlace     = flag.String("place", defaultPlace(), "Execution place to lower to, e.g. \"cpu\", \"gpu:0\". Defaults to $"+ExecutionPlaceEnv+", or \"gpu:0\".")
	flagProgram   = flag.String("program", "mlp", "Demo program to lower, one of "+fmt.Sprint(programNames()))
	flagThreshold = flag.Int64("threshold", kernellower.DefaultInitOnAcceleratorThreshold,
		"Number of elements above which generated values are placed on the accelerator.")
	flagHostOnly = flag.Bool("host_only", false, "Use a kernel registry without accelerator kernels.")
	flagPlain    = flag.Bool("plain", false, "Don't use colors in the report.")
	flagPrint    = flag.Bool("print", false, "Also print the program before and after lowering.")
)

func defaultPlace() string {
	if place, found := os.LookupEnv(ExecutionPlaceEnv); found {
		return place
	}
	return "gpu:0"
}

func programNames() []string { return xslices.SortedKeys(demoPrograms) }

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if *flagPlain {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	build, found := demoPrograms[*flagProgram]
	if !found {
		klog.Errorf("Unknown program %q, see 'kernel_lowering -help'", *flagProgram)
		os.Exit(1)
	}
	place, err := dispatch.ParsePlace(*flagPlace)
	if err != nil {
		klog.Errorf("Invalid -place: %+v", err)
		os.Exit(1)
	}

	src := build()
	registry, catalog := opset.NewKernelRegistry(!*flagHostOnly), opset.NewCatalog()
	pass := kernellower.New(registry, catalog, place).WithInitOnAcceleratorThreshold(*flagThreshold)
	lowered := must.M1(pass.Lower(src))

	if *flagPrint {
		fmt.Println(titleStyle.Render("Source"))
		fmt.Println(src)
		fmt.Println(titleStyle.Render("Lowered"))
		fmt.Println(lowered)
	}
	report(src, lowered, pass, registry, catalog)
}
