// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"uopc/internal/backend"
	"uopc/internal/diagnostics"
	"uopc/internal/session"
	"uopc/internal/uop"
	"uopc/internal/uoptext"
)

func main() {
	args := os.Args[1:]
	var backendPath, path string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-backend":
			i++
			if i >= len(args) {
				fmt.Println("uopc: -backend requires a path")
				os.Exit(1)
			}
			backendPath = args[i]
		default:
			path = args[i]
		}
	}
	if path == "" {
		fmt.Println("Usage: uopc [-backend <file>.yaml] <file.uop>")
		os.Exit(1)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("uopc: failed to read %s: %s", path, err)
		os.Exit(1)
	}

	cfg, err := backend.LoadConfig(backendPath)
	if err != nil {
		color.Red("uopc: failed to load backend profile %s: %s", backendPath, err)
		os.Exit(1)
	}
	d := cfg.Descriptor(uop.ALUNameTable())

	expr, err := uoptext.Parse(string(source))
	if err != nil {
		// uoptext.Parse already printed a caret-style diagnostic.
		os.Exit(1)
	}

	s := session.New()
	sink, err := uoptext.Lower(s.Store, expr)
	if err != nil {
		if d, ok := err.(diagnostics.Diagnostic); ok {
			r := diagnostics.NewReporter(path, string(source))
			fmt.Print(r.Format(d))
		} else {
			color.Red("uopc: %s", err)
		}
		os.Exit(1)
	}

	instrs, err := s.Compile(sink, d)
	if err != nil {
		color.Red("uopc: compilation failed: %s", err)
		os.Exit(1)
	}

	fmt.Print(uoptext.Print(instrs))
	color.Green("✅ compiled %s: %d instructions", path, len(instrs))
}
