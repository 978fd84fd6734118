// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Radiolink - AMBER Radio Module Tool
//
// A CLI tool for driving, monitoring and decoding AMBER radio modules
// over their serial command interface.

package main

import (
	"os"

	"github.com/Thermoquad/radiolink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
