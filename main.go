// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main is the entry point for the pbiexport CLI.
package main

import (
	"pbiexport/cli/cmd"
)

func main() {
	cmd.Execute()
}
