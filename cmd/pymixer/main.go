/*
Python Obfuscator (Entry Point)

This tool parses Python source files, applies the configured obfuscation
passes, and emits equivalent but unreadable Python code. It supports single
files, whole directory trees, and reverse lookups against a saved rename
registry.
*/
package main

import (
	"github.com/whit3rabbit/pymixer/cmd/pymixer/cmd"
)

// main is the entry point of the application.
func main() {
	cmd.Execute()
}
