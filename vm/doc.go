// Package vm implements the aiscript virtual machine.
//
// This package contains:
//   - Tagged value representation with generation-checked heap references
//   - Heap arena and mark-sweep garbage collector
//   - Object model: strings, collections, closures, classes, enums, errors
//   - Bytecode interpreter and call protocol
//   - Native function bridge, builtins and host value marshalling
//
// A VM is single-threaded. Independent VMs share nothing and may run on
// separate goroutines.
package vm
