// Package symbolize resolves target memory addresses to human-readable
// names through the firmware's ELF symbol table.
//
// Function-monitor definitions and executor/task long IDs arrive as raw
// addresses; the table maps them to demangled symbol names. Addresses with
// no symbol fall back to hex literal forms so the trace stays readable
// without the firmware image.
package symbolize

import (
	"debug/elf"
	"errors"
	"fmt"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Table maps symbol addresses to demangled names.
type Table struct {
	names map[uint64]string
}

// NewTable builds a table from an already-open ELF file.
func NewTable(f *elf.File) (*Table, error) {
	names := make(map[uint64]string)

	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("symbolize: reading symbol table: %w", err)
	}

	for _, sym := range syms {
		if sym.Value == 0 || sym.Name == "" {
			continue
		}
		// Later duplicates overwrite aliases, keeping the last definition.
		names[sym.Value] = shortName(demangle.Filter(sym.Name))
	}

	return &Table{names: names}, nil
}

// Open builds a table from an ELF file on disk.
func Open(path string) (*Table, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symbolize: opening %s: %w", path, err)
	}
	defer f.Close()

	return NewTable(f)
}

// Resolve returns the symbol name at addr.
func (t *Table) Resolve(addr uint64) (string, bool) {
	name, ok := t.names[addr]

	return name, ok
}

// Len returns the number of resolvable addresses.
func (t *Table) Len() int {
	return len(t.names)
}

// FunctionName resolves a function-monitor address, falling back to a hex
// literal.
func (t *Table) FunctionName(addr uint64) string {
	if name, ok := t.Resolve(addr); ok {
		return name
	}

	return fmt.Sprintf("Function 0x%X", addr)
}

// TaskName resolves a task's long ID, falling back to a hex literal.
func (t *Table) TaskName(addr uint64) string {
	if name, ok := t.Resolve(addr); ok {
		return name
	}

	return fmt.Sprintf("Task 0x%X", addr)
}

// ExecutorName resolves an executor's long ID, falling back to a hex
// literal.
func (t *Table) ExecutorName(addr uint64) string {
	if name, ok := t.Resolve(addr); ok {
		return name
	}

	return fmt.Sprintf("Executor 0x%X", addr)
}

// shortName trims the static-cell suffix that task symbols carry: the
// interesting part of "app::blinker::POOL" is "app::blinker".
func shortName(name string) string {
	if i := strings.Index(name, "::POOL"); i >= 0 {
		return name[:i]
	}

	return name
}
