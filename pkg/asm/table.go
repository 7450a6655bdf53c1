package asm

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Table maps a mnemonic to its bit pattern: a full 16-bit word for
// register-reference and input/output instructions, or the shorter
// opcode field of a memory-reference instruction.
type Table map[string]string

// LoadTable reads the external opcode-table format: one
// whitespace-separated "mnemonic bitpattern" pair per line, no blank
// lines. Mnemonics are folded to lower case.
func LoadTable(r io.Reader) (Table, error) {
	table := make(Table)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := tokenize(scanner.Text())[0]
		if len(fields) != 2 {
			return nil, fmt.Errorf("table line %d: %w: want \"mnemonic bitpattern\"", lineNo, ErrBadTable)
		}
		mnemonic, bits := fields[0], fields[1]
		if !isBits(bits) || len(bits) > WordBits {
			return nil, fmt.Errorf("table line %d: %w: bit pattern %q", lineNo, ErrBadTable, bits)
		}
		if _, exists := table[mnemonic]; exists {
			return nil, fmt.Errorf("table line %d: %w: duplicate mnemonic %q", lineNo, ErrBadTable, mnemonic)
		}
		table[mnemonic] = bits
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// LoadTableFile loads an opcode table from a file on disk.
func LoadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	table, err := LoadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}
