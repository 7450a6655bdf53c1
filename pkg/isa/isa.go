// Package isa carries the standard basic-computer opcode tables,
// embedded in the same text format an external table file uses, so the
// assembler works out of the box without table files on disk.
package isa

import (
	_ "embed"
	"fmt"
	"strings"

	"manoasm/pkg/asm"
)

//go:embed mri.txt
var mriText string

//go:embed rri.txt
var rriText string

//go:embed ioi.txt
var ioiText string

// Tables returns the three default opcode tables: memory-reference,
// register-reference and input/output.
func Tables() (mri, rri, ioi asm.Table, err error) {
	if mri, err = asm.LoadTable(strings.NewReader(mriText)); err != nil {
		return nil, nil, nil, fmt.Errorf("embedded mri table: %w", err)
	}
	if rri, err = asm.LoadTable(strings.NewReader(rriText)); err != nil {
		return nil, nil, nil, fmt.Errorf("embedded rri table: %w", err)
	}
	if ioi, err = asm.LoadTable(strings.NewReader(ioiText)); err != nil {
		return nil, nil, nil, fmt.Errorf("embedded ioi table: %w", err)
	}
	return mri, rri, ioi, nil
}

// New returns an assembler configured with the default tables.
func New() (*asm.Assembler, error) {
	mri, rri, ioi, err := Tables()
	if err != nil {
		return nil, err
	}
	return asm.New(mri, rri, ioi), nil
}
