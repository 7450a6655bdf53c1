package main

import (
	"bytes"
	"os"
	"testing"

	"manoasm/pkg/cpu"
	"manoasm/pkg/isa"
)

// assembleAndRun loads a testdata program, assembles it with the
// default tables, and executes it from its first image address.
func assembleAndRun(t *testing.T, path string, output *bytes.Buffer) *cpu.CPU {
	t.Helper()

	source, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	a, err := isa.New()
	if err != nil {
		t.Fatalf("isa.New: %v", err)
	}
	img, err := a.Assemble(string(source))
	if err != nil {
		t.Fatalf("assemble %s: %v", path, err)
	}
	words, err := img.Binary()
	if err != nil {
		t.Fatalf("binary image: %v", err)
	}

	vm := cpu.New()
	if output != nil {
		vm.Output = output
	}
	vm.Load(words)
	pc, err := startAddress(img)
	if err != nil {
		t.Fatalf("start address: %v", err)
	}
	vm.PC = pc

	if halted := vm.RunFor(100_000); !halted {
		t.Fatalf("%s did not halt", path)
	}
	return vm
}

func TestAddProgram(t *testing.T) {
	vm := assembleAndRun(t, "testdata/add.asm", nil)
	// c sits two words past the halt at 0x104.
	if vm.Memory[0x106] != 85 {
		t.Errorf("c = %d, want 85", vm.Memory[0x106])
	}
	if vm.AC != 85 {
		t.Errorf("AC = %d, want 85", vm.AC)
	}
}

func TestMultiplyProgram(t *testing.T) {
	vm := assembleAndRun(t, "testdata/mul.asm", nil)
	// sum is the last data word, three past the halt at 0x106.
	if vm.Memory[0x109] != 42 {
		t.Errorf("sum = %d, want 42", vm.Memory[0x109])
	}
}

func TestHelloProgram(t *testing.T) {
	var out bytes.Buffer
	assembleAndRun(t, "testdata/hello.asm", &out)
	if out.String() != "HI" {
		t.Errorf("output %q, want %q", out.String(), "HI")
	}
}
