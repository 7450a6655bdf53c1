// Package cpu simulates the basic computer the assembler targets:
// 4096 words of 16-bit memory, a single accumulator, and a character
// teleprinter reached through the INP and OUT instructions.
package cpu

import "io"

// Memory-reference opcodes, bits 14-12 of the instruction word.
const (
	OpAND uint16 = 0
	OpADD uint16 = 1
	OpLDA uint16 = 2
	OpSTA uint16 = 3
	OpBUN uint16 = 4
	OpBSA uint16 = 5
	OpISZ uint16 = 6
)

// Register-reference micro-operation bits (opcode 111, I=0).
const (
	BitCLA uint16 = 0x800
	BitCLE uint16 = 0x400
	BitCMA uint16 = 0x200
	BitCME uint16 = 0x100
	BitCIR uint16 = 0x080
	BitCIL uint16 = 0x040
	BitINC uint16 = 0x020
	BitSPA uint16 = 0x010
	BitSNA uint16 = 0x008
	BitSZA uint16 = 0x004
	BitSZE uint16 = 0x002
	BitHLT uint16 = 0x001
)

// Input/output micro-operation bits (opcode 111, I=1).
const (
	BitINP uint16 = 0x800
	BitOUT uint16 = 0x400
	BitSKI uint16 = 0x200
	BitSKO uint16 = 0x100
	BitION uint16 = 0x080
	BitIOF uint16 = 0x040
)

const (
	// MemoryWords is the size of the address space.
	MemoryWords = 4096

	addrMask = 0x0FFF
	signBit  = 0x8000
)

// CPU is the simulated machine. Registers are exported so front ends
// and tests can inspect or preload them directly.
type CPU struct {
	Memory [MemoryWords]uint16

	AC uint16 // accumulator
	DR uint16 // data register
	IR uint16 // instruction register
	AR uint16 // address register, 12 bits
	PC uint16 // program counter, 12 bits
	E  bool   // extended accumulator (carry) bit

	INPR byte // input register, loaded from the teleprinter queue
	OUTR byte // output register, flushed to Output

	IEN bool // interrupts enabled
	FGI bool // input flag: INPR holds an unread character
	FGO bool // output flag: the printer is ready

	Halted bool
	Cycles uint64

	// Output receives every byte the OUT instruction prints. Nil
	// discards the stream.
	Output io.Writer

	input []byte // pending teleprinter characters behind INPR
}

func New() *CPU {
	return &CPU{FGO: true}
}

// Load copies an assembled memory image into memory. Addresses beyond
// the 12-bit space are ignored.
func (c *CPU) Load(words map[uint16]uint16) {
	for addr, word := range words {
		if addr < MemoryWords {
			c.Memory[addr] = word
		}
	}
}

// PushInput queues one teleprinter character. The first queued byte is
// latched into INPR and raises FGI; the rest follow as INP consumes
// them.
func (c *CPU) PushInput(b byte) {
	c.input = append(c.input, b)
	c.pumpInput()
}

// PushString queues every byte of s as teleprinter input.
func (c *CPU) PushString(s string) {
	for i := 0; i < len(s); i++ {
		c.PushInput(s[i])
	}
}

func (c *CPU) pumpInput() {
	if !c.FGI && len(c.input) > 0 {
		c.INPR = c.input[0]
		c.input = c.input[1:]
		c.FGI = true
	}
}

func (c *CPU) outputSink() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return io.Discard
}

// Step runs one instruction cycle: interrupt check, fetch, decode and
// execute. It is a no-op once the machine has halted.
func (c *CPU) Step() {
	if c.Halted {
		return
	}
	c.Cycles++
	c.pumpInput()

	// Interrupt cycle: save the return point at address 0 and vector
	// to address 1 with further interrupts disabled.
	if c.IEN && (c.FGI || c.FGO) {
		c.Memory[0] = c.PC
		c.PC = 1
		c.IEN = false
		return
	}

	c.AR = c.PC
	c.IR = c.Memory[c.AR]
	c.PC = (c.PC + 1) & addrMask

	indirect := c.IR&signBit != 0
	opcode := (c.IR >> 12) & 0x7
	c.AR = c.IR & addrMask

	if opcode < 7 {
		if indirect {
			c.AR = c.Memory[c.AR] & addrMask
		}
		c.executeMRI(opcode)
		return
	}
	if indirect {
		c.executeIOI(c.IR & addrMask)
		return
	}
	c.executeRRI(c.IR & addrMask)
}

func (c *CPU) executeMRI(opcode uint16) {
	switch opcode {
	case OpAND:
		c.DR = c.Memory[c.AR]
		c.AC &= c.DR
	case OpADD:
		c.DR = c.Memory[c.AR]
		sum := uint32(c.AC) + uint32(c.DR)
		c.AC = uint16(sum)
		c.E = sum > 0xFFFF
	case OpLDA:
		c.DR = c.Memory[c.AR]
		c.AC = c.DR
	case OpSTA:
		c.Memory[c.AR] = c.AC
	case OpBUN:
		c.PC = c.AR
	case OpBSA:
		c.Memory[c.AR] = c.PC
		c.PC = (c.AR + 1) & addrMask
	case OpISZ:
		c.DR = c.Memory[c.AR] + 1
		c.Memory[c.AR] = c.DR
		if c.DR == 0 {
			c.skip()
		}
	}
}

func (c *CPU) executeRRI(bits uint16) {
	if bits&BitCLA != 0 {
		c.AC = 0
	}
	if bits&BitCLE != 0 {
		c.E = false
	}
	if bits&BitCMA != 0 {
		c.AC = ^c.AC
	}
	if bits&BitCME != 0 {
		c.E = !c.E
	}
	if bits&BitCIR != 0 {
		low := c.AC&1 != 0
		c.AC >>= 1
		if c.E {
			c.AC |= signBit
		}
		c.E = low
	}
	if bits&BitCIL != 0 {
		high := c.AC&signBit != 0
		c.AC <<= 1
		if c.E {
			c.AC |= 1
		}
		c.E = high
	}
	if bits&BitINC != 0 {
		c.AC++
	}
	if bits&BitSPA != 0 && c.AC&signBit == 0 {
		c.skip()
	}
	if bits&BitSNA != 0 && c.AC&signBit != 0 {
		c.skip()
	}
	if bits&BitSZA != 0 && c.AC == 0 {
		c.skip()
	}
	if bits&BitSZE != 0 && !c.E {
		c.skip()
	}
	if bits&BitHLT != 0 {
		c.Halted = true
	}
}

func (c *CPU) executeIOI(bits uint16) {
	if bits&BitINP != 0 {
		c.AC = (c.AC &^ 0x00FF) | uint16(c.INPR)
		c.FGI = false
		c.pumpInput()
	}
	if bits&BitOUT != 0 {
		c.OUTR = byte(c.AC)
		c.outputSink().Write([]byte{c.OUTR})
		// The simulated printer finishes instantly, so FGO stays
		// raised for the next SKO.
		c.FGO = true
	}
	if bits&BitSKI != 0 && c.FGI {
		c.skip()
	}
	if bits&BitSKO != 0 && c.FGO {
		c.skip()
	}
	if bits&BitION != 0 {
		c.IEN = true
	}
	if bits&BitIOF != 0 {
		c.IEN = false
	}
}

func (c *CPU) skip() {
	c.PC = (c.PC + 1) & addrMask
}

// Run executes until the machine halts.
func (c *CPU) Run() {
	for !c.Halted {
		c.Step()
	}
}

// RunFor executes at most cycles instruction cycles and reports
// whether the machine halted within them.
func (c *CPU) RunFor(cycles uint64) bool {
	for i := uint64(0); i < cycles && !c.Halted; i++ {
		c.Step()
	}
	return c.Halted
}
