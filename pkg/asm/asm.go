// Package asm implements a two-pass assembler for the basic-computer
// instruction set: 16-bit words, a 12-bit address space, and three
// instruction families (memory-reference, register-reference and
// input/output) described by externally loaded opcode tables.
//
// The first pass walks the tokenized source once, tracking the origin
// established by each org directive, and binds every label to the
// address of its line. The second pass classifies each line, consults
// the symbol table and the opcode tables, and emits one 16-bit word
// per allocated address. Forward references are legal: a
// memory-reference instruction may name a label defined later in the
// source, including data lines that follow the halt instruction.
package asm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// AddressBits is the width of an address field.
	AddressBits = 12
	// WordBits is the width of a memory word.
	WordBits = 16
)

const (
	commentMarker   = "/"
	labelTerminator = ","
	indirectMarker  = "i"
	originDirective = "org"
	endDirective    = "end"
	haltMnemonic    = "hlt"
	hexKeyword      = "hex"
	decKeyword      = "dec"
)

// Error kinds. An assembly failure wraps exactly one of these together
// with the 1-based source line it occurred on, so callers can match
// with errors.Is.
var (
	ErrMalformedLabel   = errors.New("label without an instruction")
	ErrUndefinedSymbol  = errors.New("undefined symbol")
	ErrUnclassifiable   = errors.New("unclassifiable line")
	ErrOverflow         = errors.New("value out of range")
	ErrMissingStructure = errors.New("program must open with org and close with end")
	ErrDuplicateLabel   = errors.New("duplicate label")
	ErrBadTable         = errors.New("malformed opcode table")
)

// Assembler translates basic-computer assembly source into a memory
// image. The three opcode tables are read-only after construction; a
// single Assembler may be reused across Assemble calls.
type Assembler struct {
	mri Table // memory-reference: mnemonic -> opcode field (< 16 bits)
	rri Table // register-reference: mnemonic -> full 16-bit word
	ioi Table // input/output: mnemonic -> full 16-bit word
}

func New(mri, rri, ioi Table) *Assembler {
	return &Assembler{mri: mri, rri: rri, ioi: ioi}
}

// Assemble runs both passes over source and returns the final memory
// image. The source must open with an org directive and contain an end
// directive; any malformed line aborts the run with a line-numbered
// error and no partial image.
func (a *Assembler) Assemble(source string) (*Image, error) {
	lines := tokenize(source)
	symbols, slots, err := pass1(lines)
	if err != nil {
		return nil, err
	}
	return a.pass2(lines, symbols, slots)
}

// Symbols runs the first pass only and returns the label bindings,
// label name to 12-bit binary address.
func (a *Assembler) Symbols(source string) (map[string]string, error) {
	symbols, _, err := pass1(tokenize(source))
	return symbols, err
}

// slot is one address allocated by the first pass, still awaiting its
// word from the second.
type slot struct {
	line int    // index into the tokenized line sequence
	addr string // 12-bit binary address
}

// pass1 assigns an address to every program line between the opening
// org and the end directive, and records each label definition. An org
// directive resets the running offset without consuming an address; any
// other line consumes exactly one, whether it holds code or data.
func pass1(lines [][]string) (map[string]string, []slot, error) {
	if len(lines) == 0 || len(lines[0]) == 0 || lines[0][0] != originDirective {
		return nil, nil, fmt.Errorf("line 1: %w", ErrMissingStructure)
	}
	origin, err := parseOrigin(lines[0], 1)
	if err != nil {
		return nil, nil, err
	}

	symbols := make(map[string]string)
	var slots []slot
	offset := 0
	ended := false

	for i := 1; i < len(lines); i++ {
		lineNo := i + 1
		tokens := lines[i]

		if len(tokens) > 0 && tokens[0] == endDirective {
			ended = true
			break
		}
		if len(tokens) > 0 && tokens[0] == originDirective {
			origin, err = parseOrigin(tokens, lineNo)
			if err != nil {
				return nil, nil, err
			}
			offset = 0
			continue
		}

		addr := int(origin) + offset
		if addr >= 1<<AddressBits {
			return nil, nil, fmt.Errorf("line %d: %w: address %#x exceeds %d bits", lineNo, ErrOverflow, addr, AddressBits)
		}
		bin := fmt.Sprintf("%0*b", AddressBits, addr)
		slots = append(slots, slot{line: i, addr: bin})
		offset++

		if len(tokens) > 0 && isLabel(tokens[0]) {
			if len(tokens) < 2 {
				return nil, nil, fmt.Errorf("line %d: %w", lineNo, ErrMalformedLabel)
			}
			name := strings.TrimSuffix(tokens[0], labelTerminator)
			if _, exists := symbols[name]; exists {
				return nil, nil, fmt.Errorf("line %d: %w: %q", lineNo, ErrDuplicateLabel, name)
			}
			symbols[name] = bin
		}
	}

	if !ended {
		return nil, nil, fmt.Errorf("%w: no end directive", ErrMissingStructure)
	}
	return symbols, slots, nil
}

func parseOrigin(tokens []string, lineNo int) (uint16, error) {
	if len(tokens) < 2 {
		return 0, fmt.Errorf("line %d: %w: org needs a hex address", lineNo, ErrMissingStructure)
	}
	v, err := strconv.ParseUint(tokens[1], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %w: bad origin %q", lineNo, ErrUnclassifiable, tokens[1])
	}
	if v >= 1<<AddressBits {
		return 0, fmt.Errorf("line %d: %w: origin %s exceeds %d bits", lineNo, ErrOverflow, tokens[1], AddressBits)
	}
	return uint16(v), nil
}

// pass2 walks the allocated slots in order and fills in each word.
// Classification checks the families in a fixed priority: halt, then
// register-reference, memory-reference, input/output, and finally data
// literals, which are only legal once a halt has been seen.
func (a *Assembler) pass2(lines [][]string, symbols map[string]string, slots []slot) (*Image, error) {
	img := newImage(slots)
	halted := false

	for i, s := range slots {
		lineNo := s.line + 1
		raw := lines[s.line]
		label, tokens := splitLabel(raw)

		if containsToken(raw, haltMnemonic) {
			word, ok := a.rri[haltMnemonic]
			if !ok {
				return nil, fmt.Errorf("line %d: %w: no %s entry", lineNo, ErrBadTable, haltMnemonic)
			}
			img.set(i, word)
			halted = true
			continue
		}
		if len(tokens) == 0 {
			return nil, fmt.Errorf("line %d: %w: empty line inside program", lineNo, ErrUnclassifiable)
		}
		mnemonic := tokens[0]

		if word, ok := a.rri[mnemonic]; ok {
			img.set(i, word)
			continue
		}
		if field, ok := a.mri[mnemonic]; ok {
			word, err := a.encodeMRI(mnemonic, field, tokens, symbols, lineNo)
			if err != nil {
				return nil, err
			}
			img.set(i, word)
			continue
		}
		if word, ok := a.ioi[mnemonic]; ok {
			img.set(i, word)
			continue
		}
		if halted && label != "" && len(tokens) == 2 && (mnemonic == hexKeyword || mnemonic == decKeyword) {
			word, err := formatBinary(tokens[1], mnemonic, WordBits)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			img.set(i, word)
			continue
		}
		return nil, fmt.Errorf("line %d: %w: %q", lineNo, ErrUnclassifiable, strings.Join(raw, " "))
	}

	img.prune()
	return img, nil
}

// encodeMRI composes indirection bit + opcode field + operand address.
// tokens is the mnemonic-first token list; the operand label follows
// the mnemonic and the indirect marker may appear anywhere after it.
func (a *Assembler) encodeMRI(mnemonic, field string, tokens []string, symbols map[string]string, lineNo int) (string, error) {
	if len(tokens) < 2 {
		return "", fmt.Errorf("line %d: %w: %s needs a label operand", lineNo, ErrUnclassifiable, mnemonic)
	}
	target, ok := symbols[tokens[1]]
	if !ok {
		return "", fmt.Errorf("line %d: %w: %q", lineNo, ErrUndefinedSymbol, tokens[1])
	}
	indirect := "0"
	for _, tok := range tokens[1:] {
		if tok == indirectMarker {
			indirect = "1"
		}
	}
	word := indirect + field + target
	if len(word) != WordBits {
		return "", fmt.Errorf("line %d: %w: %s opcode field %q does not fill a %d-bit word", lineNo, ErrBadTable, mnemonic, field, WordBits)
	}
	return word, nil
}

// formatBinary converts a literal in the given radix keyword ("hex" or
// "dec") to a zero-padded binary string of exactly bits digits. A value
// that does not fit is an error, never a truncation.
func formatBinary(literal, radix string, bits int) (string, error) {
	var base int
	switch radix {
	case decKeyword:
		base = 10
	case hexKeyword:
		base = 16
	default:
		return "", fmt.Errorf("%w: unsupported radix %q", ErrUnclassifiable, radix)
	}
	v, err := strconv.ParseUint(literal, base, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return "", fmt.Errorf("%w: %s literal %q", ErrOverflow, radix, literal)
		}
		return "", fmt.Errorf("%w: bad %s literal %q", ErrUnclassifiable, radix, literal)
	}
	if v >= 1<<bits {
		return "", fmt.Errorf("%w: %s literal %q exceeds %d bits", ErrOverflow, radix, literal, bits)
	}
	return fmt.Sprintf("%0*b", bits, v), nil
}
