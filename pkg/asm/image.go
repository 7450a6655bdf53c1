package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrBadImage reports a malformed serialized memory image.
var ErrBadImage = errors.New("malformed memory image")

// Entry is one assembled word at its address, both as zero-padded
// binary strings (12 and 16 characters respectively).
type Entry struct {
	Addr string
	Word string
}

// Image is the sparse memory image produced by an assembly run.
// Entries keep the address-allocation order of the first pass, so
// serialization is deterministic.
type Image struct {
	entries  []Entry
	assigned []bool
}

// newImage builds the arena for the second pass: one unassigned entry
// per allocated slot, in allocation order.
func newImage(slots []slot) *Image {
	img := &Image{
		entries:  make([]Entry, len(slots)),
		assigned: make([]bool, len(slots)),
	}
	for i, s := range slots {
		img.entries[i].Addr = s.addr
	}
	return img
}

func (img *Image) set(i int, word string) {
	img.entries[i].Word = word
	img.assigned[i] = true
}

// prune drops every entry that never received a word, such as the slot
// a skipped relocation sequence allocated. After prune the image holds
// exactly one 16-bit word per remaining address.
func (img *Image) prune() {
	kept := img.entries[:0]
	for i, e := range img.entries {
		if img.assigned[i] {
			kept = append(kept, e)
		}
	}
	img.entries = kept
	img.assigned = nil
}

// Len returns the number of assembled words.
func (img *Image) Len() int {
	return len(img.entries)
}

// Entries returns the assembled words in allocation order. The slice is
// shared; callers must not modify it.
func (img *Image) Entries() []Entry {
	return img.entries
}

// Words returns the image as an address->word map.
func (img *Image) Words() map[string]string {
	words := make(map[string]string, len(img.entries))
	for _, e := range img.entries {
		words[e.Addr] = e.Word
	}
	return words
}

// At returns the word stored at a 12-bit binary address.
func (img *Image) At(addr string) (string, bool) {
	for _, e := range img.entries {
		if e.Addr == addr {
			return e.Word, true
		}
	}
	return "", false
}

// Binary converts the image to numeric address->word pairs for a
// loader or simulator.
func (img *Image) Binary() (map[uint16]uint16, error) {
	out := make(map[uint16]uint16, len(img.entries))
	for _, e := range img.entries {
		addr, err := strconv.ParseUint(e.Addr, 2, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: address %q", ErrBadImage, e.Addr)
		}
		word, err := strconv.ParseUint(e.Word, 2, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: word %q", ErrBadImage, e.Word)
		}
		out[uint16(addr)] = uint16(word)
	}
	return out, nil
}

// WriteTo serializes the image as one "address word" pair per line,
// preserving allocation order.
func (img *Image) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range img.entries {
		n, err := fmt.Fprintf(w, "%s %s\n", e.Addr, e.Word)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ReadImage parses the text format written by WriteTo.
func ReadImage(r io.Reader) (*Image, error) {
	img := &Image{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("image line %d: %w: want \"address word\"", lineNo, ErrBadImage)
		}
		addr, word := fields[0], fields[1]
		if len(addr) != AddressBits || !isBits(addr) {
			return nil, fmt.Errorf("image line %d: %w: address %q", lineNo, ErrBadImage, addr)
		}
		if len(word) != WordBits || !isBits(word) {
			return nil, fmt.Errorf("image line %d: %w: word %q", lineNo, ErrBadImage, word)
		}
		img.entries = append(img.entries, Entry{Addr: addr, Word: word})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return img, nil
}

func isBits(s string) bool {
	for _, r := range s {
		if r != '0' && r != '1' {
			return false
		}
	}
	return len(s) > 0
}
