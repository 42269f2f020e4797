// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package riscv

import (
	"encoding/binary"
	"fmt"
)

// Encode returns the binary encoding of a 32-bit instruction.
// Branch and jump immediates must be resolved to byte offsets (Imm),
// symbolic targets (e.g. other program labels) can't be encoded.
func (insn *Insn) Encode() (uint32, error) {
	tmpl := insn.Template
	if tmpl == nil {
		return 0, fmt.Errorf("%v: no template", insn.Name)
	}
	if tmpl.Pseudo || insn.Compressed {
		return 0, fmt.Errorf("%v: only 32-bit instructions can be encoded", insn.Name)
	}
	rd, rs1, rs2 := uint32(insn.Rd), uint32(insn.Rs1), uint32(insn.Rs2)
	imm := uint32(insn.Imm)
	op, f3, f7 := tmpl.Opcode, tmpl.Funct3, tmpl.Funct7
	switch insn.Format {
	case FormatR:
		return f7<<25 | rs2<<20 | rs1<<15 | f3<<12 | rd<<7 | op, nil
	case FormatI, FormatLoad:
		if tmpl.Imm == ImmShamt {
			return f7<<25 | (imm&0x3f)<<20 | rs1<<15 | f3<<12 | rd<<7 | op, nil
		}
		return (imm&0xfff)<<20 | rs1<<15 | f3<<12 | rd<<7 | op, nil
	case FormatS:
		return (imm>>5&0x7f)<<25 | rs2<<20 | rs1<<15 | f3<<12 | (imm&0x1f)<<7 | op, nil
	case FormatB:
		if insn.Imm&1 != 0 {
			return 0, fmt.Errorf("%v: misaligned branch offset %v", insn.Name, insn.Imm)
		}
		return (imm>>12&1)<<31 | (imm>>5&0x3f)<<25 | rs2<<20 | rs1<<15 | f3<<12 |
			(imm>>1&0xf)<<8 | (imm>>11&1)<<7 | op, nil
	case FormatU:
		return (imm&0xfffff)<<12 | rd<<7 | op, nil
	case FormatJ:
		if insn.Imm&1 != 0 {
			return 0, fmt.Errorf("%v: misaligned jump offset %v", insn.Name, insn.Imm)
		}
		return (imm>>20&1)<<31 | (imm>>1&0x3ff)<<21 | (imm>>11&1)<<20 | (imm>>12&0xff)<<12 | rd<<7 | op, nil
	case FormatNone:
		return tmpl.Fixed, nil
	}
	return 0, fmt.Errorf("%v: unsupported format %v", insn.Name, insn.Format)
}

// EncodeText appends the little-endian encoding of the instructions to text.
func EncodeText(text []byte, insns []*Insn) ([]byte, error) {
	for _, insn := range insns {
		v, err := insn.Encode()
		if err != nil {
			return nil, err
		}
		text = binary.LittleEndian.AppendUint32(text, v)
	}
	return text, nil
}
