// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package riscv describes RISC-V instructions as they are handled by the sequence
// generator: templates of RV32/RV64 I, M and C instructions, and Insn, a concrete
// instruction together with the labeling state used while post-processing a sequence.
package riscv

import (
	"fmt"
	"strings"
)

type Category int

const (
	CategoryArithmetic Category = iota
	CategoryLogical
	CategoryShift
	CategoryCompare
	CategoryBranch
	CategoryJump
	CategoryLoad
	CategoryStore
	CategorySynch
	CategorySystem
	CategoryLast
)

var categoryNames = [CategoryLast]string{
	"ARITHMETIC", "LOGICAL", "SHIFT", "COMPARE", "BRANCH", "JUMP", "LOAD", "STORE", "SYNCH", "SYSTEM",
}

func (c Category) String() string {
	if c < 0 || c >= CategoryLast {
		return fmt.Sprintf("CATEGORY(%d)", int(c))
	}
	return categoryNames[c]
}

type Format int

const (
	FormatR      Format = iota // add rd, rs1, rs2
	FormatI                    // addi rd, rs1, imm
	FormatLoad                 // lw rd, imm(rs1)
	FormatS                    // sw rs2, imm(rs1)
	FormatB                    // beq rs1, rs2, label
	FormatU                    // lui rd, imm
	FormatJ                    // jal rd, label
	FormatNone                 // ecall, fence
	FormatCR                   // c.add rd, rs2
	FormatCRJump               // c.jr rs1
	FormatCI                   // c.addi rd, imm
	FormatCIW                  // c.addi4spn rd, sp, imm
	FormatCL                   // c.lw rd, imm(rs1)
	FormatCS                   // c.sw rs2, imm(rs1)
	FormatCLSP                 // c.lwsp rd, imm(sp)
	FormatCSSP                 // c.swsp rs2, imm(sp)
	FormatCA                   // c.sub rd, rs2
	FormatCB                   // c.beqz rs1, label
	FormatCBImm                // c.andi rd, imm
	FormatCJ                   // c.j label
	FormatPseudoLA             // la rd, symbol
	FormatPseudoLI             // li rd, imm
)

// MnemonicWidth is the column width of the mnemonic in the rendered text.
const MnemonicWidth = 13

// Insn is a single instruction destined for textual assembly output.
type Insn struct {
	Name       string
	Format     Format
	Category   Category
	Compressed bool

	Rd      Reg
	Rs1     Reg
	Rs2     Reg
	Imm     int64
	ImmText string // symbolic immediate, takes precedence over Imm when rendering
	Comment string

	// Labeling state, see sequence post-processing.
	Index             int
	HasLabel          bool
	Label             string
	LocalNumericLabel bool
	// Atomic instructions belong to a group that must execute in program order.
	// Only the first instruction of such group may carry a label.
	Atomic         bool
	Illegal        bool
	Hint           bool
	BranchAssigned bool

	Template *Template
}

// Size returns instruction width in bytes.
// Pseudo instructions expand to auipc/lui+addi pairs.
func (insn *Insn) Size() int {
	switch {
	case insn.Compressed:
		return 2
	case insn.Format == FormatPseudoLA:
		return 8
	case insn.Format == FormatPseudoLI && (insn.Imm < -2048 || insn.Imm > 2047):
		return 8
	}
	return 4
}

func (insn *Insn) IsBranch() bool {
	return insn.Category == CategoryBranch
}

func (insn *Insn) Clone() *Insn {
	clone := *insn
	return &clone
}

func (insn *Insn) immString() string {
	if insn.ImmText != "" {
		return insn.ImmText
	}
	return fmt.Sprint(insn.Imm)
}

// Asm returns the assembly text of the instruction without label.
func (insn *Insn) Asm() string {
	imm := insn.immString()
	var ops string
	switch insn.Format {
	case FormatR:
		ops = fmt.Sprintf("%v, %v, %v", insn.Rd, insn.Rs1, insn.Rs2)
	case FormatI:
		ops = fmt.Sprintf("%v, %v, %v", insn.Rd, insn.Rs1, imm)
	case FormatLoad, FormatCL:
		ops = fmt.Sprintf("%v, %v(%v)", insn.Rd, imm, insn.Rs1)
	case FormatS, FormatCS:
		ops = fmt.Sprintf("%v, %v(%v)", insn.Rs2, imm, insn.Rs1)
	case FormatB:
		ops = fmt.Sprintf("%v, %v, %v", insn.Rs1, insn.Rs2, imm)
	case FormatU, FormatJ, FormatCI, FormatCBImm, FormatPseudoLA, FormatPseudoLI:
		ops = fmt.Sprintf("%v, %v", insn.Rd, imm)
	case FormatCR, FormatCA:
		ops = fmt.Sprintf("%v, %v", insn.Rd, insn.Rs2)
	case FormatCRJump:
		ops = insn.Rs1.String()
	case FormatCIW:
		ops = fmt.Sprintf("%v, sp, %v", insn.Rd, imm)
	case FormatCLSP:
		ops = fmt.Sprintf("%v, %v(sp)", insn.Rd, imm)
	case FormatCSSP:
		ops = fmt.Sprintf("%v, %v(sp)", insn.Rs2, imm)
	case FormatCB:
		ops = fmt.Sprintf("%v, %v", insn.Rs1, imm)
	case FormatCJ:
		ops = imm
	}
	str := insn.Name
	if ops != "" {
		str = fmt.Sprintf("%-*s%v", MnemonicWidth, insn.Name, ops)
	}
	if insn.Comment != "" {
		str += " #" + insn.Comment
	}
	return str
}

func (insn *Insn) String() string {
	return strings.TrimSpace(insn.Asm())
}
