// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package illegal generates raw encodings of illegal, reserved and HINT RISC-V
// instructions. The patterns are emitted as data directives into otherwise
// valid programs to exercise exception and decoder paths.
package illegal

import (
	"fmt"
	"math/rand"

	"github.com/rvstress/seqgen/pkg/riscv"
)

type Kind int

const (
	Illegal           Kind = iota // 32-bit illegal encoding
	IllegalCompressed             // 16-bit illegal or reserved encoding
	Hint                          // 16-bit compressed HINT
)

func (k Kind) String() string {
	switch k {
	case Illegal:
		return "illegal"
	case IllegalCompressed:
		return "illegal-compressed"
	case Hint:
		return "hint"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Pattern is a single raw instruction encoding.
type Pattern struct {
	Bits    uint32
	Size    int // 2 or 4 bytes
	Comment string
}

// Directive returns the assembler data directive that emits the pattern.
func (p Pattern) Directive() string {
	if p.Size == 2 {
		return fmt.Sprintf(".2byte 0x%04x", p.Bits)
	}
	return fmt.Sprintf(".4byte 0x%08x", p.Bits)
}

func (p Pattern) String() string {
	return p.Directive() + " # " + p.Comment
}

type class struct {
	name      string
	rv64Only  bool
	generator func(gen *generator)
}

type Generator struct {
	target  *riscv.Target
	classes map[Kind][]*class
}

func NewGenerator(target *riscv.Target) *Generator {
	g := &Generator{
		target:  target,
		classes: make(map[Kind][]*class),
	}
	for kind, list := range allClasses {
		for _, cls := range list {
			if cls.rv64Only && target.XLen != 64 {
				continue
			}
			g.classes[kind] = append(g.classes[kind], cls)
		}
	}
	return g
}

// Next returns a random pattern of the given kind.
func (g *Generator) Next(r *rand.Rand, kind Kind) (Pattern, error) {
	if kind != Illegal && !g.target.Compressed {
		return Pattern{}, fmt.Errorf("target %v does not support compressed instructions, no %v patterns",
			g.target.Name, kind)
	}
	list := g.classes[kind]
	if len(list) == 0 {
		return Pattern{}, fmt.Errorf("no patterns of kind %v", kind)
	}
	cls := list[r.Intn(len(list))]
	gen := &generator{
		target: g.target,
		r:      r,
		size:   4,
	}
	if kind != Illegal {
		gen.size = 2
	}
	cls.generator(gen)
	return Pattern{
		Bits:    gen.bits,
		Size:    gen.size,
		Comment: cls.name,
	}, nil
}

type generator struct {
	target *riscv.Target
	r      *rand.Rand
	size   int
	bits   uint32
}

func (gen *generator) oneOf(values ...uint32) uint32 {
	return values[gen.r.Intn(len(values))]
}

func (gen *generator) reg() uint32 {
	return uint32(gen.r.Intn(int(riscv.NumRegs)))
}

func (gen *generator) nonZeroReg() uint32 {
	return uint32(1 + gen.r.Intn(int(riscv.NumRegs)-1))
}

// itype emits a 32-bit instruction with random rd/rs1 and immediate fields.
func (gen *generator) itype(opcode, funct3 uint32) {
	gen.bits = gen.r.Uint32()&0xfff00000 | gen.reg()<<15 | funct3<<12 | gen.reg()<<7 | opcode
}

func (gen *generator) rtype(opcode, funct3, funct7 uint32) {
	gen.bits = funct7<<25 | gen.reg()<<20 | gen.reg()<<15 | funct3<<12 | gen.reg()<<7 | opcode
}

// ci emits a compressed CI-format instruction: funct3 | imm[5] | rd | imm[4:0] | op.
func (gen *generator) ci(funct3, rd, imm, op uint32) {
	gen.bits = funct3<<13 | (imm>>5&1)<<12 | rd<<7 | (imm&0x1f)<<2 | op
}

// cr emits a compressed CR-format instruction: funct4 | rd/rs1 | rs2 | op.
func (gen *generator) cr(funct4, rd, rs2 uint32) {
	gen.bits = funct4<<12 | rd<<7 | rs2<<2 | 0x2
}

func (gen *generator) nonZeroImm6() uint32 {
	return uint32(1 + gen.r.Intn(63))
}

const (
	opLoad    = 0x03
	opMiscMem = 0x0f
	opOp      = 0x33
	opStore   = 0x23
	opBranch  = 0x63
	opJalr    = 0x67
	opSystem  = 0x73
)

// legalOpcodes holds 32-bit major opcodes implemented by RV64IMC (plus custom
// and longer-instruction escape opcodes that must not be treated as illegal).
var legalOpcodes = map[uint32]bool{
	0x03: true, 0x0f: true, 0x13: true, 0x17: true, 0x23: true, 0x33: true, 0x37: true,
	0x63: true, 0x67: true, 0x6f: true, 0x73: true,
	0x0b: true, 0x2b: true, 0x5b: true, 0x7b: true,
	0x1f: true, 0x3f: true, 0x5f: true, 0x7f: true,
}

var rv64Opcodes = map[uint32]bool{0x1b: true, 0x3b: true}

func (gen *generator) illegalOpcode() {
	var candidates []uint32
	for op := uint32(0x03); op < 0x80; op += 4 {
		if legalOpcodes[op] || rv64Opcodes[op] && gen.target.XLen == 64 {
			continue
		}
		candidates = append(candidates, op)
	}
	gen.bits = gen.r.Uint32()&^0x7f | gen.oneOf(candidates...)
}

func (gen *generator) illegalFunc3() {
	switch gen.r.Intn(5) {
	case 0:
		gen.itype(opJalr, 1+uint32(gen.r.Intn(7)))
	case 1:
		gen.itype(opBranch, gen.oneOf(2, 3))
	case 2:
		if gen.target.XLen == 32 {
			gen.itype(opLoad, gen.oneOf(3, 6, 7))
		} else {
			gen.itype(opLoad, 7)
		}
	case 3:
		if gen.target.XLen == 32 {
			gen.itype(opStore, gen.oneOf(3, 4, 5, 6, 7))
		} else {
			gen.itype(opStore, gen.oneOf(4, 5, 6, 7))
		}
	case 4:
		gen.itype(opMiscMem, 3+uint32(gen.r.Intn(5)))
	}
}

func (gen *generator) illegalFunc7() {
	for {
		funct7 := uint32(gen.r.Intn(0x80))
		if funct7 == 0x00 || funct7 == 0x01 || funct7 == 0x20 {
			continue
		}
		gen.rtype(opOp, uint32(gen.r.Intn(8)), funct7)
		return
	}
}

func (gen *generator) illegalSystem() {
	// funct12 0x800..0x8ff with funct3=0 is not assigned to any privileged instruction.
	funct12 := 0x800 | uint32(gen.r.Intn(0x100))
	gen.bits = funct12<<20 | opSystem
}

var allClasses = map[Kind][]*class{
	Illegal: {
		{name: "illegal opcode", generator: (*generator).illegalOpcode},
		{name: "illegal func3", generator: (*generator).illegalFunc3},
		{name: "illegal func7", generator: (*generator).illegalFunc7},
		{name: "illegal system instruction", generator: (*generator).illegalSystem},
	},
	IllegalCompressed: {
		{name: "illegal compressed instruction, all zero", generator: func(gen *generator) {
			gen.bits = 0
		}},
		{name: "reserved c.addi4spn nzuimm=0", generator: func(gen *generator) {
			gen.bits = uint32(1+gen.r.Intn(7)) << 2
		}},
		{name: "reserved c.lui nzimm=0", generator: func(gen *generator) {
			gen.ci(3, gen.oneOf(1, 3, 4, 5, 6, 7, 8, 9, 10, 15, 31), 0, 1)
		}},
		{name: "reserved c.addi16sp nzimm=0", generator: func(gen *generator) {
			gen.ci(3, uint32(riscv.SP), 0, 1)
		}},
		{name: "reserved c.lwsp rd=0", generator: func(gen *generator) {
			gen.ci(2, 0, uint32(gen.r.Intn(64)), 2)
		}},
		{name: "reserved c.jr rs1=0", generator: func(gen *generator) {
			gen.cr(8, 0, 0)
		}},
		{name: "reserved c.ldsp rd=0", rv64Only: true, generator: func(gen *generator) {
			gen.ci(3, 0, uint32(gen.r.Intn(64)), 2)
		}},
		{name: "reserved c.addiw rd=0", rv64Only: true, generator: func(gen *generator) {
			gen.ci(1, 0, uint32(gen.r.Intn(64)), 1)
		}},
	},
	Hint: {
		{name: "hint c.nop nzimm!=0", generator: func(gen *generator) {
			gen.ci(0, 0, gen.nonZeroImm6(), 1)
		}},
		{name: "hint c.addi imm=0", generator: func(gen *generator) {
			gen.ci(0, gen.nonZeroReg(), 0, 1)
		}},
		{name: "hint c.li rd=0", generator: func(gen *generator) {
			gen.ci(2, 0, uint32(gen.r.Intn(64)), 1)
		}},
		{name: "hint c.lui rd=0", generator: func(gen *generator) {
			gen.ci(3, 0, gen.nonZeroImm6(), 1)
		}},
		{name: "hint c.slli rd=0", generator: func(gen *generator) {
			gen.ci(0, 0, gen.nonZeroImm6()&0x1f|1, 2)
		}},
		{name: "hint c.mv rd=0", generator: func(gen *generator) {
			gen.cr(8, 0, gen.nonZeroReg())
		}},
		{name: "hint c.add rd=0", generator: func(gen *generator) {
			gen.cr(9, 0, gen.nonZeroReg())
		}},
	},
}
