// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package riscv

import (
	"fmt"
)

type Extension int

const (
	ExtI Extension = iota
	ExtM
	ExtC
)

type ImmKind int

const (
	ImmNone     ImmKind = iota
	ImmSigned           // ImmBits-wide signed value
	ImmUnsigned         // ImmBits-wide unsigned value
	ImmShamt            // shift amount, width depends on XLEN
	ImmLabel            // branch/jump target, filled in by post-processing
)

// Template describes an instruction and the constraints on its operands.
type Template struct {
	Name     string
	Format   Format
	Category Category
	Ext      Extension
	RV64Only bool
	RV32Only bool
	Pseudo   bool // assembler pseudo instruction, never part of the random body

	Imm        ImmKind
	ImmBits    int
	ImmScale   int64 // immediate must be a multiple of ImmScale
	ImmNonZero bool

	RdNonZero  bool
	RdNotSP    bool
	Rs2NonZero bool
	// Compressed register fields can address only x8..x15.
	CompressedRegs bool

	// Encoding of 32-bit instructions.
	Opcode uint32
	Funct3 uint32
	Funct7 uint32
	Fixed  uint32 // complete encoding for instructions without operands
}

func (tmpl *Template) Compressed() bool {
	return tmpl.Ext == ExtC
}

// Available reports whether the instruction is implemented by the target.
func (tmpl *Template) Available(target *Target) bool {
	switch {
	case tmpl.RV64Only && target.XLen != 64,
		tmpl.RV32Only && target.XLen != 32,
		tmpl.Ext == ExtC && !target.Compressed,
		tmpl.Ext == ExtM && !target.Mul:
		return false
	}
	return true
}

// ImmRange returns the inclusive range of immediate values for the target.
func (tmpl *Template) ImmRange(target *Target) (int64, int64) {
	switch tmpl.Imm {
	case ImmSigned:
		return -(1 << (tmpl.ImmBits - 1)), 1<<(tmpl.ImmBits-1) - 1
	case ImmUnsigned:
		return 0, 1<<tmpl.ImmBits - 1
	case ImmShamt:
		hi := int64(target.XLen - 1)
		if tmpl.Name == "slliw" || tmpl.Name == "srliw" || tmpl.Name == "sraiw" {
			hi = 31
		}
		return 0, hi
	}
	return 0, 0
}

// Make creates a new instruction from the template with zero operands.
func (tmpl *Template) Make() *Insn {
	return &Insn{
		Name:       tmpl.Name,
		Format:     tmpl.Format,
		Category:   tmpl.Category,
		Compressed: tmpl.Compressed(),
		HasLabel:   true,
		Template:   tmpl,
	}
}

var templateMap = make(map[string]*Template)

// Lookup returns the template with the given name.
func Lookup(name string) (*Template, error) {
	tmpl := templateMap[name]
	if tmpl == nil {
		return nil, fmt.Errorf("unknown instruction %q", name)
	}
	return tmpl, nil
}

// MustLookup is Lookup for names that are known to be in the table.
func MustLookup(name string) *Template {
	tmpl, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return tmpl
}

// TemplatesFor returns all templates available on the target in table order.
func TemplatesFor(target *Target) []*Template {
	var res []*Template
	for _, tmpl := range Templates {
		if tmpl.Available(target) {
			res = append(res, tmpl)
		}
	}
	return res
}

func init() {
	for _, tmpl := range Templates {
		if templateMap[tmpl.Name] != nil {
			panic(fmt.Sprintf("duplicate instruction %v", tmpl.Name))
		}
		if tmpl.ImmScale == 0 {
			tmpl.ImmScale = 1
		}
		templateMap[tmpl.Name] = tmpl
	}
}

const (
	opLoad    = 0x03
	opMiscMem = 0x0f
	opImm     = 0x13
	opAuipc   = 0x17
	opImm32   = 0x1b
	opStore   = 0x23
	opOp      = 0x33
	opLui     = 0x37
	opOp32    = 0x3b
	opBranch  = 0x63
	opJalr    = 0x67
	opJal     = 0x6f
	opSystem  = 0x73
)

func rtype(name string, cat Category, op, f3, f7 uint32) *Template {
	return &Template{Name: name, Format: FormatR, Category: cat, Opcode: op, Funct3: f3, Funct7: f7}
}

func itype(name string, cat Category, op, f3 uint32) *Template {
	return &Template{Name: name, Format: FormatI, Category: cat, Imm: ImmSigned, ImmBits: 12, Opcode: op, Funct3: f3}
}

func shift(name string, op, f3, f7 uint32) *Template {
	return &Template{Name: name, Format: FormatI, Category: CategoryShift, Imm: ImmShamt, Opcode: op, Funct3: f3, Funct7: f7}
}

func load(name string, f3 uint32) *Template {
	return &Template{Name: name, Format: FormatLoad, Category: CategoryLoad, Imm: ImmSigned, ImmBits: 12,
		Opcode: opLoad, Funct3: f3}
}

func store(name string, f3 uint32) *Template {
	return &Template{Name: name, Format: FormatS, Category: CategoryStore, Imm: ImmSigned, ImmBits: 12,
		Opcode: opStore, Funct3: f3}
}

func branch(name string, f3 uint32) *Template {
	return &Template{Name: name, Format: FormatB, Category: CategoryBranch, Imm: ImmLabel, Opcode: opBranch, Funct3: f3}
}

func rv64(tmpl *Template) *Template {
	tmpl.RV64Only = true
	return tmpl
}

func mul(tmpl *Template) *Template {
	tmpl.Ext = ExtM
	return tmpl
}

func c(tmpl *Template) *Template {
	tmpl.Ext = ExtC
	return tmpl
}

var Templates = []*Template{
	// RV32I.
	{Name: "lui", Format: FormatU, Category: CategoryArithmetic, Imm: ImmUnsigned, ImmBits: 20, Opcode: opLui},
	{Name: "auipc", Format: FormatU, Category: CategoryArithmetic, Imm: ImmUnsigned, ImmBits: 20, Opcode: opAuipc},
	{Name: "jal", Format: FormatJ, Category: CategoryJump, Imm: ImmLabel, Opcode: opJal},
	itype("jalr", CategoryJump, opJalr, 0),
	branch("beq", 0),
	branch("bne", 1),
	branch("blt", 4),
	branch("bge", 5),
	branch("bltu", 6),
	branch("bgeu", 7),
	load("lb", 0),
	load("lh", 1),
	load("lw", 2),
	load("lbu", 4),
	load("lhu", 5),
	store("sb", 0),
	store("sh", 1),
	store("sw", 2),
	itype("addi", CategoryArithmetic, opImm, 0),
	itype("slti", CategoryCompare, opImm, 2),
	itype("sltiu", CategoryCompare, opImm, 3),
	itype("xori", CategoryLogical, opImm, 4),
	itype("ori", CategoryLogical, opImm, 6),
	itype("andi", CategoryLogical, opImm, 7),
	shift("slli", opImm, 1, 0x00),
	shift("srli", opImm, 5, 0x00),
	shift("srai", opImm, 5, 0x20),
	rtype("add", CategoryArithmetic, opOp, 0, 0x00),
	rtype("sub", CategoryArithmetic, opOp, 0, 0x20),
	rtype("sll", CategoryShift, opOp, 1, 0x00),
	rtype("slt", CategoryCompare, opOp, 2, 0x00),
	rtype("sltu", CategoryCompare, opOp, 3, 0x00),
	rtype("xor", CategoryLogical, opOp, 4, 0x00),
	rtype("srl", CategoryShift, opOp, 5, 0x00),
	rtype("sra", CategoryShift, opOp, 5, 0x20),
	rtype("or", CategoryLogical, opOp, 6, 0x00),
	rtype("and", CategoryLogical, opOp, 7, 0x00),
	{Name: "fence", Format: FormatNone, Category: CategorySynch, Fixed: 0x0ff0000f},
	{Name: "fence.i", Format: FormatNone, Category: CategorySynch, Fixed: 0x0000100f},
	{Name: "ecall", Format: FormatNone, Category: CategorySystem, Fixed: 0x00000073},
	{Name: "ebreak", Format: FormatNone, Category: CategorySystem, Fixed: 0x00100073},
	{Name: "wfi", Format: FormatNone, Category: CategorySystem, Fixed: 0x10500073},

	// RV64I.
	rv64(load("lwu", 6)),
	rv64(load("ld", 3)),
	rv64(store("sd", 3)),
	rv64(itype("addiw", CategoryArithmetic, opImm32, 0)),
	rv64(shift("slliw", opImm32, 1, 0x00)),
	rv64(shift("srliw", opImm32, 5, 0x00)),
	rv64(shift("sraiw", opImm32, 5, 0x20)),
	rv64(rtype("addw", CategoryArithmetic, opOp32, 0, 0x00)),
	rv64(rtype("subw", CategoryArithmetic, opOp32, 0, 0x20)),
	rv64(rtype("sllw", CategoryShift, opOp32, 1, 0x00)),
	rv64(rtype("srlw", CategoryShift, opOp32, 5, 0x00)),
	rv64(rtype("sraw", CategoryShift, opOp32, 5, 0x20)),

	// RV32M/RV64M.
	mul(rtype("mul", CategoryArithmetic, opOp, 0, 0x01)),
	mul(rtype("mulh", CategoryArithmetic, opOp, 1, 0x01)),
	mul(rtype("mulhsu", CategoryArithmetic, opOp, 2, 0x01)),
	mul(rtype("mulhu", CategoryArithmetic, opOp, 3, 0x01)),
	mul(rtype("div", CategoryArithmetic, opOp, 4, 0x01)),
	mul(rtype("divu", CategoryArithmetic, opOp, 5, 0x01)),
	mul(rtype("rem", CategoryArithmetic, opOp, 6, 0x01)),
	mul(rtype("remu", CategoryArithmetic, opOp, 7, 0x01)),
	rv64(mul(rtype("mulw", CategoryArithmetic, opOp32, 0, 0x01))),
	rv64(mul(rtype("divw", CategoryArithmetic, opOp32, 4, 0x01))),
	rv64(mul(rtype("divuw", CategoryArithmetic, opOp32, 5, 0x01))),
	rv64(mul(rtype("remw", CategoryArithmetic, opOp32, 6, 0x01))),
	rv64(mul(rtype("remuw", CategoryArithmetic, opOp32, 7, 0x01))),

	// RV32C.
	c(&Template{Name: "c.addi4spn", Format: FormatCIW, Category: CategoryArithmetic, Imm: ImmUnsigned, ImmBits: 10,
		ImmScale: 4, ImmNonZero: true, CompressedRegs: true}),
	c(&Template{Name: "c.lw", Format: FormatCL, Category: CategoryLoad, Imm: ImmUnsigned, ImmBits: 7, ImmScale: 4,
		CompressedRegs: true}),
	c(&Template{Name: "c.sw", Format: FormatCS, Category: CategoryStore, Imm: ImmUnsigned, ImmBits: 7, ImmScale: 4,
		CompressedRegs: true}),
	c(&Template{Name: "c.nop", Format: FormatNone, Category: CategoryArithmetic}),
	c(&Template{Name: "c.addi", Format: FormatCI, Category: CategoryArithmetic, Imm: ImmSigned, ImmBits: 6,
		ImmNonZero: true, RdNonZero: true}),
	c(&Template{Name: "c.jal", Format: FormatCJ, Category: CategoryJump, Imm: ImmLabel, RV32Only: true}),
	c(&Template{Name: "c.li", Format: FormatCI, Category: CategoryArithmetic, Imm: ImmSigned, ImmBits: 6,
		RdNonZero: true}),
	c(&Template{Name: "c.lui", Format: FormatCI, Category: CategoryArithmetic, Imm: ImmUnsigned, ImmBits: 5,
		ImmNonZero: true, RdNonZero: true, RdNotSP: true}),
	c(&Template{Name: "c.srli", Format: FormatCBImm, Category: CategoryShift, Imm: ImmShamt, ImmNonZero: true,
		CompressedRegs: true}),
	c(&Template{Name: "c.srai", Format: FormatCBImm, Category: CategoryShift, Imm: ImmShamt, ImmNonZero: true,
		CompressedRegs: true}),
	c(&Template{Name: "c.andi", Format: FormatCBImm, Category: CategoryLogical, Imm: ImmSigned, ImmBits: 6,
		CompressedRegs: true}),
	c(&Template{Name: "c.sub", Format: FormatCA, Category: CategoryArithmetic, CompressedRegs: true}),
	c(&Template{Name: "c.xor", Format: FormatCA, Category: CategoryLogical, CompressedRegs: true}),
	c(&Template{Name: "c.or", Format: FormatCA, Category: CategoryLogical, CompressedRegs: true}),
	c(&Template{Name: "c.and", Format: FormatCA, Category: CategoryLogical, CompressedRegs: true}),
	c(&Template{Name: "c.j", Format: FormatCJ, Category: CategoryJump, Imm: ImmLabel}),
	c(&Template{Name: "c.beqz", Format: FormatCB, Category: CategoryBranch, Imm: ImmLabel, CompressedRegs: true}),
	c(&Template{Name: "c.bnez", Format: FormatCB, Category: CategoryBranch, Imm: ImmLabel, CompressedRegs: true}),
	c(&Template{Name: "c.slli", Format: FormatCI, Category: CategoryShift, Imm: ImmShamt, ImmNonZero: true,
		RdNonZero: true}),
	c(&Template{Name: "c.lwsp", Format: FormatCLSP, Category: CategoryLoad, Imm: ImmUnsigned, ImmBits: 8, ImmScale: 4,
		RdNonZero: true}),
	c(&Template{Name: "c.jr", Format: FormatCRJump, Category: CategoryJump}),
	c(&Template{Name: "c.mv", Format: FormatCR, Category: CategoryArithmetic, RdNonZero: true, Rs2NonZero: true}),
	c(&Template{Name: "c.ebreak", Format: FormatNone, Category: CategorySystem}),
	c(&Template{Name: "c.jalr", Format: FormatCRJump, Category: CategoryJump}),
	c(&Template{Name: "c.add", Format: FormatCR, Category: CategoryArithmetic, RdNonZero: true, Rs2NonZero: true}),
	c(&Template{Name: "c.swsp", Format: FormatCSSP, Category: CategoryStore, Imm: ImmUnsigned, ImmBits: 8, ImmScale: 4}),

	// RV64C.
	rv64(c(&Template{Name: "c.ld", Format: FormatCL, Category: CategoryLoad, Imm: ImmUnsigned, ImmBits: 8, ImmScale: 8,
		CompressedRegs: true})),
	rv64(c(&Template{Name: "c.sd", Format: FormatCS, Category: CategoryStore, Imm: ImmUnsigned, ImmBits: 8, ImmScale: 8,
		CompressedRegs: true})),
	rv64(c(&Template{Name: "c.addiw", Format: FormatCI, Category: CategoryArithmetic, Imm: ImmSigned, ImmBits: 6,
		RdNonZero: true})),
	rv64(c(&Template{Name: "c.subw", Format: FormatCA, Category: CategoryArithmetic, CompressedRegs: true})),
	rv64(c(&Template{Name: "c.addw", Format: FormatCA, Category: CategoryArithmetic, CompressedRegs: true})),
	rv64(c(&Template{Name: "c.ldsp", Format: FormatCLSP, Category: CategoryLoad, Imm: ImmUnsigned, ImmBits: 9,
		ImmScale: 8, RdNonZero: true})),
	rv64(c(&Template{Name: "c.sdsp", Format: FormatCSSP, Category: CategoryStore, Imm: ImmUnsigned, ImmBits: 9,
		ImmScale: 8})),

	// Pseudo instructions used by directed streams.
	{Name: "la", Format: FormatPseudoLA, Category: CategoryArithmetic, Imm: ImmLabel, Pseudo: true},
	{Name: "li", Format: FormatPseudoLI, Category: CategoryArithmetic, Imm: ImmSigned, ImmBits: 32, Pseudo: true},
}
