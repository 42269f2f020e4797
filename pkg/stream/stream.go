// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package stream provides instruction streams consumed by the sequence generator:
// the random instruction body, directed (atomic) streams and the jump routine
// that transfers control between programs.
package stream

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/rvstress/seqgen/pkg/gencfg"
	"github.com/rvstress/seqgen/pkg/riscv"
)

// Opts restricts the instructions produced by Generator.Body.
type Opts struct {
	NoBranch    bool
	NoLoadStore bool
	// Debug programs run in debug mode and must not trap.
	Debug bool
	// ReservedRd are registers that must not be written in addition to the configured reserved set.
	ReservedRd riscv.RegSet
	// Regs restricts all register operands to the given registers (if not empty).
	Regs []riscv.Reg
}

type Generator struct {
	cfg       *gencfg.Config
	templates []*riscv.Template
}

func NewGenerator(cfg *gencfg.Config) *Generator {
	g := &Generator{cfg: cfg}
	for _, tmpl := range riscv.TemplatesFor(cfg.Arch) {
		if g.enabled(tmpl) {
			g.templates = append(g.templates, tmpl)
		}
	}
	return g
}

// enabled filters templates that may ever appear in a random body.
func (g *Generator) enabled(tmpl *riscv.Template) bool {
	cfg := g.cfg
	if tmpl.Pseudo || tmpl.Category == riscv.CategoryJump {
		return false
	}
	if tmpl.Compressed() {
		if !cfg.Compressed() {
			return false
		}
		// Compressed memory accesses are sp or x8..x15 based, neither holds a usable address.
		if tmpl.Category == riscv.CategoryLoad || tmpl.Category == riscv.CategoryStore {
			return false
		}
	}
	switch tmpl.Name {
	case "ebreak", "c.ebreak":
		return !cfg.NoEbreak
	case "ecall":
		return !cfg.NoEcall
	case "wfi":
		return !cfg.NoWfi
	case "fence", "fence.i":
		return !cfg.NoFence
	}
	return true
}

func (g *Generator) allowed(tmpl *riscv.Template, opts Opts) bool {
	switch tmpl.Category {
	case riscv.CategoryBranch:
		return !opts.NoBranch
	case riscv.CategoryLoad, riscv.CategoryStore:
		return !opts.NoLoadStore
	case riscv.CategorySystem:
		return !opts.Debug
	}
	return true
}

// Body returns cnt random instructions. The last instruction is never a branch
// since a branch needs a forward target.
func (g *Generator) Body(r *rand.Rand, cnt int, opts Opts) []*riscv.Insn {
	rg := &randGen{r}
	var templates []*riscv.Template
	for _, tmpl := range g.templates {
		if g.allowed(tmpl, opts) {
			templates = append(templates, tmpl)
		}
	}
	list := make([]*riscv.Insn, 0, cnt)
	for len(list) < cnt {
		if insn := g.randInsn(rg, templates, opts); insn != nil {
			list = append(list, insn)
		}
	}
	if cnt != 0 && list[cnt-1].IsBranch() {
		opts.NoBranch = true
		list[cnt-1] = nil
		for list[cnt-1] == nil {
			list[cnt-1] = g.randInsn(rg, nonBranch(templates), opts)
		}
	}
	return list
}

func nonBranch(templates []*riscv.Template) []*riscv.Template {
	var res []*riscv.Template
	for _, tmpl := range templates {
		if tmpl.Category != riscv.CategoryBranch {
			res = append(res, tmpl)
		}
	}
	return res
}

// randInsn returns nil if the chosen template can't be satisfied with the available registers.
func (g *Generator) randInsn(r *randGen, templates []*riscv.Template, opts Opts) *riscv.Insn {
	tmpl := templates[r.Intn(len(templates))]
	insn := tmpl.Make()
	ok := true
	pick := func(regs []riscv.Reg) riscv.Reg {
		if len(regs) == 0 {
			ok = false
			return riscv.Zero
		}
		return r.reg(regs)
	}
	if writesRd(tmpl.Format) {
		insn.Rd = pick(g.regs(tmpl, opts, true, tmpl.RdNonZero))
	}
	if readsRs1(tmpl.Format) {
		insn.Rs1 = pick(g.regs(tmpl, opts, false, false))
	}
	if readsRs2(tmpl.Format) {
		insn.Rs2 = pick(g.regs(tmpl, opts, false, tmpl.Rs2NonZero))
	}
	if !ok {
		return nil
	}
	if tmpl.Category == riscv.CategoryLoad || tmpl.Category == riscv.CategoryStore {
		// Random memory accesses go to the scratch data region pointed to by tp.
		size := accessSize(tmpl.Name)
		insn.Rs1 = g.cfg.TPReg
		insn.Imm = int64(r.Intn(DataRegionSize/2/size) * size)
		return insn
	}
	insn.Imm = r.imm(tmpl, g.cfg.Arch)
	return insn
}

// regs returns candidate registers for an operand.
func (g *Generator) regs(tmpl *riscv.Template, opts Opts, dst, nonZero bool) []riscv.Reg {
	pool := opts.Regs
	if len(pool) == 0 {
		pool = allRegs
	}
	reserved := g.cfg.Reserved.Union(opts.ReservedRd)
	var res []riscv.Reg
	for _, reg := range pool {
		switch {
		case dst && reserved.Has(reg),
			nonZero && reg == riscv.Zero,
			dst && tmpl.RdNotSP && reg == riscv.SP,
			tmpl.CompressedRegs && !reg.Compressible():
			continue
		}
		res = append(res, reg)
	}
	return res
}

var allRegs = func() []riscv.Reg {
	var regs []riscv.Reg
	for r := riscv.Zero; r < riscv.NumRegs; r++ {
		regs = append(regs, r)
	}
	return regs
}()

func writesRd(f riscv.Format) bool {
	switch f {
	case riscv.FormatR, riscv.FormatI, riscv.FormatLoad, riscv.FormatU, riscv.FormatJ,
		riscv.FormatCI, riscv.FormatCIW, riscv.FormatCL, riscv.FormatCLSP, riscv.FormatCR,
		riscv.FormatCA, riscv.FormatCBImm, riscv.FormatPseudoLA, riscv.FormatPseudoLI:
		return true
	}
	return false
}

func readsRs1(f riscv.Format) bool {
	switch f {
	case riscv.FormatR, riscv.FormatI, riscv.FormatLoad, riscv.FormatS, riscv.FormatB,
		riscv.FormatCB, riscv.FormatCRJump, riscv.FormatCL, riscv.FormatCS:
		return true
	}
	return false
}

func readsRs2(f riscv.Format) bool {
	switch f {
	case riscv.FormatR, riscv.FormatS, riscv.FormatB, riscv.FormatCR, riscv.FormatCA,
		riscv.FormatCS, riscv.FormatCSSP:
		return true
	}
	return false
}

func accessSize(name string) int {
	switch name {
	case "lb", "lbu", "sb":
		return 1
	case "lh", "lhu", "sh":
		return 2
	case "lw", "lwu", "sw":
		return 4
	case "ld", "sd":
		return 8
	}
	panic(fmt.Sprintf("not a memory access: %v", name))
}

// Mix inserts insert into list at random positions.
// The relative order of instructions in both lists is preserved.
func Mix(r *rand.Rand, list, insert []*riscv.Insn) []*riscv.Insn {
	pos := make([]int, len(insert))
	for i := range pos {
		pos[i] = r.Intn(len(list) + 1)
	}
	sort.Ints(pos)
	res := make([]*riscv.Insn, 0, len(list)+len(insert))
	j := 0
	for i := 0; i <= len(list); i++ {
		for ; j < len(pos) && pos[j] == i; j++ {
			res = append(res, insert[j])
		}
		if i < len(list) {
			res = append(res, list[i])
		}
	}
	return res
}

// CanSplice reports whether a block can be inserted before list[pos]
// without splitting an atomic group.
func CanSplice(list []*riscv.Insn, pos int) bool {
	if pos <= 0 || pos >= len(list) {
		return pos == 0 || pos == len(list)
	}
	return !list[pos-1].Atomic || !list[pos].Atomic
}

// SplicePoints returns all positions in [lo, hi] where a block can be inserted.
func SplicePoints(list []*riscv.Insn, lo, hi int) []int {
	var res []int
	for pos := max(lo, 0); pos <= min(hi, len(list)); pos++ {
		if CanSplice(list, pos) {
			res = append(res, pos)
		}
	}
	return res
}

// InsertAt returns a new list with block inserted before list[pos].
func InsertAt(list, block []*riscv.Insn, pos int) []*riscv.Insn {
	res := make([]*riscv.Insn, 0, len(list)+len(block))
	res = append(res, list[:pos]...)
	res = append(res, block...)
	return append(res, list[pos:]...)
}

// Insert splices block at a random position in [lo, hi] that does not split an atomic group.
func Insert(r *rand.Rand, list, block []*riscv.Insn, lo, hi int) ([]*riscv.Insn, error) {
	points := SplicePoints(list, lo, hi)
	if len(points) == 0 {
		return nil, fmt.Errorf("no splice point in [%v, %v] of %v instructions", lo, hi, len(list))
	}
	return InsertAt(list, block, points[r.Intn(len(points))]), nil
}
