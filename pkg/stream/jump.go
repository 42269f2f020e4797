// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stream

import (
	"fmt"
	"math/rand"

	"github.com/rvstress/seqgen/pkg/riscv"
)

type JumpRequest struct {
	Target      string // label of the program to jump to
	Label       string // label of the calling program
	Index       int    // position of the block in the calling program
	MainProgram bool
	// StackExit is the epilogue of a sub-program. It is executed before
	// a jump that does not link, the target then returns to our caller.
	StackExit []*riscv.Insn
}

type jumpKind int

const (
	jumpJAL jumpKind = iota
	jumpJALR
	jumpCJALR
)

var jumpWeights = []int{jumpJAL: 2, jumpJALR: 6, jumpCJALR: 2}

// Jump returns an atomic block that transfers control to req.Target:
//
//	la    gpr, target
//	addi  gpr, gpr, imm
//	jalr  ra, gpr, -imm
//
// mixed with random instructions that preserve gpr and ra.
func (g *Generator) Jump(r *rand.Rand, req JumpRequest) ([]*riscv.Insn, error) {
	rg := &randGen{r}
	cfg := g.cfg
	gprs := excluding(cfg.AvailableRegs(), cfg.RAReg)
	if len(gprs) == 0 {
		return nil, fmt.Errorf("no register available for jump to %v", req.Target)
	}
	gpr := rg.reg(gprs)
	imm := int64(rg.randRange(-1023, 1023))

	kind := jumpJALR
	if !req.MainProgram {
		weights := append([]int{}, jumpWeights...)
		if !cfg.Compressed() || cfg.RAReg != riscv.RA {
			weights[jumpCJALR] = 0
		}
		kind = jumpKind(rg.weighted(weights))
	}
	rd := cfg.RAReg
	if kind != jumpCJALR && len(req.StackExit) != 0 && rg.oneOf(4) {
		rd = riscv.Zero
	}

	la := riscv.MustLookup("la").Make()
	la.Rd = gpr
	la.ImmText = req.Target
	addi := riscv.MustLookup("addi").Make()
	addi.Rd, addi.Rs1, addi.Imm = gpr, gpr, imm

	var prefix []*riscv.Insn
	var jump *riscv.Insn
	switch kind {
	case jumpJAL:
		jump = riscv.MustLookup("jal").Make()
		jump.Rd = rd
		jump.ImmText = req.Target
	case jumpJALR:
		prefix = []*riscv.Insn{la, addi}
		jump = riscv.MustLookup("jalr").Make()
		jump.Rd, jump.Rs1, jump.Imm = rd, gpr, -imm
	case jumpCJALR:
		addi.Imm = 0
		prefix = []*riscv.Insn{la, addi}
		jump = riscv.MustLookup("c.jalr").Make()
		jump.Rs1 = gpr
	default:
		return nil, fmt.Errorf("unsupported jump kind %v", kind)
	}
	jump.Comment = fmt.Sprintf("jump %v -> %v", req.Label, req.Target)

	filler := g.Body(r, rg.randRange(5, 10), Opts{
		NoBranch:    true,
		NoLoadStore: true,
		ReservedRd:  riscv.MakeRegSet(gpr, cfg.RAReg),
	})
	var block []*riscv.Insn
	if rd == riscv.Zero {
		for _, insn := range req.StackExit {
			block = append(block, insn.Clone())
		}
	}
	block = append(block, Mix(r, filler, prefix)...)
	block = append(block, jump)
	for _, insn := range block {
		insn.Atomic = true
		insn.HasLabel = false
	}
	block[0].HasLabel = true
	block[0].Label = fmt.Sprintf("%v_j%v", req.Label, req.Index)
	return block, nil
}
