// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package sequence

import (
	"fmt"

	"github.com/rvstress/seqgen/pkg/riscv"
	"github.com/rvstress/seqgen/pkg/stream"
)

const maxStackAdjust = 2047

// stackLen draws a word-aligned frame size from the configured bounds
// narrowed to the sizes that hold the saved registers and fit into addi.
func (s *Sequence) stackLen() (int, error) {
	word := s.cfg.WordSize()
	lo := max((s.cfg.MinStackLen+word-1)/word, len(s.saved)+1)
	hi := min(s.cfg.MaxStackLen, maxStackAdjust) / word
	if lo > hi {
		return 0, fmt.Errorf("%w: no stack length in [%v, %v] holds %v saved registers",
			ErrConstraint, s.cfg.MinStackLen, s.cfg.MaxStackLen, len(s.saved))
	}
	return (lo + s.r.Intn(hi-lo+1)) * word, nil
}

func (s *Sequence) stackOp(name string, reg riscv.Reg, offset int) *riscv.Insn {
	insn := riscv.MustLookup(name).Make()
	insn.Rs1 = s.cfg.SPReg
	insn.Imm = int64(offset)
	if name == "sd" || name == "sw" {
		insn.Rs2 = reg
	} else {
		insn.Rd = reg
	}
	return insn
}

func (s *Sequence) wordOps() (string, string) {
	if s.cfg.WordSize() == 8 {
		return "sd", "ld"
	}
	return "sw", "lw"
}

// filler returns random instructions that don't touch the saved registers.
func (s *Sequence) filler() []*riscv.Insn {
	return s.collab.Body.Body(s.r, 3+s.r.Intn(8), stream.Opts{
		NoBranch:    true,
		NoLoadStore: true,
		ReservedRd:  riscv.MakeRegSet(s.saved...),
	})
}

// genPushStack allocates the stack frame and saves the return address.
// The result is an atomic group, optionally preceded by a branch to its head.
func (s *Sequence) genPushStack() ([]*riscv.Insn, error) {
	s.saved = []riscv.Reg{s.cfg.RAReg}
	n, err := s.stackLen()
	if err != nil {
		return nil, err
	}
	s.StackLen = n
	word := s.cfg.WordSize()
	store, _ := s.wordOps()

	head := riscv.MustLookup("addi").Make()
	head.Rd, head.Rs1, head.Imm = s.cfg.SPReg, s.cfg.SPReg, int64(-n)
	head.Label = s.Label + "_stack_p"
	var stores []*riscv.Insn
	for i, reg := range s.saved {
		stores = append(stores, s.stackOp(store, reg, word*(i+1)))
	}
	list := append([]*riscv.Insn{head}, stream.Mix(s.r, s.filler(), stores)...)
	for i, insn := range list {
		insn.Atomic = true
		insn.HasLabel = i == 0
	}
	if s.IllegalPct == 0 && s.HintPct == 0 && !s.cfg.NoBranchJump && s.r.Intn(2) == 0 {
		list = append([]*riscv.Insn{s.branchTo(head.Label)}, list...)
	}
	return list, nil
}

// branchTo returns a random branch to the next instruction.
func (s *Sequence) branchTo(label string) *riscv.Insn {
	names := []string{"beq", "bne", "blt", "bge", "bltu", "bgeu"}
	if s.cfg.Compressed() {
		names = append(names, "c.beqz", "c.bnez")
	}
	insn := riscv.MustLookup(names[s.r.Intn(len(names))]).Make()
	pick := func(compressed bool) riscv.Reg {
		for {
			reg := riscv.Reg(s.r.Intn(int(riscv.NumRegs)))
			if !compressed || reg.Compressible() {
				return reg
			}
		}
	}
	insn.Rs1 = pick(insn.Compressed)
	if !insn.Compressed {
		insn.Rs2 = pick(false)
	}
	insn.ImmText = label
	insn.Imm = int64(insn.Size())
	insn.HasLabel = false
	insn.BranchAssigned = true
	return insn
}

// genPopStack restores the saved registers and releases the frame.
func (s *Sequence) genPopStack() ([]*riscv.Insn, error) {
	if s.StackLen == 0 {
		return nil, fmt.Errorf("%w: pop without push in %v", ErrStage, s.Label)
	}
	word := s.cfg.WordSize()
	_, load := s.wordOps()
	var loads []*riscv.Insn
	for i, reg := range s.saved {
		loads = append(loads, s.stackOp(load, reg, word*(i+1)))
	}
	release := riscv.MustLookup("addi").Make()
	release.Rd, release.Rs1, release.Imm = s.cfg.SPReg, s.cfg.SPReg, int64(s.StackLen)
	s.pop = nil
	for _, insn := range append(loads, release) {
		insn.Atomic = true
		insn.HasLabel = false
		s.pop = append(s.pop, insn.Clone())
	}
	// The frame is released last, filler goes between the loads.
	list := append(stream.Mix(s.r, s.filler(), loads), release)
	for _, insn := range list {
		insn.Atomic = true
		insn.HasLabel = false
	}
	return list, nil
}
