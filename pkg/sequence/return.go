// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package sequence

import (
	"fmt"

	"github.com/rvstress/seqgen/pkg/riscv"
)

// returnRoutineLines is the length of the rendered return routine.
const returnRoutineLines = 2

// returnRoutine jumps back to the caller through a random register:
//
//	N:  addi  rnd, ra, 0
//	    jalr  rnd, rnd, 0
//
// jalr ignores the lowest address bit, so the addi immediate may also be 1.
func (s *Sequence) returnRoutine(prefix string) ([]string, error) {
	regs := s.cfg.AvailableRegs()
	if len(regs) == 0 {
		return nil, fmt.Errorf("%w: no register for return routine of %v", ErrConstraint, s.Label)
	}
	rnd := regs[s.r.Intn(len(regs))]
	addi := riscv.MustLookup("addi").Make()
	addi.Rd, addi.Rs1, addi.Imm = rnd, s.cfg.RAReg, int64(s.r.Intn(2))

	kinds := []string{"jalr"}
	if s.cfg.Compressed() {
		kinds = append(kinds, "c.jr")
		if !s.cfg.Reserved.Has(riscv.RA) {
			kinds = append(kinds, "c.jalr")
		}
	}
	var ret *riscv.Insn
	switch name := kinds[s.r.Intn(len(kinds))]; name {
	case "jalr":
		ret = riscv.MustLookup(name).Make()
		ret.Rd, ret.Rs1 = rnd, rnd
	case "c.jr", "c.jalr":
		ret = riscv.MustLookup(name).Make()
		ret.Rs1 = rnd
	default:
		return nil, fmt.Errorf("%w: return instruction %v", ErrEncoding, name)
	}
	return []string{
		prefix + addi.Asm(),
		FormatLabel("") + ret.Asm(),
	}, nil
}
