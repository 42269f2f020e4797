// Copyright 2015/2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stream

import (
	"math/rand"

	"github.com/rvstress/seqgen/pkg/riscv"
)

type randGen struct {
	*rand.Rand
}

func (r *randGen) randRange(begin, end int) int {
	return begin + r.Intn(end-begin+1)
}

func (r *randGen) oneOf(n int) bool {
	return r.Intn(n) == 0
}

func (r *randGen) nOutOf(n, outOf int) bool {
	if n <= 0 || n >= outOf {
		panic("bad probability")
	}
	return r.Intn(outOf) < n
}

// weighted returns an index into weights chosen proportionally to the weights.
func (r *randGen) weighted(weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	v := r.Intn(total)
	for i, w := range weights {
		if v < w {
			return i
		}
		v -= w
	}
	panic("unreachable")
}

func (r *randGen) reg(regs []riscv.Reg) riscv.Reg {
	return regs[r.Intn(len(regs))]
}

// imm returns a random immediate satisfying the template constraints.
// Range boundaries are preferred in a fraction of cases.
func (r *randGen) imm(tmpl *riscv.Template, target *riscv.Target) int64 {
	switch tmpl.Imm {
	case riscv.ImmNone, riscv.ImmLabel:
		return 0
	}
	lo, hi := tmpl.ImmRange(target)
	scale := tmpl.ImmScale
	n := (hi-lo)/scale + 1
	for {
		var v int64
		switch {
		case r.nOutOf(1, 10):
			v = lo
		case r.nOutOf(1, 9):
			v = lo + (n-1)*scale
		case r.nOutOf(1, 8) && lo < 0:
			v = -scale
		default:
			v = lo + r.Int63n(n)*scale
		}
		if v == 0 && tmpl.ImmNonZero {
			continue
		}
		return v
	}
}
