// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stream

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/rvstress/seqgen/pkg/riscv"
)

const (
	// DataRegion is the label of the scratch data region used by memory accesses.
	DataRegion     = "region_0"
	DataRegionSize = 4096
)

// Kind selects a directed stream variant.
type Kind int

const (
	KindLoadStore Kind = iota
	KindHazard
	kindLast
)

var kindNames = [kindLast]string{"load_store", "hazard"}

func (k Kind) String() string {
	if k < 0 || k >= kindLast {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown directed stream %q, supported: %v", name, kindNames)
}

// SortedKinds returns stream counts from a config map in a deterministic order.
func SortedKinds(counts map[string]int) ([]Kind, error) {
	var kinds []Kind
	for name, n := range counts {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			kinds = append(kinds, kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds, nil
}

// NewDirected returns an atomic block of the given kind.
// The block is self-contained: it sets up all registers it depends on.
func (g *Generator) NewDirected(r *rand.Rand, kind Kind) ([]*riscv.Insn, error) {
	rg := &randGen{r}
	var block []*riscv.Insn
	var err error
	switch kind {
	case KindLoadStore:
		block, err = g.loadStore(rg)
	case KindHazard:
		block, err = g.hazard(rg)
	default:
		return nil, fmt.Errorf("unknown directed stream kind %v", kind)
	}
	if err != nil {
		return nil, err
	}
	for _, insn := range block {
		insn.Atomic = true
		insn.HasLabel = false
	}
	block[0].Comment = "start " + kind.String()
	block[len(block)-1].Comment = "end " + kind.String()
	return block, nil
}

// loadStore loads the region address into a random base register and
// then issues a mix of loads and stores relative to it.
func (g *Generator) loadStore(r *randGen) ([]*riscv.Insn, error) {
	avail := g.cfg.AvailableRegs()
	if len(avail) < 2 {
		return nil, fmt.Errorf("not enough registers for a load/store stream")
	}
	base := r.reg(avail)
	la := riscv.MustLookup("la").Make()
	la.Rd = base
	la.ImmText = DataRegion

	var mem []*riscv.Template
	for _, tmpl := range riscv.TemplatesFor(g.cfg.Arch) {
		if !tmpl.Compressed() && (tmpl.Category == riscv.CategoryLoad || tmpl.Category == riscv.CategoryStore) {
			mem = append(mem, tmpl)
		}
	}
	var accesses []*riscv.Insn
	for i, n := 0, r.randRange(10, 30); i < n; i++ {
		tmpl := mem[r.Intn(len(mem))]
		insn := tmpl.Make()
		size := accessSize(tmpl.Name)
		insn.Rs1 = base
		insn.Imm = int64(r.Intn(DataRegionSize/2/size) * size)
		if tmpl.Category == riscv.CategoryLoad {
			insn.Rd = r.reg(excluding(avail, base))
		} else {
			insn.Rs2 = r.reg(allRegs)
		}
		accesses = append(accesses, insn)
	}
	filler := g.Body(r.Rand, r.randRange(0, 5), Opts{
		NoBranch:    true,
		NoLoadStore: true,
		ReservedRd:  riscv.MakeRegSet(base),
	})
	return append([]*riscv.Insn{la}, Mix(r.Rand, accesses, filler)...), nil
}

// hazard generates arithmetic on a small register pool to create
// read-after-write, write-after-read and write-after-write dependencies.
func (g *Generator) hazard(r *randGen) ([]*riscv.Insn, error) {
	avail := g.cfg.AvailableRegs()
	var pool []riscv.Reg
	for _, i := range r.Perm(len(avail))[:min(len(avail), r.randRange(2, 4))] {
		pool = append(pool, avail[i])
	}
	// Make the pool usable by compressed instructions too if possible.
	for _, reg := range avail {
		if reg.Compressible() {
			pool = append(pool, reg)
			break
		}
	}
	return g.Body(r.Rand, r.randRange(10, 30), Opts{
		NoBranch:    true,
		NoLoadStore: true,
		Regs:        pool,
	}), nil
}

func excluding(regs []riscv.Reg, reg riscv.Reg) []riscv.Reg {
	var res []riscv.Reg
	for _, r := range regs {
		if r != reg {
			res = append(res, r)
		}
	}
	return res
}
