// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package riscv

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Reg is a general purpose register x0..x31.
type Reg uint8

const (
	Zero Reg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6
	NumRegs
)

var regNames = [NumRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// String returns the ABI name of the register.
func (r Reg) String() string {
	if r >= NumRegs {
		return fmt.Sprintf("x?%d", uint8(r))
	}
	return regNames[r]
}

// Compressible reports whether the register is one of x8..x15
// addressable by the 3-bit register fields of compressed instructions.
func (r Reg) Compressible() bool {
	return r >= S0 && r <= A5
}

// ParseReg accepts both ABI names ("ra", "t5") and numeric names ("x1"). "fp" is an alias for s0.
func ParseReg(name string) (Reg, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "fp" {
		return S0, nil
	}
	for i, n := range regNames {
		if n == name {
			return Reg(i), nil
		}
	}
	if strings.HasPrefix(name, "x") {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 0 && n < int(NumRegs) {
			return Reg(n), nil
		}
	}
	return 0, fmt.Errorf("unknown register %q", name)
}

// RegSet is a set of registers.
type RegSet uint32

func MakeRegSet(regs ...Reg) RegSet {
	var s RegSet
	for _, r := range regs {
		s = s.Add(r)
	}
	return s
}

func ParseRegSet(names []string) (RegSet, error) {
	var s RegSet
	for _, name := range names {
		r, err := ParseReg(name)
		if err != nil {
			return 0, err
		}
		s = s.Add(r)
	}
	return s, nil
}

func (s RegSet) Add(r Reg) RegSet {
	return s | 1<<r
}

func (s RegSet) Has(r Reg) bool {
	return s&(1<<r) != 0
}

func (s RegSet) Union(other RegSet) RegSet {
	return s | other
}

// Regs returns the registers in the set in ascending order.
func (s RegSet) Regs() []Reg {
	var regs []Reg
	for r := Zero; r < NumRegs; r++ {
		if s.Has(r) {
			regs = append(regs, r)
		}
	}
	return regs
}

func (s RegSet) String() string {
	var names []string
	for _, r := range s.Regs() {
		names = append(names, r.String())
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ",") + "}"
}
