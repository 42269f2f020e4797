// Copyright 2015 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package gencfg

import (
	"github.com/rvstress/seqgen/pkg/riscv"
)

type Config struct {
	// Target ISA, one of rv32i, rv32imc, rv64i, rv64imc.
	Target string `json:"target"`
	// Seed of the top-level random source. 0 means "pick one".
	Seed int64 `json:"seed,omitempty"`

	// Number of random body instructions in the main program.
	InstrCnt int `json:"instr_cnt"`
	// Number of random body instructions in every sub-program.
	SubProgramInstrCnt int `json:"sub_program_instr_cnt"`
	NumOfSubProgram    int `json:"num_of_sub_program"`

	// Bounds of the per sub-program stack frame in bytes.
	// Defaults to 10 and 16 machine words respectively.
	MinStackLen int `json:"min_stack_len_per_program,omitempty"`
	MaxStackLen int `json:"max_stack_len_per_program,omitempty"`

	// Forward branch distance is drawn from [1, max_branch_step] local labels.
	MaxBranchStep int `json:"max_branch_step"`

	// Illegal/HINT injection rates in the range [0, 100].
	// The number of injected lines is instr_cnt*ratio/1000.
	IllegalInstrRatio int `json:"illegal_instr_ratio"`
	HintInstrRatio    int `json:"hint_instr_ratio"`

	NoBranchJump      bool `json:"no_branch_jump"`
	NoLoadStore       bool `json:"no_load_store"`
	NoEbreak          bool `json:"no_ebreak"`
	NoEcall           bool `json:"no_ecall"`
	NoWfi             bool `json:"no_wfi"`
	NoFence           bool `json:"no_fence"`
	DisableCompressed bool `json:"disable_compressed_instr"`
	// Align the main program to a page boundary for PMP configuration.
	SupportPMP bool `json:"support_pmp"`

	// Registers that random instructions must not write.
	// sp, tp and scratch_reg are always reserved.
	ReservedRegs []string `json:"reserved_regs,omitempty"`
	// Return address register used by the call graph between programs.
	RA         string `json:"ra"`
	SP         string `json:"sp"`
	TP         string `json:"tp"`
	ScratchReg string `json:"scratch_reg"`

	// Number of directed streams per kind ("load_store", "hazard")
	// spliced into every program.
	DirectedStreams map[string]int `json:"directed_streams,omitempty"`

	// Implementation details beyond this point. Filled after parsing.
	Arch     *riscv.Target `json:"-"`
	Reserved riscv.RegSet  `json:"-"`
	RAReg    riscv.Reg     `json:"-"`
	SPReg    riscv.Reg     `json:"-"`
	TPReg    riscv.Reg     `json:"-"`
	Scratch  riscv.Reg     `json:"-"`
}

// Compressed reports whether compressed instructions may be generated.
func (cfg *Config) Compressed() bool {
	return cfg.Arch.Compressed && !cfg.DisableCompressed
}

// WordSize returns the machine word size in bytes.
func (cfg *Config) WordSize() int {
	return cfg.Arch.WordSize()
}

// AvailableRegs returns the registers that are neither reserved nor zero.
func (cfg *Config) AvailableRegs() []riscv.Reg {
	var regs []riscv.Reg
	for r := riscv.RA; r < riscv.NumRegs; r++ {
		if !cfg.Reserved.Has(r) {
			regs = append(regs, r)
		}
	}
	return regs
}
