// Copyright 2015 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package gencfg

import (
	"fmt"

	"github.com/rvstress/seqgen/pkg/config"
	"github.com/rvstress/seqgen/pkg/riscv"
)

func LoadData(data []byte) (*Config, error) {
	cfg, err := LoadPartialData(data)
	if err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadFile(filename string) (*Config, error) {
	return LoadFiles([]string{filename})
}

// LoadFiles loads the configs in order, later files override earlier ones.
func LoadFiles(filenames []string) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadFiles(filenames, cfg); err != nil {
		return nil, err
	}
	if err := Complete(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadPartialData(data []byte) (*Config, error) {
	cfg := defaultValues()
	if err := config.LoadData(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the completed default configuration.
func Default() *Config {
	cfg := defaultValues()
	if err := Complete(cfg); err != nil {
		panic(fmt.Sprintf("default config is broken: %v", err))
	}
	return cfg
}

func defaultValues() *Config {
	return &Config{
		Target:             "rv64imc",
		InstrCnt:           200,
		SubProgramInstrCnt: 100,
		NumOfSubProgram:    5,
		MaxBranchStep:      20,
		NoEbreak:           true,
		NoEcall:            true,
		NoWfi:              true,
		RA:                 "ra",
		SP:                 "sp",
		TP:                 "tp",
		ScratchReg:         "t5",
		DirectedStreams: map[string]int{
			"load_store": 2,
			"hazard":     1,
		},
	}
}

func Complete(cfg *Config) error {
	var err error
	if cfg.Arch, err = riscv.GetTarget(cfg.Target); err != nil {
		return err
	}
	if cfg.InstrCnt < 1 {
		return fmt.Errorf("bad config param instr_cnt: %v, want >= 1", cfg.InstrCnt)
	}
	if cfg.SubProgramInstrCnt < 1 {
		return fmt.Errorf("bad config param sub_program_instr_cnt: %v, want >= 1", cfg.SubProgramInstrCnt)
	}
	if cfg.NumOfSubProgram < 0 || cfg.NumOfSubProgram > 64 {
		return fmt.Errorf("bad config param num_of_sub_program: %v, want [0, 64]", cfg.NumOfSubProgram)
	}
	if cfg.MaxBranchStep < 1 {
		return fmt.Errorf("bad config param max_branch_step: %v, want >= 1", cfg.MaxBranchStep)
	}
	if err := checkRatio("illegal_instr_ratio", cfg.IllegalInstrRatio); err != nil {
		return err
	}
	if err := checkRatio("hint_instr_ratio", cfg.HintInstrRatio); err != nil {
		return err
	}
	if cfg.HintInstrRatio != 0 && !cfg.Compressed() {
		return fmt.Errorf("hint_instr_ratio requires compressed instructions")
	}
	if err := completeStack(cfg); err != nil {
		return err
	}
	if err := completeRegs(cfg); err != nil {
		return err
	}
	for name, n := range cfg.DirectedStreams {
		if n < 0 {
			return fmt.Errorf("bad config param directed_streams[%v]: %v", name, n)
		}
	}
	return nil
}

func checkRatio(name string, v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("bad config param %v: %v, want [0, 100]", name, v)
	}
	return nil
}

func completeStack(cfg *Config) error {
	word := cfg.WordSize()
	if cfg.MinStackLen == 0 {
		cfg.MinStackLen = 10 * word
	}
	if cfg.MaxStackLen == 0 {
		cfg.MaxStackLen = 16 * word
	}
	if cfg.MinStackLen < 0 || cfg.MinStackLen > cfg.MaxStackLen {
		return fmt.Errorf("bad stack length range [%v, %v]", cfg.MinStackLen, cfg.MaxStackLen)
	}
	// The frame must hold at least the saved return address.
	if cfg.MaxStackLen < 2*word {
		return fmt.Errorf("max_stack_len_per_program %v is too small, want >= %v", cfg.MaxStackLen, 2*word)
	}
	return nil
}

func completeRegs(cfg *Config) error {
	var err error
	for _, reg := range []struct {
		name string
		val  string
		res  *riscv.Reg
	}{
		{"ra", cfg.RA, &cfg.RAReg},
		{"sp", cfg.SP, &cfg.SPReg},
		{"tp", cfg.TP, &cfg.TPReg},
		{"scratch_reg", cfg.ScratchReg, &cfg.Scratch},
	} {
		if *reg.res, err = riscv.ParseReg(reg.val); err != nil {
			return fmt.Errorf("bad config param %v: %w", reg.name, err)
		}
		if *reg.res == riscv.Zero {
			return fmt.Errorf("config param %v can't be zero", reg.name)
		}
	}
	reserved, err := riscv.ParseRegSet(cfg.ReservedRegs)
	if err != nil {
		return fmt.Errorf("bad config param reserved_regs: %w", err)
	}
	if reserved.Has(cfg.RAReg) {
		return fmt.Errorf("return address register %v is reserved", cfg.RAReg)
	}
	cfg.Reserved = reserved.Union(riscv.MakeRegSet(cfg.SPReg, cfg.TPReg, cfg.Scratch))
	if cfg.Reserved.Has(cfg.RAReg) {
		return fmt.Errorf("return address register %v clashes with sp/tp/scratch_reg", cfg.RAReg)
	}
	if n := len(cfg.AvailableRegs()); n < 4 {
		return fmt.Errorf("too many reserved registers, only %v left", n)
	}
	return nil
}
