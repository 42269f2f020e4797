// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package asmgen

import (
	"bytes"
	"fmt"

	"github.com/rvstress/seqgen/pkg/gencfg"
	"github.com/rvstress/seqgen/pkg/riscv"
	"github.com/rvstress/seqgen/pkg/sequence"
	"github.com/rvstress/seqgen/pkg/stream"
)

const (
	StartLabel    = "_start"
	DoneLabel     = "test_done"
	HaltLabel     = "write_tohost"
	TrapLabel     = "trap_handler"
	StackLabel    = "user_stack_start"
	StackEndLabel = "user_stack_end"

	// Exception code of an environment call from M-mode.
	causeEcallM = 11
	minStack    = 4096
)

type printer struct {
	buf bytes.Buffer
}

func (w *printer) line(label, format string, args ...any) {
	prefix := sequence.FormatLabel("")
	if label != "" {
		prefix = sequence.FormatLabel(label + ":")
	}
	fmt.Fprintf(&w.buf, "%v%v\n", prefix, fmt.Sprintf(format, args...))
}

func (w *printer) insn(label, mnemonic, ops string, args ...any) {
	if ops == "" {
		w.line(label, "%v", mnemonic)
		return
	}
	w.line(label, "%-*v%v", riscv.MnemonicWidth, mnemonic, fmt.Sprintf(ops, args...))
}

func (w *printer) directive(format string, args ...any) {
	fmt.Fprintf(&w.buf, format+"\n", args...)
}

func (w *printer) lines(lines []string) {
	for _, ln := range lines {
		w.buf.WriteString(ln)
		w.buf.WriteByte('\n')
	}
}

// render produces the complete assembly file:
//
//	_start:        stack/data pointers and trap vector setup
//	main:          main program, falls through to test_done
//	test_done:     ecall, then spin
//	sub_1..sub_N   sub-programs
//	trap_handler:  skips the trapping instruction
//	.data          data region and user stack
func render(cfg *gencfg.Config, p *Program) []byte {
	w := new(printer)
	w.directive("# Generated by syz-seqgen: target %v, seed %v", cfg.Target, p.Seed)
	if !cfg.Compressed() {
		w.directive(".option norvc")
	}
	w.directive(".section .text")
	w.directive(".globl %v", StartLabel)
	w.directive(".align 2")
	scratch := cfg.Scratch
	w.insn(StartLabel, "la", "%v, %v", cfg.SPReg, StackEndLabel)
	w.insn("", "la", "%v, %v", cfg.TPReg, stream.DataRegion)
	w.insn("", "la", "%v, %v", scratch, TrapLabel)
	w.insn("", "csrw", "mtvec, %v", scratch)
	w.insn("", "j", "%v", MainLabel)

	w.lines(p.Main.Lines)
	w.insn(DoneLabel, "li", "gp, 1")
	w.insn("", "ecall", "")
	w.insn(HaltLabel, "j", "%v", HaltLabel)
	for _, s := range p.Subs {
		w.lines(s.Lines)
	}

	// Illegal instructions and enabled system instructions trap here.
	// The handler skips 4 bytes, it's the reason why a compressed instruction
	// can be replaced by an illegal pattern only if the next one is compressed too.
	w.directive(".align 2")
	w.insn(TrapLabel, "csrr", "%v, mcause", scratch)
	w.insn("", "addi", "%v, %v, -%v", scratch, scratch, causeEcallM)
	w.insn("", "bnez", "%v, 1f", scratch)
	w.insn("", "j", "%v", HaltLabel)
	w.insn("1", "csrr", "%v, mepc", scratch)
	w.insn("", "addi", "%v, %v, 4", scratch, scratch)
	w.insn("", "csrw", "mepc, %v", scratch)
	w.insn("", "mret", "")

	w.directive(".section .data")
	w.directive(".align 12")
	w.line(stream.DataRegion, ".zero %v", stream.DataRegionSize)
	w.directive(".align 12")
	w.line(StackLabel, ".zero %v", stackSize(cfg))
	w.line(StackEndLabel, ".zero %v", cfg.WordSize())
	return w.buf.Bytes()
}

// stackSize fits the deepest possible call chain of sub-programs.
func stackSize(cfg *gencfg.Config) int {
	size := (cfg.NumOfSubProgram + 1) * cfg.MaxStackLen
	page := int(cfg.Arch.PageSize)
	return max(minStack, (size+page-1)/page*page)
}
