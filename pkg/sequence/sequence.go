// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package sequence generates a single randomized RISC-V instruction sequence
// (the main program or a sub-program) and renders it to assembly text.
//
// A sequence goes through the following stages in order:
//
//	Generate         random body, plus stack push/pop for sub-programs
//	AddDirected      queue atomic directed streams (optional)
//	PostProcess      splice directed streams, assign labels, resolve branches
//	InsertJumpInsn   calls into other programs (optional, done by the caller)
//	Render           assembly text, plus the return routine for sub-programs
//	InjectIllegalHint
//
// Calling a stage out of order returns ErrStage.
package sequence

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"github.com/rvstress/seqgen/pkg/gencfg"
	"github.com/rvstress/seqgen/pkg/log"
	"github.com/rvstress/seqgen/pkg/riscv"
	"github.com/rvstress/seqgen/pkg/riscv/illegal"
	"github.com/rvstress/seqgen/pkg/stream"
)

var (
	ErrConfig     = errors.New("bad configuration")
	ErrConstraint = errors.New("randomization constraint failed")
	ErrResolve    = errors.New("branch target not found")
	ErrEncoding   = errors.New("unsupported encoding")
	ErrStage      = errors.New("stage out of order")
)

type BodyStream interface {
	Body(r *rand.Rand, cnt int, opts stream.Opts) []*riscv.Insn
}

type JumpRoutine interface {
	Jump(r *rand.Rand, req stream.JumpRequest) ([]*riscv.Insn, error)
}

type PatternSource interface {
	Next(r *rand.Rand, kind illegal.Kind) (illegal.Pattern, error)
}

type Collaborators struct {
	Body     BodyStream
	Jump     JumpRoutine
	Patterns PatternSource
}

// Stage is the last completed stage of a sequence.
type Stage int

const (
	StageNew Stage = iota
	StageGenerated
	StagePostProcessed
	StageRendered
	StageInjected
)

var stageNames = []string{"new", "generated", "post-processed", "rendered", "injected"}

func (st Stage) String() string {
	if st < 0 || int(st) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(st))
	}
	return stageNames[st]
}

type Stats struct {
	Insns           int
	Labels          int // numeric labels left after pruning
	Branches        int
	MarkedIllegal   int
	MarkedHint      int
	InjectedIllegal int
	InjectedHint    int
	BranchOffsets   []int64
}

type Sequence struct {
	Label        string
	MainProgram  bool
	DebugProgram bool
	InsnCnt      int
	// StackLen is the size of the stack frame of a sub-program in bytes.
	StackLen   int
	IllegalPct int
	HintPct    int

	Insns []*riscv.Insn
	Lines []string
	Stats Stats

	cfg    *gencfg.Config
	collab Collaborators
	r      *rand.Rand
	log    log.Logger
	stage  Stage

	directed [][]*riscv.Insn
	saved    []riscv.Reg
	// pop holds the epilogue without random filler, it's passed to jump routines.
	pop      []*riscv.Insn
	prologue int
	epilogue int
	jumps    map[int]bool
}

// New creates a sequence named label. The sequence uses r exclusively,
// sequences that are generated concurrently need own random sources.
func New(cfg *gencfg.Config, collab Collaborators, r *rand.Rand, label string, main bool) (*Sequence, error) {
	if cfg == nil || cfg.Arch == nil {
		return nil, fmt.Errorf("%w: config is not complete", ErrConfig)
	}
	if collab.Body == nil || collab.Jump == nil || collab.Patterns == nil {
		return nil, fmt.Errorf("%w: missing instruction stream providers", ErrConfig)
	}
	if label == "" {
		return nil, fmt.Errorf("%w: empty program label", ErrConfig)
	}
	s := &Sequence{
		Label:       label,
		MainProgram: main,
		InsnCnt:     cfg.SubProgramInstrCnt,
		IllegalPct:  cfg.IllegalInstrRatio,
		HintPct:     cfg.HintInstrRatio,
		cfg:         cfg,
		collab:      collab,
		r:           r,
		log:         log.Prefixed(label),
	}
	if main {
		s.InsnCnt = cfg.InstrCnt
	}
	if s.HintPct != 0 && !cfg.Compressed() {
		return nil, fmt.Errorf("%w: HINT instructions require compressed instructions", ErrConfig)
	}
	return s, nil
}

func (s *Sequence) Stage() Stage {
	return s.stage
}

func (s *Sequence) checkStage(want Stage, op string) error {
	if s.stage != want {
		return fmt.Errorf("%w: %v on %v sequence %v, want %v", ErrStage, op, s.stage, s.Label, want)
	}
	return nil
}

// Generate creates the random body. Sub-programs are wrapped with stack push/pop.
// Load/store instructions are not part of the body, they come from directed streams.
func (s *Sequence) Generate() error {
	if err := s.checkStage(StageNew, "generate"); err != nil {
		return err
	}
	body := s.collab.Body.Body(s.r, s.InsnCnt, stream.Opts{
		NoBranch:    s.cfg.NoBranchJump,
		NoLoadStore: true,
		Debug:       s.DebugProgram,
	})
	if len(body) != s.InsnCnt {
		return fmt.Errorf("%w: body stream returned %v instructions, want %v", ErrConstraint, len(body), s.InsnCnt)
	}
	s.Insns = body
	if !s.MainProgram {
		push, err := s.genPushStack()
		if err != nil {
			return err
		}
		pop, err := s.genPopStack()
		if err != nil {
			return err
		}
		s.prologue, s.epilogue = len(push), len(pop)
		s.Insns = append(append(push, body...), pop...)
	}
	s.log.Logf(2, "generated %v instructions, stack %v bytes", len(s.Insns), s.StackLen)
	s.stage = StageGenerated
	return nil
}

// AddDirected queues an atomic block to be spliced into the body by PostProcess.
func (s *Sequence) AddDirected(block []*riscv.Insn) error {
	if err := s.checkStage(StageGenerated, "add directed stream"); err != nil {
		return err
	}
	if len(block) == 0 {
		return nil
	}
	for i, insn := range block {
		if !insn.Atomic {
			return fmt.Errorf("%w: directed stream instruction %v is not atomic", ErrConfig, insn)
		}
		if i != 0 && insn.HasLabel {
			return fmt.Errorf("%w: directed stream instruction %v has a label", ErrConfig, insn)
		}
	}
	s.directed = append(s.directed, block)
	return nil
}

// bodyRange returns the range of positions between the prologue and the epilogue.
func (s *Sequence) bodyRange() (int, int) {
	return s.prologue, len(s.Insns) - s.epilogue
}

// PostProcess splices directed streams at random positions, assigns local labels,
// marks illegal/HINT instructions and resolves forward branches.
func (s *Sequence) PostProcess() error {
	if err := s.checkStage(StageGenerated, "post-process"); err != nil {
		return err
	}
	for _, block := range s.directed {
		lo, hi := s.bodyRange()
		list, err := stream.Insert(s.r, s.Insns, block, lo, hi)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConstraint, err)
		}
		s.Insns = list
	}
	s.directed = nil
	labels := s.assignLabels()
	if err := s.resolveBranches(labels); err != nil {
		return err
	}
	s.stage = StagePostProcessed
	return nil
}

// JumpPoints returns the positions where InsertJumpInsn may insert a jump:
// inside the body, outside of atomic groups and not between a compressed branch and its target.
// A compressed illegal instruction must stay followed by a compressed one,
// so the position right after it is excluded too.
func (s *Sequence) JumpPoints() []int {
	lo, hi := s.bodyRange()
	spanned := s.spanned()
	var res []int
	for _, pos := range stream.SplicePoints(s.Insns, lo, hi) {
		if spanned[pos] {
			continue
		}
		if prev := pos - 1; prev >= 0 && s.Insns[prev].Illegal && s.Insns[prev].Compressed {
			continue
		}
		res = append(res, pos)
	}
	return res
}

// InsertJumpInsn inserts an atomic jump to the program target before Insns[idx].
func (s *Sequence) InsertJumpInsn(target string, idx int) error {
	if err := s.checkStage(StagePostProcessed, "insert jump"); err != nil {
		return err
	}
	if !slices.Contains(s.JumpPoints(), idx) {
		return fmt.Errorf("%w: can't insert jump at %v in %v", ErrConstraint, idx, s.Label)
	}
	// The jump label is derived from idx and must stay unique.
	if s.jumps[idx] {
		return fmt.Errorf("%w: %v already has a jump labeled at %v", ErrConstraint, s.Label, idx)
	}
	req := stream.JumpRequest{
		Target:      target,
		Label:       s.Label,
		Index:       idx,
		MainProgram: s.MainProgram,
	}
	if !s.MainProgram {
		req.StackExit = s.pop
	}
	block, err := s.collab.Jump.Jump(s.r, req)
	if err != nil {
		return fmt.Errorf("%w: jump %v -> %v: %w", ErrConstraint, s.Label, target, err)
	}
	prev := s.Insns
	s.Insns = stream.InsertAt(s.Insns, block, idx)
	if err := s.fixupOffsets(); err != nil {
		s.Insns = prev
		// Branches shared with prev may already carry updated offsets.
		if err1 := s.fixupOffsets(); err1 != nil {
			panic(fmt.Sprintf("failed to restore %v: %v", s.Label, err1))
		}
		return err
	}
	if s.jumps == nil {
		s.jumps = make(map[int]bool)
	}
	s.jumps[idx] = true
	s.log.Logf(2, "inserted jump to %v at %v", target, idx)
	return nil
}

// Render produces the assembly text lines. noLabel omits the program label on the first line.
func (s *Sequence) Render(noLabel bool) error {
	if err := s.checkStage(StagePostProcessed, "render"); err != nil {
		return err
	}
	var lines []string
	if s.cfg.SupportPMP && containsMain(s.Label) {
		lines = append(lines, ".align 12")
	}
	for i, insn := range s.Insns {
		var prefix string
		switch {
		case i == 0 && noLabel:
			prefix = FormatLabel("")
		case i == 0:
			prefix = FormatLabel(s.Label + ":")
		case insn.HasLabel && insn.Label != "":
			prefix = FormatLabel(insn.Label + ":")
		default:
			prefix = FormatLabel("")
		}
		text, err := s.insnText(insn)
		if err != nil {
			return err
		}
		lines = append(lines, prefix+text)
	}
	if !s.MainProgram {
		ret, err := s.returnRoutine(FormatLabel(fmt.Sprintf("%v:", len(s.Insns))))
		if err != nil {
			return err
		}
		lines = append(lines, ret...)
	}
	s.Lines = lines
	s.Stats.Insns = len(s.Insns)
	s.stage = StageRendered
	return nil
}
