// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package sequence

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rvstress/seqgen/pkg/riscv"
)

// branchStepPool is the number of pre-drawn branch distances.
// The pool is reshuffled after every round.
const branchStepPool = 30

const (
	maxBranchOffset           = 4094
	maxCompressedBranchOffset = 254
)

// assignLabels numbers all instructions that can be branch targets and marks some
// of them as illegal or HINT. It returns the number of assigned labels.
// Index of every instruction is the value of the label counter at its position,
// so a labeled instruction has Index equal to its numeric label.
func (s *Sequence) assignLabels() int {
	labels := 0
	for i, insn := range s.Insns {
		insn.Index = labels
		if !insn.HasLabel || insn.Atomic {
			continue
		}
		if s.IllegalPct > 0 && !insn.Illegal {
			// Illegal instruction handler always skips 4 bytes,
			// a compressed instruction may be replaced only if the next one is compressed too.
			if !insn.Compressed || i+1 < len(s.Insns) && s.Insns[i+1].Compressed {
				insn.Illegal = s.r.Intn(100) < s.IllegalPct
			}
		}
		if s.HintPct > 0 && !insn.Illegal && insn.Compressed {
			insn.Hint = s.r.Intn(100) < s.HintPct
		}
		if insn.Illegal {
			s.Stats.MarkedIllegal++
		}
		if insn.Hint {
			s.Stats.MarkedHint++
		}
		insn.Label = strconv.Itoa(labels)
		insn.LocalNumericLabel = true
		labels++
	}
	return labels
}

// resolveBranches assigns forward targets to all branches in a single pass
// and drops the labels that are not branch targets.
func (s *Sequence) resolveBranches(labels int) error {
	steps := make([]int, branchStepPool)
	for i := range steps {
		steps[i] = 1 + s.r.Intn(s.cfg.MaxBranchStep)
	}
	step := 0
	used := make(map[int]bool)
	for i, insn := range s.Insns {
		if insn.IsBranch() && !insn.BranchAssigned && !insn.Illegal && !insn.Hint {
			target := min(insn.Index+steps[step], labels-1)
			step++
			if step == len(steps) {
				step = 0
				s.r.Shuffle(len(steps), func(i, j int) { steps[i], steps[j] = steps[j], steps[i] })
			}
			if target <= insn.Index {
				return fmt.Errorf("%w: no forward target for branch %v at %v in %v",
					ErrConstraint, insn, i, s.Label)
			}
			target, offset, err := s.fitTarget(i, target)
			if err != nil {
				return err
			}
			insn.ImmText = fmt.Sprintf("%vf", target)
			insn.Imm = offset
			insn.BranchAssigned = true
			used[target] = true
			s.Stats.Branches++
			s.Stats.BranchOffsets = append(s.Stats.BranchOffsets, offset)
			s.log.Logf(3, "branch %v -> %v (+%v bytes)", insn.Index, target, offset)
		}
		if insn.HasLabel && insn.LocalNumericLabel {
			if label, _ := strconv.Atoi(insn.Label); !used[label] {
				insn.HasLabel = false
			} else {
				s.Stats.Labels++
			}
		}
	}
	return nil
}

// fitTarget returns the byte offset from the branch at position i to the target label.
// If the offset does not fit into the branch immediate, closer labels are tried.
func (s *Sequence) fitTarget(i, target int) (int, int64, error) {
	branch := s.Insns[i]
	limit := int64(maxBranchOffset)
	if branch.Compressed {
		limit = maxCompressedBranchOffset
	}
	for ; target > branch.Index; target-- {
		offset, err := s.branchOffset(i, target)
		if err != nil {
			return 0, 0, err
		}
		if offset <= limit {
			return target, offset, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: branch %v at %v in %v: next label is out of range",
		ErrConstraint, branch, i, s.Label)
}

// branchOffset walks forward from the branch at position i and sums up instruction
// widths until it finds the instruction with the target label.
func (s *Sequence) branchOffset(i, target int) (int64, error) {
	label := strconv.Itoa(target)
	offset := int64(0)
	for j := i + 1; j < len(s.Insns); j++ {
		offset += int64(s.Insns[j-1].Size())
		if insn := s.Insns[j]; insn.LocalNumericLabel && insn.Label == label {
			return offset, nil
		}
	}
	return 0, fmt.Errorf("%w: label %v for branch at %v in %v", ErrResolve, target, i, s.Label)
}

// localTarget returns the numeric label targeted by a resolved branch.
func localTarget(insn *riscv.Insn) (int, bool) {
	if !insn.IsBranch() || !insn.BranchAssigned || !strings.HasSuffix(insn.ImmText, "f") {
		return 0, false
	}
	target, err := strconv.Atoi(strings.TrimSuffix(insn.ImmText, "f"))
	return target, err == nil
}

// fixupOffsets recomputes binary offsets of resolved branches after instructions were inserted.
func (s *Sequence) fixupOffsets() error {
	for i, insn := range s.Insns {
		target, ok := localTarget(insn)
		if !ok {
			continue
		}
		offset, err := s.branchOffset(i, target)
		if err != nil {
			return err
		}
		if insn.Compressed && offset > maxCompressedBranchOffset || offset > maxBranchOffset {
			return fmt.Errorf("%w: branch %v at %v in %v is out of range after insertion",
				ErrConstraint, insn, i, s.Label)
		}
		insn.Imm = offset
	}
	return nil
}

// spanned marks positions between compressed branches and their targets.
// Inserting there could push the target out of the branch range.
func (s *Sequence) spanned() []bool {
	res := make([]bool, len(s.Insns)+1)
	for i, insn := range s.Insns {
		if _, ok := localTarget(insn); !ok || !insn.Compressed {
			continue
		}
		offset := insn.Imm
		for j := i + 1; j < len(s.Insns) && offset > 0; j++ {
			res[j] = true
			offset -= int64(s.Insns[j-1].Size())
		}
	}
	return res
}
