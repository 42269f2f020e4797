// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package sequence

import (
	"fmt"

	"github.com/rvstress/seqgen/pkg/riscv/illegal"
)

// InjectIllegalHint inserts raw illegal and HINT patterns at random lines
// of the rendered program. The number of patterns is InsnCnt*pct/1000.
func (s *Sequence) InjectIllegalHint() error {
	if err := s.checkStage(StageRendered, "inject"); err != nil {
		return err
	}
	// Patterns go in front of the return routine of sub-programs.
	tail := 0
	if !s.MainProgram {
		tail = returnRoutineLines
	}
	inject := func(kind illegal.Kind, pct int) (int, error) {
		n := s.InsnCnt * pct / 1000
		for i := 0; i < n; i++ {
			p, err := s.collab.Patterns.Next(s.r, kind)
			if err != nil {
				return i, fmt.Errorf("%w: %w", ErrEncoding, err)
			}
			line := FormatLabel("") + p.Directive() + " # " + p.Comment
			pos := s.r.Intn(len(s.Lines) - tail + 1)
			s.Lines = append(s.Lines[:pos], append([]string{line}, s.Lines[pos:]...)...)
		}
		return n, nil
	}
	n, err := inject(illegal.Illegal, s.IllegalPct)
	s.Stats.InjectedIllegal += n
	if err != nil {
		return err
	}
	n, err = inject(illegal.Hint, s.HintPct)
	s.Stats.InjectedHint += n
	if err != nil {
		return err
	}
	s.log.Logf(2, "injected %v illegal and %v HINT patterns",
		s.Stats.InjectedIllegal, s.Stats.InjectedHint)
	s.stage = StageInjected
	return nil
}
