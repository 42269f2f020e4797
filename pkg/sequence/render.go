// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package sequence

import (
	"fmt"
	"strings"

	"github.com/rvstress/seqgen/pkg/riscv"
	"github.com/rvstress/seqgen/pkg/riscv/illegal"
)

// LabelStrLen is the width of the label column in the rendered text.
const LabelStrLen = 18

// FormatLabel pads label to the label column.
func FormatLabel(label string) string {
	if len(label) >= LabelStrLen {
		return label + " "
	}
	return label + strings.Repeat(" ", LabelStrLen-len(label))
}

// containsMain reports whether the label names the main program.
func containsMain(label string) bool {
	return strings.Contains(label, "main")
}

// insnText renders a single instruction. Instructions marked illegal/HINT
// are replaced with raw patterns of the same width.
func (s *Sequence) insnText(insn *riscv.Insn) (string, error) {
	var kind illegal.Kind
	switch {
	case insn.Illegal && insn.Compressed:
		kind = illegal.IllegalCompressed
	case insn.Illegal:
		kind = illegal.Illegal
	case insn.Hint:
		kind = illegal.Hint
	default:
		return insn.Asm(), nil
	}
	p, err := s.collab.Patterns.Next(s.r, kind)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	if p.Size != insn.Size() {
		return "", fmt.Errorf("%w: %v pattern of %v bytes replaces %v (%v bytes)",
			ErrEncoding, kind, p.Size, insn, insn.Size())
	}
	return p.Directive() + " # " + p.Comment, nil
}
