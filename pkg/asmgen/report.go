// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package asmgen

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rvstress/seqgen/pkg/stat"
	"gopkg.in/yaml.v3"
)

// Report summarizes a generation run.
type Report struct {
	RunID    string          `yaml:"run_id"`
	Seed     int64           `yaml:"seed"`
	Target   string          `yaml:"target"`
	Programs []ProgramReport `yaml:"programs"`
	Calls    []Call          `yaml:"calls"`
	Stats    []stat.UI       `yaml:"stats,omitempty"`
}

type ProgramReport struct {
	Label           string `yaml:"label"`
	Insns           int    `yaml:"insns"`
	Lines           int    `yaml:"lines"`
	StackLen        int    `yaml:"stack_len,omitempty"`
	Labels          int    `yaml:"labels"`
	Branches        int    `yaml:"branches"`
	MarkedIllegal   int    `yaml:"marked_illegal,omitempty"`
	MarkedHint      int    `yaml:"marked_hint,omitempty"`
	InjectedIllegal int    `yaml:"injected_illegal,omitempty"`
	InjectedHint    int    `yaml:"injected_hint,omitempty"`
}

// Report returns the summary of the program. Every call gets a new run ID.
func (p *Program) Report(target string) *Report {
	rep := &Report{
		RunID:  uuid.NewString(),
		Seed:   p.Seed,
		Target: target,
		Calls:  p.Calls,
		Stats:  stat.Collect(stat.All),
	}
	for _, s := range p.Sequences() {
		rep.Programs = append(rep.Programs, ProgramReport{
			Label:           s.Label,
			Insns:           s.Stats.Insns,
			Lines:           len(s.Lines),
			StackLen:        s.StackLen,
			Labels:          s.Stats.Labels,
			Branches:        s.Stats.Branches,
			MarkedIllegal:   s.Stats.MarkedIllegal,
			MarkedHint:      s.Stats.MarkedHint,
			InjectedIllegal: s.Stats.InjectedIllegal,
			InjectedHint:    s.Stats.InjectedHint,
		})
	}
	return rep
}

func (rep *Report) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report: %w", err)
	}
	return data, nil
}
