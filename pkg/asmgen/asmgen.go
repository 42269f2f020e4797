// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package asmgen assembles a complete test program from instruction sequences:
// the main program, sub-programs connected by a random acyclic call graph,
// and the boot code, trap handler and data sections around them.
package asmgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"

	"github.com/rvstress/seqgen/pkg/gencfg"
	"github.com/rvstress/seqgen/pkg/log"
	"github.com/rvstress/seqgen/pkg/riscv/illegal"
	"github.com/rvstress/seqgen/pkg/sequence"
	"github.com/rvstress/seqgen/pkg/stat"
	"github.com/rvstress/seqgen/pkg/stream"
	"golang.org/x/sync/errgroup"
)

const MainLabel = "main"

// maxJumpAttempts bounds the number of jump points tried per call.
const maxJumpAttempts = 10

var (
	statSequences = stat.New("sequences", "Generated instruction sequences",
		stat.Console, stat.Prometheus("seqgen_sequences"))
	statInsns = stat.New("instructions", "Generated instructions",
		stat.Console, stat.Prometheus("seqgen_instructions"))
	statBranches = stat.New("branches", "Resolved forward branches",
		stat.Console, stat.Prometheus("seqgen_branches"))
	statBranchOffset = stat.New("branch offset", "Byte distance of forward branches",
		stat.Distribution{})
	statIllegal = stat.New("illegal", "Illegal instruction patterns (marked and injected)",
		stat.Console, stat.Prometheus("seqgen_illegal"))
	statHint = stat.New("hint", "HINT instruction patterns (marked and injected)",
		stat.Console, stat.Prometheus("seqgen_hint"))
	statCalls = stat.New("calls", "Jumps between programs", stat.Prometheus("seqgen_calls"))
)

// Call is an edge of the call graph.
type Call struct {
	From  string
	To    string
	Index int // position of the jump block in the caller
}

type Program struct {
	Seed  int64
	Main  *sequence.Sequence
	Subs  []*sequence.Sequence
	Calls []Call
	Text  []byte
}

// Sequences returns main followed by all sub-programs.
func (p *Program) Sequences() []*sequence.Sequence {
	return append([]*sequence.Sequence{p.Main}, p.Subs...)
}

// Generate builds a complete program from cfg. Output depends only on cfg and seed.
func Generate(ctx context.Context, cfg *gencfg.Config, seed int64) (*Program, error) {
	r := rand.New(rand.NewSource(seed))
	gen := stream.NewGenerator(cfg)
	collab := sequence.Collaborators{
		Body:     gen,
		Jump:     gen,
		Patterns: illegal.NewGenerator(cfg.Arch),
	}
	kinds, err := stream.SortedKinds(cfg.DirectedStreams)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sequence.ErrConfig, err)
	}
	if cfg.NoLoadStore {
		kinds = without(kinds, stream.KindLoadStore)
	}
	labels := []string{MainLabel}
	for i := 1; i <= cfg.NumOfSubProgram; i++ {
		labels = append(labels, fmt.Sprintf("sub_%v", i))
	}
	// Seeds are drawn upfront, so the result does not depend on goroutine scheduling.
	seeds := make([]int64, len(labels))
	for i := range seeds {
		seeds[i] = r.Int63()
	}
	log.Logf(0, "generating %v programs for %v, seed %v", len(labels), cfg.Target, seed)
	seqs := make([]*sequence.Sequence, len(labels))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, label := range labels {
		i, label := i, label
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rs := rand.New(rand.NewSource(seeds[i]))
			s, err := sequence.New(cfg, collab, rs, label, i == 0)
			if err != nil {
				return err
			}
			if err := s.Generate(); err != nil {
				return err
			}
			for _, kind := range kinds {
				block, err := gen.NewDirected(rs, kind)
				if err != nil {
					return fmt.Errorf("%w: %v: %w", sequence.ErrConstraint, label, err)
				}
				if err := s.AddDirected(block); err != nil {
					return err
				}
			}
			if err := s.PostProcess(); err != nil {
				return err
			}
			seqs[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p := &Program{
		Seed: seed,
		Main: seqs[0],
		Subs: seqs[1:],
	}
	if err := p.callGraph(r); err != nil {
		return nil, err
	}
	total := 0
	for _, s := range p.Sequences() {
		if err := s.Render(false); err != nil {
			return nil, err
		}
		if err := s.InjectIllegalHint(); err != nil {
			return nil, err
		}
		record(s)
		total += s.Stats.Insns
	}
	p.Text = render(cfg, p)
	log.Logf(0, "generated %v instructions", total)
	return p, nil
}

// callGraph connects every sub-program to a caller with a lower number (or main),
// so the graph is acyclic.
func (p *Program) callGraph(r *rand.Rand) error {
	seqs := p.Sequences()
	for i := 1; i < len(seqs); i++ {
		caller, callee := seqs[r.Intn(i)], seqs[i]
		idx, err := call(r, caller, callee.Label)
		if err != nil {
			return err
		}
		p.Calls = append(p.Calls, Call{From: caller.Label, To: callee.Label, Index: idx})
		statCalls.Add(1)
	}
	return nil
}

// call inserts a jump to target at a random jump point of caller and returns the point.
func call(r *rand.Rand, caller *sequence.Sequence, target string) (int, error) {
	var err error
	for attempt := 0; attempt < maxJumpAttempts; attempt++ {
		points := caller.JumpPoints()
		if len(points) == 0 {
			return 0, fmt.Errorf("%w: no jump points in %v", sequence.ErrConstraint, caller.Label)
		}
		idx := points[r.Intn(len(points))]
		err = caller.InsertJumpInsn(target, idx)
		if err == nil {
			return idx, nil
		}
		if !errors.Is(err, sequence.ErrConstraint) {
			return 0, err
		}
		log.Logf(1, "%v: %v", caller.Label, err)
	}
	return 0, err
}

func record(s *sequence.Sequence) {
	statSequences.Add(1)
	statInsns.Add(s.Stats.Insns)
	statBranches.Add(s.Stats.Branches)
	statIllegal.Add(s.Stats.MarkedIllegal + s.Stats.InjectedIllegal)
	statHint.Add(s.Stats.MarkedHint + s.Stats.InjectedHint)
	for _, offset := range s.Stats.BranchOffsets {
		statBranchOffset.Add(int(offset))
	}
}

func without(kinds []stream.Kind, kind stream.Kind) []stream.Kind {
	var res []stream.Kind
	for _, k := range kinds {
		if k != kind {
			res = append(res, k)
		}
	}
	return res
}
