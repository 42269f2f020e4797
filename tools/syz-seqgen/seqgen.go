// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// syz-seqgen generates a random RISC-V assembly test program.
//
//	syz-seqgen --config base.json,rv32.yaml --seed 42 --out test.S --report test.yaml
//
// Configuration files are merged in order, see pkg/gencfg for the fields.
// Environment variables SEQGEN_CONFIG and SEQGEN_OUT provide flag defaults.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rvstress/seqgen/pkg/asmgen"
	"github.com/rvstress/seqgen/pkg/config"
	"github.com/rvstress/seqgen/pkg/gencfg"
	"github.com/rvstress/seqgen/pkg/log"
	"github.com/rvstress/seqgen/pkg/osutil"
	"github.com/rvstress/seqgen/pkg/stat"
	"github.com/rvstress/seqgen/pkg/tool"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"github.com/xyproto/env/v2"
)

func main() {
	if err := log.EnableLogCaching(1000, 1<<20); err != nil {
		tool.Fail(err)
	}
	atexit.Register(printStats)
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		tool.Fail(err)
	}
	atexit.Exit(0)
}

type options struct {
	configs    tool.CfgsFlag
	seed       int64
	out        string
	report     string
	dumpConfig string
}

func newRootCmd() *cobra.Command {
	opts := new(options)
	cmd := &cobra.Command{
		Use:           "syz-seqgen",
		Short:         "Random RISC-V instruction sequence generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %v", args)
			}
			if len(opts.configs) == 0 {
				if def := env.Str("SEQGEN_CONFIG"); def != "" {
					if err := opts.configs.Set(def); err != nil {
						return err
					}
				}
			}
			return run(cmd.Context(), opts)
		},
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().Var(&opts.configs, "config", "comma-separated list of configuration files (json/yaml)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed (overrides config, 0 means time-based)")
	cmd.Flags().StringVar(&opts.out, "out", env.Str("SEQGEN_OUT", "riscv_test.S"), "output assembly file")
	cmd.Flags().StringVar(&opts.report, "report", "", "write yaml generation report to this file")
	cmd.Flags().StringVar(&opts.dumpConfig, "dump-config", "",
		"save the effective configuration to this file (json/yaml) and exit")
	// Brings in --vv from pkg/log.
	cmd.Flags().AddGoFlagSet(flag.CommandLine)
	return cmd
}

func run(ctx context.Context, opts *options) error {
	cfg := gencfg.Default()
	if len(opts.configs) != 0 {
		var err error
		if cfg, err = gencfg.LoadFiles(opts.configs); err != nil {
			return err
		}
	}
	if opts.dumpConfig != "" {
		return config.SaveFile(opts.dumpConfig, cfg)
	}
	seed := cfg.Seed
	if opts.seed != 0 {
		seed = opts.seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := asmgen.Generate(ctx, cfg, seed)
	if err != nil {
		return fmt.Errorf("generation failed (seed %v): %w", seed, err)
	}
	if err := osutil.WriteFile(opts.out, p.Text); err != nil {
		return err
	}
	log.Logf(0, "wrote %v (seed %v)", opts.out, seed)
	if opts.report != "" {
		data, err := p.Report(cfg.Target).Marshal()
		if err != nil {
			return err
		}
		if err := osutil.WriteFile(opts.report, data); err != nil {
			return err
		}
	}
	return nil
}

func printStats() {
	for _, st := range stat.Collect(stat.Console) {
		log.Logf(0, "%-20v: %v", st.Name, st.Value)
	}
}
