// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package riscv

import (
	"fmt"
	"sort"
)

type Target struct {
	Name       string
	XLen       int  // register width in bits
	Compressed bool // C extension is implemented
	Mul        bool // M extension is implemented
	PageSize   uint64
}

// WordSize returns the register width in bytes.
func (t *Target) WordSize() int {
	return t.XLen / 8
}

var Targets = map[string]*Target{
	"rv32i": {
		XLen:     32,
		PageSize: 4 << 10,
	},
	"rv32imc": {
		XLen:       32,
		Compressed: true,
		Mul:        true,
		PageSize:   4 << 10,
	},
	"rv64i": {
		XLen:     64,
		PageSize: 4 << 10,
	},
	"rv64imc": {
		XLen:       64,
		Compressed: true,
		Mul:        true,
		PageSize:   4 << 10,
	},
}

func init() {
	for name, target := range Targets {
		target.Name = name
	}
}

func GetTarget(name string) (*Target, error) {
	target := Targets[name]
	if target == nil {
		var names []string
		for n := range Targets {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown target %q, supported: %v", name, names)
	}
	return target, nil
}
