// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stream

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rvstress/seqgen/pkg/gencfg"
	"github.com/rvstress/seqgen/pkg/riscv"
	"github.com/rvstress/seqgen/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, data string) *gencfg.Config {
	cfg, err := gencfg.LoadData([]byte(data))
	require.NoError(t, err)
	return cfg
}

func checkOperands(t *testing.T, cfg *gencfg.Config, insn *riscv.Insn, reserved riscv.RegSet) {
	tmpl := insn.Template
	require.NotNil(t, tmpl)
	require.True(t, tmpl.Available(cfg.Arch), insn.String())
	if writesRd(tmpl.Format) {
		assert.False(t, reserved.Has(insn.Rd), "writes reserved %v: %v", insn.Rd, insn)
	}
	if tmpl.CompressedRegs {
		assert.True(t, insn.Rd.Compressible() || !writesRd(tmpl.Format), insn.String())
	}
	if tmpl.RdNonZero {
		assert.NotEqual(t, riscv.Zero, insn.Rd, insn.String())
	}
	if tmpl.ImmNonZero {
		assert.NotZero(t, insn.Imm, insn.String())
	}
	if tmpl.Imm == riscv.ImmSigned || tmpl.Imm == riscv.ImmUnsigned || tmpl.Imm == riscv.ImmShamt {
		lo, hi := tmpl.ImmRange(cfg.Arch)
		assert.GreaterOrEqual(t, insn.Imm, lo, insn.String())
		assert.LessOrEqual(t, insn.Imm, hi, insn.String())
		assert.Zero(t, insn.Imm%tmpl.ImmScale, insn.String())
	}
}

func TestBody(t *testing.T) {
	for _, target := range []string{"rv32i", "rv32imc", "rv64imc"} {
		t.Run(target, func(t *testing.T) {
			cfg := testConfig(t, `{"target": "`+target+`", "no_ebreak": false}`)
			gen := NewGenerator(cfg)
			r := rand.New(testutil.RandSource(t))
			opts := Opts{ReservedRd: riscv.MakeRegSet(riscv.RA)}
			for i := 0; i < max(1, testutil.IterCount()/10); i++ {
				cnt := r.Intn(50)
				body := gen.Body(r, cnt, opts)
				require.Len(t, body, cnt)
				if cnt != 0 {
					assert.False(t, body[cnt-1].IsBranch())
				}
				for _, insn := range body {
					checkOperands(t, cfg, insn, cfg.Reserved.Union(opts.ReservedRd))
					assert.True(t, insn.HasLabel)
					assert.False(t, insn.Atomic)
					assert.NotEqual(t, riscv.CategoryJump, insn.Category)
					if insn.Compressed {
						assert.True(t, cfg.Compressed())
					}
					if insn.Category == riscv.CategoryLoad || insn.Category == riscv.CategoryStore {
						assert.Equal(t, cfg.TPReg, insn.Rs1)
						assert.False(t, insn.Compressed)
					}
				}
			}
		})
	}
}

func TestBodyOpts(t *testing.T) {
	cfg := testConfig(t, `{"no_ebreak": false, "no_ecall": false, "no_wfi": false}`)
	gen := NewGenerator(cfg)
	r := rand.New(testutil.RandSource(t))
	body := gen.Body(r, 2000, Opts{NoBranch: true, NoLoadStore: true, Debug: true})
	for _, insn := range body {
		switch insn.Category {
		case riscv.CategoryBranch, riscv.CategoryLoad, riscv.CategoryStore, riscv.CategorySystem:
			t.Fatalf("unexpected instruction %v", insn)
		}
	}
	pool := []riscv.Reg{riscv.A0, riscv.S1}
	body = gen.Body(r, 500, Opts{NoBranch: true, NoLoadStore: true, Regs: pool})
	for _, insn := range body {
		tmpl := insn.Template
		if writesRd(tmpl.Format) {
			assert.Contains(t, pool, insn.Rd, insn.String())
		}
		if readsRs1(tmpl.Format) {
			assert.Contains(t, pool, insn.Rs1, insn.String())
		}
		if readsRs2(tmpl.Format) {
			assert.Contains(t, pool, insn.Rs2, insn.String())
		}
	}
}

func TestBodyNoSystem(t *testing.T) {
	cfg := testConfig(t, `{"no_fence": true}`)
	gen := NewGenerator(cfg)
	for _, tmpl := range gen.templates {
		switch tmpl.Name {
		case "ebreak", "c.ebreak", "ecall", "wfi", "fence", "fence.i", "la", "li", "jal", "jalr", "c.j", "c.lw":
			t.Errorf("template %v is enabled", tmpl.Name)
		}
	}
}

func TestMix(t *testing.T) {
	r := rand.New(testutil.RandSource(t))
	mk := func(n int, name string) []*riscv.Insn {
		var list []*riscv.Insn
		for i := 0; i < n; i++ {
			insn := riscv.MustLookup(name).Make()
			insn.Imm = int64(i)
			list = append(list, insn)
		}
		return list
	}
	for i := 0; i < testutil.IterCount(); i++ {
		list, insert := mk(r.Intn(10), "addi"), mk(r.Intn(10), "xori")
		res := Mix(r, list, insert)
		require.Len(t, res, len(list)+len(insert))
		var got [2][]int64
		for _, insn := range res {
			if insn.Name == "addi" {
				got[0] = append(got[0], insn.Imm)
			} else {
				got[1] = append(got[1], insn.Imm)
			}
		}
		want := [2][]int64{}
		for i := range list {
			want[0] = append(want[0], int64(i))
		}
		for i := range insert {
			want[1] = append(want[1], int64(i))
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatal(diff)
		}
	}
}

func TestSplice(t *testing.T) {
	add := func(atomic bool) *riscv.Insn {
		insn := riscv.MustLookup("add").Make()
		insn.Atomic = atomic
		return insn
	}
	list := []*riscv.Insn{add(false), add(true), add(true), add(true), add(false), add(false)}
	if diff := cmp.Diff([]int{0, 1, 4, 5, 6}, SplicePoints(list, 0, len(list))); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]int{4, 5}, SplicePoints(list, 2, 5)); diff != "" {
		t.Fatal(diff)
	}
	block := []*riscv.Insn{add(true), add(true)}
	r := rand.New(testutil.RandSource(t))
	for i := 0; i < 100; i++ {
		res, err := Insert(r, list, block, 1, 5)
		require.NoError(t, err)
		require.Len(t, res, len(list)+2)
		pos := -1
		for j, insn := range res {
			if insn == block[0] {
				pos = j
			}
		}
		assert.Contains(t, []int{1, 4, 5}, pos)
		assert.Equal(t, block[1], res[pos+1])
	}
	_, err := Insert(r, list, block, 2, 3)
	assert.Error(t, err)
}

func TestDirected(t *testing.T) {
	for _, target := range []string{"rv32imc", "rv64i"} {
		t.Run(target, func(t *testing.T) {
			cfg := testConfig(t, `{"target": "`+target+`"}`)
			gen := NewGenerator(cfg)
			r := rand.New(testutil.RandSource(t))
			for i := 0; i < max(1, testutil.IterCount()/10); i++ {
				for kind := KindLoadStore; kind < kindLast; kind++ {
					block, err := gen.NewDirected(r, kind)
					require.NoError(t, err)
					require.NotEmpty(t, block)
					for _, insn := range block {
						assert.True(t, insn.Atomic)
						assert.False(t, insn.HasLabel)
						assert.False(t, insn.IsBranch())
						if insn.Name != "la" {
							checkOperands(t, cfg, insn, cfg.Reserved)
						}
					}
					assert.Equal(t, "start "+kind.String(), block[0].Comment)
					assert.Equal(t, "end "+kind.String(), block[len(block)-1].Comment)
					if kind == KindLoadStore {
						checkLoadStore(t, block)
					}
				}
			}
		})
	}
}

func checkLoadStore(t *testing.T, block []*riscv.Insn) {
	la := block[0]
	require.Equal(t, "la", la.Name)
	require.Equal(t, DataRegion, la.ImmText)
	base := la.Rd
	mem := 0
	for _, insn := range block[1:] {
		switch insn.Category {
		case riscv.CategoryLoad, riscv.CategoryStore:
			mem++
			assert.Equal(t, base, insn.Rs1)
			size := int64(accessSize(insn.Name))
			assert.Zero(t, insn.Imm%size)
			assert.GreaterOrEqual(t, insn.Imm, int64(0))
			assert.Less(t, insn.Imm+size, int64(DataRegionSize/2)+1)
			if insn.Category == riscv.CategoryLoad {
				assert.NotEqual(t, base, insn.Rd)
			}
		default:
			if writesRd(insn.Template.Format) {
				assert.NotEqual(t, base, insn.Rd, insn.String())
			}
		}
	}
	assert.GreaterOrEqual(t, mem, 10)
	assert.LessOrEqual(t, mem, 30)
}

func TestParseKind(t *testing.T) {
	kinds, err := SortedKinds(map[string]int{"hazard": 2, "load_store": 1})
	require.NoError(t, err)
	if diff := cmp.Diff([]Kind{KindLoadStore, KindHazard, KindHazard}, kinds); diff != "" {
		t.Fatal(diff)
	}
	_, err = SortedKinds(map[string]int{"loop": 1})
	assert.Error(t, err)
	_, err = NewGenerator(gencfg.Default()).NewDirected(rand.New(rand.NewSource(0)), kindLast)
	assert.Error(t, err)
}

func TestJump(t *testing.T) {
	for _, target := range []string{"rv32i", "rv64imc"} {
		t.Run(target, func(t *testing.T) {
			cfg := testConfig(t, `{"target": "`+target+`"}`)
			gen := NewGenerator(cfg)
			r := rand.New(testutil.RandSource(t))
			exit := []*riscv.Insn{riscv.MustLookup("addi").Make()}
			exit[0].Rd, exit[0].Rs1, exit[0].Imm = riscv.SP, riscv.SP, 16
			kinds := make(map[string]bool)
			for i := 0; i < 500; i++ {
				main := r.Intn(2) == 0
				req := JumpRequest{
					Target:      "sub_2",
					Label:       "sub_1",
					Index:       i,
					MainProgram: main,
				}
				if !main {
					req.StackExit = exit
				}
				block, err := gen.Jump(r, req)
				require.NoError(t, err)
				checkJump(t, cfg, req, block)
				jump := block[len(block)-1]
				kinds[jump.Name] = true
				if main {
					assert.Equal(t, "jalr", jump.Name)
				}
			}
			assert.True(t, kinds["jalr"])
			assert.Equal(t, cfg.Compressed(), kinds["c.jalr"])
		})
	}
}

func checkJump(t *testing.T, cfg *gencfg.Config, req JumpRequest, block []*riscv.Insn) {
	require.True(t, block[0].HasLabel)
	require.Equal(t, fmt.Sprintf("sub_1_j%v", req.Index), block[0].Label)
	for i, insn := range block {
		assert.True(t, insn.Atomic)
		if i != 0 {
			assert.False(t, insn.HasLabel)
		}
	}
	jump := block[len(block)-1]
	assert.True(t, strings.HasSuffix(jump.Asm(), "#jump sub_1 -> sub_2"), jump.Asm())
	switch jump.Name {
	case "jal":
		assert.Equal(t, "sub_2", jump.ImmText)
	case "jalr", "c.jalr":
		var la, addi *riscv.Insn
		for _, insn := range block {
			if insn.Name == "la" && insn.ImmText == "sub_2" {
				la = insn
			}
			if insn.Name == "addi" && insn.Rd == jump.Rs1 && insn.Rs1 == jump.Rs1 {
				addi = insn
			}
		}
		require.NotNil(t, la)
		require.NotNil(t, addi)
		assert.Equal(t, jump.Rs1, la.Rd)
		assert.Equal(t, -addi.Imm, jump.Imm)
		assert.NotEqual(t, cfg.RAReg, jump.Rs1)
		assert.False(t, cfg.Reserved.Has(jump.Rs1))
	default:
		t.Fatalf("unexpected jump %v", jump)
	}
	if jump.Name != "c.jalr" && jump.Rd == riscv.Zero {
		require.NotEmpty(t, req.StackExit)
		assert.Equal(t, req.StackExit[0].Asm(), block[0].Asm())
		assert.NotSame(t, req.StackExit[0], block[0])
	} else if jump.Name != "c.jalr" {
		assert.Equal(t, cfg.RAReg, jump.Rd)
	}
}
