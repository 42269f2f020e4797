// Copyright 2026 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package illegal

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/rvstress/seqgen/pkg/riscv"
	"github.com/rvstress/seqgen/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	for name, target := range riscv.Targets {
		t.Run(name, func(t *testing.T) {
			testGenerate(t, target)
		})
	}
}

func testGenerate(t *testing.T, target *riscv.Target) {
	r := rand.New(testutil.RandSource(t))
	gen := NewGenerator(target)
	comments := make(map[Kind]map[string]bool)
	for i := 0; i < testutil.IterCount()*10; i++ {
		for _, kind := range []Kind{Illegal, IllegalCompressed, Hint} {
			p, err := gen.Next(r, kind)
			if kind != Illegal && !target.Compressed {
				require.Error(t, err)
				continue
			}
			require.NoError(t, err)
			require.NotEmpty(t, p.Comment)
			if comments[kind] == nil {
				comments[kind] = make(map[string]bool)
			}
			comments[kind][p.Comment] = true
			switch kind {
			case Illegal:
				require.Equal(t, 4, p.Size)
				require.Equal(t, uint32(3), p.Bits&3, "%v", p)
				checkIllegal(t, target, p)
			default:
				require.Equal(t, 2, p.Size)
				require.LessOrEqual(t, p.Bits, uint32(0xffff), "%v", p)
				require.NotEqual(t, uint32(3), p.Bits&3, "%v", p)
			}
		}
	}
	if target.Compressed {
		assert.Greater(t, len(comments[Hint]), 1)
		assert.Greater(t, len(comments[IllegalCompressed]), 1)
	}
	assert.Len(t, comments[Illegal], 4)
}

func checkIllegal(t *testing.T, target *riscv.Target, p Pattern) {
	opcode := p.Bits & 0x7f
	funct3 := p.Bits >> 12 & 7
	switch p.Comment {
	case "illegal opcode":
		assert.False(t, legalOpcodes[opcode], "%v", p)
		if target.XLen == 64 {
			assert.False(t, rv64Opcodes[opcode], "%v", p)
		}
	case "illegal func3":
		switch opcode {
		case opJalr:
			assert.NotZero(t, funct3)
		case opBranch:
			assert.Contains(t, []uint32{2, 3}, funct3)
		case opLoad:
			assert.Contains(t, []uint32{3, 6, 7}, funct3)
		case opStore:
			assert.GreaterOrEqual(t, funct3, uint32(3))
		case opMiscMem:
			assert.GreaterOrEqual(t, funct3, uint32(3))
		default:
			t.Fatalf("unexpected opcode: %v", p)
		}
	case "illegal func7":
		assert.Equal(t, uint32(opOp), opcode)
		assert.NotContains(t, []uint32{0, 1, 0x20}, p.Bits>>25)
	case "illegal system instruction":
		assert.Equal(t, uint32(opSystem), opcode)
		assert.Zero(t, funct3)
	}
}

func TestDirective(t *testing.T) {
	p := Pattern{Bits: 0x0000002b, Size: 4, Comment: "illegal opcode"}
	assert.Equal(t, ".4byte 0x0000002b", p.Directive())
	assert.Equal(t, ".4byte 0x0000002b # illegal opcode", p.String())
	p = Pattern{Bits: 0x8002, Size: 2, Comment: "reserved c.jr rs1=0"}
	assert.Equal(t, ".2byte 0x8002", p.Directive())
}

func TestRV32Classes(t *testing.T) {
	gen := NewGenerator(riscv.Targets["rv32imc"])
	for _, cls := range gen.classes[IllegalCompressed] {
		assert.False(t, strings.Contains(cls.name, "c.ldsp") || strings.Contains(cls.name, "c.addiw"), cls.name)
	}
	assert.Equal(t, "hint", Hint.String())
}

func TestKnownEncodings(t *testing.T) {
	gen := &generator{target: riscv.Targets["rv64imc"], r: rand.New(rand.NewSource(0))}
	gen.cr(8, 0, 0)
	assert.Equal(t, uint32(0x8002), gen.bits) // c.jr x0
	gen.ci(0, 0, 1, 1)
	assert.Equal(t, uint32(0x0005), gen.bits) // c.nop 1
	gen.ci(3, uint32(riscv.SP), 0, 1)
	assert.Equal(t, uint32(0x6101), gen.bits) // c.addi16sp sp, 0
}
