// Copyright 2021 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeJSONData(t *testing.T) {
	tests := []struct {
		name  string
		left  string
		right string
		want  string
	}{
		{
			name:  "override",
			left:  `{"instr_cnt":100,"max_branch_step":20}`,
			right: `{"max_branch_step":10,"seed":4}`,
			want:  `{"instr_cnt":100,"max_branch_step":10,"seed":4}`,
		},
		{
			name:  "nested",
			left:  `{"directed_streams":{"hazard":1,"load_store":2}}`,
			right: `{"directed_streams":{"load_store":0}}`,
			want:  `{"directed_streams":{"hazard":1,"load_store":0}}`,
		},
		{
			name:  "empty left",
			left:  `{}`,
			right: `{"directed_streams":{"hazard":3}}`,
			want:  `{"directed_streams":{"hazard":3}}`,
		},
		{
			name:  "empty right",
			left:  `{"directed_streams":{"hazard":3}}`,
			right: ``,
			want:  `{"directed_streams":{"hazard":3}}`,
		},
		{
			name:  "lists are replaced",
			left:  `{"reserved_regs":["tp","sp"]}`,
			right: "# override\n{\"reserved_regs\":[\"gp\"]}",
			want:  `{"reserved_regs":["gp"]}`,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res, err := MergeJSONData([]byte(test.left), []byte(test.right))
			require.NoError(t, err)
			assert.JSONEq(t, test.want, string(res))
		})
	}
	_, err := MergeJSONData([]byte(`[]`), nil)
	assert.Error(t, err)
	_, err = MergeJSONData([]byte(`{}`), []byte(`{`))
	assert.Error(t, err)
}

// YAML overlays are converted to JSON before they are merged.
func TestLoadFilesMergeYAML(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"base.json":  `{"seed": 1, "target": "rv64imc", "stack": {"name": "user_stack", "size": 4096}}`,
		"stack.yaml": "stack:\n  size: 8192\n",
		"regs.yml":   "# keep sp free\nreserved_regs: [tp, gp]\n",
	}
	var names []string
	for _, name := range []string{"base.json", "stack.yaml", "regs.yml"} {
		file := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(file, []byte(files[name]), 0644))
		names = append(names, file)
	}
	var cfg testConfig
	require.NoError(t, LoadFiles(names, &cfg))
	assert.Equal(t, testConfig{
		Seed:     1,
		Target:   "rv64imc",
		Reserved: []string{"tp", "gp"},
		Stack:    &testRegion{Name: "user_stack", Size: 8192},
	}, cfg)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("stack: [\n"), 0644))
	assert.Error(t, LoadFiles([]string{names[0], bad}, &cfg))
	assert.Error(t, LoadFiles(nil, &cfg))
}
