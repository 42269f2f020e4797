// Copyright 2017 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package config loads generator configuration files.
// JSON files may contain comment lines starting with #, YAML files (.yaml/.yml)
// are converted to JSON first. Unknown fields are rejected in both cases.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/rvstress/seqgen/pkg/osutil"
	"sigs.k8s.io/yaml"
)

func LoadFile(filename string, cfg any) error {
	if filename == "" {
		return fmt.Errorf("no config file specified")
	}
	data, err := ReadFile(filename)
	if err != nil {
		return err
	}
	return LoadData(data, cfg)
}

// ReadFile reads the config file and returns its contents in JSON form.
func ReadFile(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if !isYAML(filename) {
		return data, nil
	}
	data, err = yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %v to json: %w", filename, err)
	}
	return data, nil
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

var commentRe = regexp.MustCompile(`(^|\n)\s*#[^\n]*`)

func LoadData(data []byte, cfg any) error {
	if typ := reflect.TypeOf(cfg); typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config type is not pointer to struct")
	}
	// Remove comment lines starting with #.
	data = commentRe.ReplaceAll(data, nil)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func SaveFile(filename string, cfg any) error {
	var data []byte
	var err error
	if isYAML(filename) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "\t")
	}
	if err != nil {
		return err
	}
	return osutil.WriteFile(filename, data)
}

// MergeJSONData overlays right on top of left. Nested objects are merged
// recursively, all other values in right replace values in left.
func MergeJSONData(left, right []byte) ([]byte, error) {
	vLeft := map[string]any{}
	if err := json.Unmarshal(left, &vLeft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal left side: %w", err)
	}
	if len(bytes.TrimSpace(right)) == 0 {
		return json.Marshal(vLeft)
	}
	vRight := map[string]any{}
	if err := json.Unmarshal(commentRe.ReplaceAll(right, nil), &vRight); err != nil {
		return nil, fmt.Errorf("failed to unmarshal right side: %w", err)
	}
	return json.Marshal(mergeRecursive(vLeft, vRight))
}

func mergeRecursive(left, right map[string]any) map[string]any {
	for key, val := range right {
		lObj, lok := left[key].(map[string]any)
		rObj, rok := val.(map[string]any)
		if lok && rok {
			left[key] = mergeRecursive(lObj, rObj)
			continue
		}
		left[key] = val
	}
	return left
}

// LoadFiles merges the given files in order (later files override earlier ones)
// and decodes the result into cfg.
func LoadFiles(filenames []string, cfg any) error {
	if len(filenames) == 0 {
		return fmt.Errorf("no config file specified")
	}
	merged := []byte("{}")
	for _, filename := range filenames {
		data, err := ReadFile(filename)
		if err != nil {
			return err
		}
		merged, err = MergeJSONData(merged, data)
		if err != nil {
			return fmt.Errorf("%v: %w", filename, err)
		}
	}
	return LoadData(merged, cfg)
}
