// Copyright 2020 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package tool

import (
	"errors"
	"fmt"
	"strings"
)

// CfgsFlag allows passing a list of configuration files to the same flag and
// provides parsing utilities. Later files override values from earlier ones.
type CfgsFlag []string

// String correctly converts the flag values into a string which is required to
// parse them afterwards.
func (cfgs *CfgsFlag) String() string {
	return fmt.Sprint(*cfgs)
}

// Set is used by flag.Parse to correctly parse the command line arguments.
func (cfgs *CfgsFlag) Set(value string) error {
	if len(*cfgs) > 0 {
		return errors.New("configs flag were already set")
	}
	for _, cfg := range strings.Split(value, ",") {
		cfg = strings.TrimSpace(cfg)
		if cfg == "" {
			continue
		}
		*cfgs = append(*cfgs, cfg)
	}
	return nil
}

// Type is used by pflag to describe the flag value in usage messages.
func (cfgs *CfgsFlag) Type() string {
	return "configs"
}
