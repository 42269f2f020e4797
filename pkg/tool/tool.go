// Copyright 2020 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package tool contains various helper utilitites useful for implementation of command line tools.
package tool

import (
	"fmt"
	"io"
	"os"

	"github.com/rvstress/seqgen/pkg/log"
)

// Failf prints the message and the cached generation log (if caching is enabled) and exits.
func Failf(msg string, args ...any) {
	failf(os.Stderr, msg, args...)
	os.Exit(1)
}

func Fail(err error) {
	Failf("%v", err)
}

func failf(w io.Writer, msg string, args ...any) {
	fmt.Fprintf(w, msg+"\n", args...)
	if recent := log.CachedLogOutput(); recent != "" {
		fmt.Fprintf(w, "recent generation log:\n%s", recent)
	}
}
