// Copyright 2016 syzkaller project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to standard log package with some extensions:
//   - verbosity levels shared by all generator packages
//   - ability to cache recent output in memory (used to attach generation
//     history to fatal errors)
//   - optional per-sequence prefixes
package log

import (
	"bytes"
	"flag"
	"fmt"
	golog "log"
	"sync"
	"time"
)

var (
	flagV        = flag.Int("vv", 0, "verbosity")
	mu           sync.Mutex
	cacheMem     int
	cacheMaxMem  int
	cachePos     int
	cacheEntries []string
	prependTime  = true // for testing
)

// EnableLogCaching enables in memory caching of log output.
// Caches up to maxLines, but no more than maxMem bytes.
// Cached output can later be queried with CachedLogOutput.
func EnableLogCaching(maxLines, maxMem int) error {
	mu.Lock()
	defer mu.Unlock()
	if cacheEntries != nil {
		return fmt.Errorf("log caching is already enabled")
	}
	if maxLines < 1 || maxMem < 1 {
		return fmt.Errorf("invalid log cache size: lines=%v mem=%v", maxLines, maxMem)
	}
	cacheMaxMem = maxMem
	cacheEntries = make([]string, maxLines)
	return nil
}

// CachedLogOutput retrieves cached log output.
func CachedLogOutput() string {
	mu.Lock()
	defer mu.Unlock()
	buf := new(bytes.Buffer)
	for i := range cacheEntries {
		pos := (cachePos + i) % len(cacheEntries)
		if cacheEntries[pos] == "" {
			continue
		}
		buf.WriteString(cacheEntries[pos])
		buf.WriteByte('\n')
	}
	return buf.String()
}

// V reports whether messages at verbosity v are printed.
// Use it to avoid formatting expensive arguments (e.g. instruction text).
func V(v int) bool {
	return v <= *flagV
}

// SetVerbosity overrides the -vv flag value.
func SetVerbosity(v int) {
	mu.Lock()
	defer mu.Unlock()
	*flagV = v
}

func Logf(v int, msg string, args ...any) {
	mu.Lock()
	doLog := v <= *flagV
	if cacheEntries != nil && v <= 1 {
		cacheLocked(fmt.Sprintf(msg, args...))
	}
	mu.Unlock()

	if doLog {
		golog.Printf(msg, args...)
	}
}

func cacheLocked(entry string) {
	cacheMem -= len(cacheEntries[cachePos])
	if prependTime {
		entry = time.Now().Format("2006/01/02 15:04:05 ") + entry
	}
	cacheEntries[cachePos] = entry
	cacheMem += len(entry)
	cachePos++
	if cachePos == len(cacheEntries) {
		cachePos = 0
	}
	for i := 0; i < len(cacheEntries)-1 && cacheMem > cacheMaxMem; i++ {
		pos := (cachePos + i) % len(cacheEntries)
		cacheMem -= len(cacheEntries[pos])
		cacheEntries[pos] = ""
	}
}

// Prefixed returns a logger that prepends prefix to every message,
// e.g. the owning program name.
func Prefixed(prefix string) Logger {
	return Logger(prefix)
}

type Logger string

func (l Logger) Logf(v int, msg string, args ...any) {
	if l == "" {
		Logf(v, msg, args...)
		return
	}
	Logf(v, "%v: "+msg, append([]any{string(l)}, args...)...)
}

type VerboseWriter int

func (w VerboseWriter) Write(data []byte) (int, error) {
	Logf(int(w), "%s", data)
	return len(data), nil
}
