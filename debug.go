// go-nrflite
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-nrflite.
//
// go-nrflite is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-nrflite is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-nrflite; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package nrflite

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ZaparooProject/go-nrflite/internal/syncutil"
)

// Debug output state, guarded by debugMu.
var (
	debugMu      syncutil.Mutex
	debugEnabled           = os.Getenv("NRFLITE_DEBUG") != "" || os.Getenv("DEBUG") != ""
	debugOutput  io.Writer = os.Stdout
)

// Debugf logs a driver event. It always goes to the session log when one is
// open, and to the console only when debugging is enabled.
func Debugf(format string, args ...any) {
	logDebug(fmt.Sprintf(format, args...))
}

// Debugln is Debugf with fmt.Sprintln formatting.
func Debugln(args ...any) {
	logDebug(strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

func logDebug(message string) {
	debugMu.Lock()
	defer debugMu.Unlock()

	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}
	if debugEnabled {
		_, _ = fmt.Fprintf(debugOutput, "DEBUG: %s\n", message)
	}
}

// SetDebugEnabled turns console debug output on or off, overriding the
// NRFLITE_DEBUG and DEBUG environment variables.
func SetDebugEnabled(enabled bool) {
	debugMu.Lock()
	debugEnabled = enabled
	debugMu.Unlock()
}

// SetDebugOutput redirects console debug output, which defaults to stdout.
func SetDebugOutput(w io.Writer) {
	debugMu.Lock()
	debugOutput = w
	debugMu.Unlock()
}
