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
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ZaparooProject/go-nrflite/internal/syncutil"
)

// Session log state, guarded by debugMu.
var (
	sessionLogFile   *os.File
	sessionLogPath   string
	sessionLogWriter io.Writer
)

// InitSessionLog opens a timestamped log file in dir (the current directory
// when empty) that receives every debug message, whether or not console
// output is enabled. It returns the file path.
func InitSessionLog(dir string) (string, error) {
	name := fmt.Sprintf("nrflite_%s.log", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)

	logFile, err := os.Create(path) //nolint:gosec // path is built from a timestamp
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}

	debugMu.Lock()
	defer debugMu.Unlock()
	if sessionLogFile != nil {
		_ = sessionLogFile.Close()
	}
	sessionLogFile = logFile
	sessionLogPath = path
	sessionLogWriter = logFile
	writeSessionHeader(logFile)

	return path, nil
}

// CloseSessionLog ends the session log, if one is open.
func CloseSessionLog() error {
	debugMu.Lock()
	defer debugMu.Unlock()

	if sessionLogFile == nil {
		return nil
	}
	_, _ = fmt.Fprintf(sessionLogWriter, "\n%s === Session ended ===\n", time.Now().Format("15:04:05.000"))

	err := sessionLogFile.Close()
	sessionLogFile = nil
	sessionLogPath = ""
	sessionLogWriter = nil
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the open session log's path, or "".
func GetSessionLogPath() string {
	debugMu.Lock()
	defer debugMu.Unlock()
	return sessionLogPath
}

func writeSessionHeader(w io.Writer) {
	_, _ = fmt.Fprint(w, "=== nRF24L01 Debug Session Log ===\n")
	_, _ = fmt.Fprintf(w, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(w, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(w, "Go Version: %s\n", runtime.Version())
	_, _ = fmt.Fprintf(w, "Deadlock detection: %t\n", syncutil.DeadlockDetection())
	_, _ = fmt.Fprintf(w, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = fmt.Fprint(w, "===================================\n\n")
}
