// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chainmakers/multisigtx-cli/internal/zero"
	"golang.org/x/term"
)

// ErrNoInput is returned when the input ends before a non-empty secret was
// entered.
var ErrNoInput = errors.New("no input")

var (
	stdinMtx  sync.Mutex
	stdinFile *os.File
	stdin     *bufio.Reader
)

// stdinReader returns the reader shared by all prompts reading a non-terminal
// stdin, so input buffered by one prompt remains available to the next.
func stdinReader() *bufio.Reader {
	stdinMtx.Lock()
	defer stdinMtx.Unlock()

	if stdin == nil || stdinFile != os.Stdin {
		stdinFile = os.Stdin
		stdin = bufio.NewReader(os.Stdin)
	}
	return stdin
}

// ProvideSecret prompts on stderr for a secret such as a WIF private key or
// an RPC password.  When stdin is a terminal the input is not echoed,
// otherwise a single line is read from stdin.
func ProvideSecret(what string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readSecret(stdinReader())
	}

	for {
		fmt.Fprintf(os.Stderr, "Enter %s: ", what)
		secret, err := term.ReadPassword(fd)
		fmt.Fprint(os.Stderr, "\n")
		if err != nil {
			return "", err
		}
		s := strings.TrimSpace(string(secret))
		zero.Bytes(secret)
		if s == "" {
			continue
		}
		return s, nil
	}
}

// readSecret reads the first non-empty line from r.
func readSecret(r *bufio.Reader) (string, error) {
	for {
		line, err := r.ReadString('\n')
		s := strings.TrimSpace(line)
		if s != "" {
			return s, nil
		}
		if err == io.EOF {
			return "", ErrNoInput
		}
		if err != nil {
			return "", err
		}
	}
}
