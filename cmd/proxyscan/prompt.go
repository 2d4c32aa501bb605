package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/August26/proxyscan/internal/parser"
)

const promptText = "enter CIDR blocks or IP ranges (a.b.c.d/n or a.b.c.d-e.f.g.h): "

// promptTokens asks until a line where every token validates. EOF before
// that is an error.
func promptTokens(in io.Reader, out io.Writer) ([]parser.Token, error) {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptText)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("read input: %w", err)
			}
			return nil, errors.New("no scan targets given")
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		toks, err := parser.ParseBatch(line)
		if err != nil {
			fmt.Fprintln(out, "invalid CIDR or IP range:", err)
			continue
		}
		return toks, nil
	}
}
