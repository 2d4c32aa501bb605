package parser

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/August26/proxyscan/internal/iprange"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenKind tags a validated scan token.
type TokenKind int

const (
	CIDRToken TokenKind = iota + 1
	RangeToken
)

func (k TokenKind) String() string {
	switch k {
	case CIDRToken:
		return "cidr"
	case RangeToken:
		return "range"
	default:
		return "unknown"
	}
}

// Token is one user-supplied scan target that has already been validated.
// Supported forms:
//
//	a.b.c.d/n
//	a.b.c.d-e.f.g.h
type Token struct {
	Kind TokenKind
	Raw  string

	rng iprange.Range
}

// Resolve returns the address range covered by the token.
func (t Token) Resolve() (iprange.Range, error) {
	if t.Kind == 0 {
		return iprange.Range{}, fmt.Errorf("%w: unparsed token %q", ErrInvalidToken, t.Raw)
	}
	return t.rng, nil
}

func (t Token) String() string {
	return t.Raw
}

// ParseToken validates raw and tags it as a CIDR or range token.
func ParseToken(raw string) (Token, error) {
	raw = strings.TrimSpace(raw)

	switch {
	case strings.Contains(raw, "/"):
		c, err := iprange.ParseCIDR(raw)
		if err != nil {
			return Token{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return Token{Kind: CIDRToken, Raw: raw, rng: c.Range()}, nil

	case strings.Contains(raw, "-"):
		start, end, _ := strings.Cut(raw, "-")
		r, err := iprange.ParseBounds(start, end)
		if err != nil {
			return Token{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return Token{Kind: RangeToken, Raw: raw, rng: r}, nil

	default:
		return Token{}, fmt.Errorf("%w: %q is neither a cidr nor an ip range", ErrInvalidToken, raw)
	}
}

// ValidateToken reports whether raw is an acceptable scan token.
func ValidateToken(raw string) bool {
	_, err := ParseToken(raw)
	return err == nil
}

// ParseBatch splits text on whitespace and parses every token. A single
// invalid token rejects the whole batch.
func ParseBatch(text string) ([]Token, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidToken)
	}

	out := make([]Token, 0, len(fields))
	for _, f := range fields {
		tok, err := ParseToken(f)
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

// LoadFromFile reads scan tokens from a file. Each line may hold several
// whitespace-separated tokens.
//
// Empty lines and lines starting with '#' are ignored. Any invalid token
// fails the whole file.
func LoadFromFile(path string) ([]Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	var out []Token
	lineNo := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		toks, err := ParseBatch(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, toks...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan input file: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no tokens in %s", ErrInvalidToken, path)
	}
	return out, nil
}
