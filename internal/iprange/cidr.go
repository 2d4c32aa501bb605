package iprange

import (
	"fmt"
	"strconv"
	"strings"
)

// CIDRBlock is a base address plus a prefix length in [0,32].
type CIDRBlock struct {
	Base   Address
	Prefix int
}

// ParseCIDR parses "a.b.c.d/n". The base does not need to be aligned to the
// prefix; host bits are cleared by Range.
func ParseCIDR(text string) (CIDRBlock, error) {
	if strings.Count(text, "/") != 1 {
		return CIDRBlock{}, fmt.Errorf("%w: %q: want exactly one '/'", ErrInvalidCIDR, text)
	}
	addrPart, prefixPart, _ := strings.Cut(text, "/")

	base, err := ParseAddress(addrPart)
	if err != nil {
		return CIDRBlock{}, fmt.Errorf("%w: %q: %v", ErrInvalidCIDR, text, err)
	}

	if prefixPart == "" || !isDigits(prefixPart) {
		return CIDRBlock{}, fmt.Errorf("%w: %q: bad prefix %q", ErrInvalidCIDR, text, prefixPart)
	}
	prefix, err := strconv.Atoi(prefixPart)
	if err != nil || prefix < 0 || prefix > 32 {
		return CIDRBlock{}, fmt.Errorf("%w: %q: prefix %q not in [0,32]", ErrInvalidCIDR, text, prefixPart)
	}

	return CIDRBlock{Base: base, Prefix: prefix}, nil
}

// ValidateCIDR reports whether text is a well-formed CIDR literal.
func ValidateCIDR(text string) bool {
	_, err := ParseCIDR(text)
	return err == nil
}

// Mask returns the network mask for the block's prefix. A zero prefix yields
// a zero mask; shifting a uint32 by 32 is defined in Go but is kept explicit.
func (c CIDRBlock) Mask() uint32 {
	if c.Prefix <= 0 {
		return 0
	}
	if c.Prefix >= 32 {
		return 0xFFFFFFFF
	}
	return uint32(0xFFFFFFFF) << (32 - c.Prefix)
}

// Range returns the network..broadcast span covered by the block.
func (c CIDRBlock) Range() Range {
	return FromCIDR(c)
}

func (c CIDRBlock) String() string {
	return c.Base.String() + "/" + strconv.Itoa(c.Prefix)
}
