package iprange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAddress reports malformed dotted-quad text or an octet
	// outside [0,255].
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidCIDR reports a bad prefix or a malformed address part.
	ErrInvalidCIDR = errors.New("invalid cidr")
	// ErrInvalidRange reports a malformed bound or a start after the end.
	ErrInvalidRange = errors.New("invalid range")
)

// Address is an IPv4 address held as a host-order uint32.
type Address uint32

// MaxAddress is 255.255.255.255.
const MaxAddress Address = 0xFFFFFFFF

// ParseAddress parses dotted-quad text such as "192.168.1.10".
// It requires exactly four decimal components, each in [0,255].
func ParseAddress(text string) (Address, error) {
	parts := strings.Split(text, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("%w: %q: want 4 octets, got %d", ErrInvalidAddress, text, len(parts))
	}

	var out uint32
	for _, p := range parts {
		if p == "" || len(p) > 3 || !isDigits(p) {
			return 0, fmt.Errorf("%w: %q: bad octet %q", ErrInvalidAddress, text, p)
		}
		n, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: octet %q out of range", ErrInvalidAddress, text, p)
		}
		out = out<<8 | uint32(n)
	}
	return Address(out), nil
}

// MustParseAddress is like ParseAddress but panics on error. Meant for tests
// and package-level constants.
func MustParseAddress(text string) Address {
	a, err := ParseAddress(text)
	if err != nil {
		panic(err)
	}
	return a
}

// FormatAddress renders a as four big-endian octets.
func FormatAddress(a Address) string {
	v := uint32(a)
	b := make([]byte, 0, 15)
	b = strconv.AppendUint(b, uint64(v>>24&0xFF), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64(v>>16&0xFF), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64(v>>8&0xFF), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64(v&0xFF), 10)
	return string(b)
}

func (a Address) String() string {
	return FormatAddress(a)
}

// isDigits rejects signs and spaces which strconv would otherwise accept or
// report with a less useful error.
func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
