package models

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"

	"github.com/dustin/go-humanize"
)

// ByteCount is an immutable, non-negative byte count of unbounded size.
//
// The value is kept as its canonical decimal form so two equal counts compare
// equal with ==, which keeps FileRecord comparable. The zero value is 0.
type ByteCount struct {
	digits string
}

// NewByteCount returns a ByteCount for n.
func NewByteCount(n uint64) ByteCount {
	if n == 0 {
		return ByteCount{}
	}
	return ByteCount{digits: strconv.FormatUint(n, 10)}
}

// ByteCountFromBig converts b. Negative values are rejected with ErrInvalidSize.
func ByteCountFromBig(b *big.Int) (ByteCount, error) {
	if b == nil {
		return ByteCount{}, nil
	}
	if b.Sign() < 0 {
		return ByteCount{}, fmt.Errorf("%w: %s is negative", ErrInvalidSize, b.String())
	}
	if b.Sign() == 0 {
		return ByteCount{}, nil
	}
	return ByteCount{digits: b.String()}, nil
}

// ParseByteCount parses a base-10 integer such as "204800" or
// "18446744073709551616". Signs, fractions and exponents are rejected.
func ParseByteCount(s string) (ByteCount, error) {
	if s == "" {
		return ByteCount{}, fmt.Errorf("%w: empty", ErrInvalidSize)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return ByteCount{}, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidSize, s)
		}
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return ByteCount{}, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return ByteCountFromBig(b)
}

// Big returns a fresh copy of the value; callers may mutate it freely.
func (c ByteCount) Big() *big.Int {
	if c.digits == "" {
		return new(big.Int)
	}
	b, _ := new(big.Int).SetString(c.digits, 10)
	return b
}

// Uint64 returns the value when it fits in 64 bits.
func (c ByteCount) Uint64() (uint64, bool) {
	b := c.Big()
	if !b.IsUint64() {
		return 0, false
	}
	return b.Uint64(), true
}

// IsZero reports whether the count is 0.
func (c ByteCount) IsZero() bool { return c.digits == "" }

// Cmp compares c and o and returns -1, 0 or +1.
func (c ByteCount) Cmp(o ByteCount) int {
	if len(c.digits) != len(o.digits) {
		if len(c.digits) < len(o.digits) {
			return -1
		}
		return 1
	}
	switch {
	case c.digits < o.digits:
		return -1
	case c.digits > o.digits:
		return 1
	}
	return 0
}

// String returns the decimal form.
func (c ByteCount) String() string {
	if c.digits == "" {
		return "0"
	}
	return c.digits
}

// Human returns a short display form such as "205 kB".
func (c ByteCount) Human() string {
	return humanize.BigBytes(c.Big())
}

// MarshalJSON encodes the count as a bare JSON number of any length.
func (c ByteCount) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (c *ByteCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: null", ErrInvalidSize)
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSize, err)
		}
		s = unq
	}
	parsed, err := ParseByteCount(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
