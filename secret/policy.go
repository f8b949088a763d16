package secret

import "fmt"

// SizePolicy bounds the length of a secret buffer. Fixed-size key kinds use
// Fixed; variable-size kinds use Range.
type SizePolicy struct {
	Min int
	Max int
}

// Fixed returns a policy that admits exactly n bytes.
func Fixed(n int) SizePolicy {
	return SizePolicy{Min: n, Max: n}
}

// Range returns a policy that admits between min and max bytes inclusive.
func Range(min, max int) SizePolicy {
	return SizePolicy{Min: min, Max: max}
}

// Contains reports whether n satisfies the policy.
func (p SizePolicy) Contains(n int) bool {
	return n > 0 && n >= p.Min && n <= p.Max
}

// Check returns ErrSizeMismatch when n does not satisfy the policy.
func (p SizePolicy) Check(n int) error {
	if p.Contains(n) {
		return nil
	}
	if p.Min == p.Max {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrSizeMismatch, p.Min, n)
	}
	return fmt.Errorf("%w: expected %d to %d bytes, got %d", ErrSizeMismatch, p.Min, p.Max, n)
}

func (p SizePolicy) String() string {
	if p.Min == p.Max {
		return fmt.Sprintf("%d bytes", p.Min)
	}
	return fmt.Sprintf("%d-%d bytes", p.Min, p.Max)
}
