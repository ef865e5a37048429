package bignum

import (
	"errors"
)

// ErrParse reports a literal that is not a plain decimal natural number.
var ErrParse = errors.New("invalid numeric format")

// ParseDecimal parses an unsigned decimal literal. Only ASCII digits are
// accepted: no sign, no base prefix, no separators.
func ParseDecimal(s string) (BigUint, error) {
	if s == "" {
		return BigUint{}, ErrParse
	}
	acc := BigUint{}
	// по 9 цифр за раз, чтобы не умножать на 10 на каждой цифре
	const chunk = 9
	for start := 0; start < len(s); start += chunk {
		end := min(start+chunk, len(s))
		var part uint32
		mul := uint32(1)
		for i := start; i < end; i++ {
			ch := s[i]
			if ch < '0' || ch > '9' {
				return BigUint{}, ErrParse
			}
			part = part*10 + uint32(ch-'0')
			mul *= 10
		}
		var err error
		acc, err = UintMulSmall(acc, mul)
		if err != nil {
			return BigUint{}, err
		}
		acc, err = UintAddSmall(acc, part)
		if err != nil {
			return BigUint{}, err
		}
	}
	return acc, nil
}
