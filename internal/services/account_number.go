package services

import (
	"errors"
	"math/rand"
	"strconv"
)

var ErrNumberGeneration = errors.New("could not generate a valid account number")

// AccountNumberGenerator produces 12-digit account numbers that satisfy
// the Luhn checksum. The random source is injected so tests can seed it;
// attempts are bounded so a broken source cannot spin forever. Roughly
// one draw in ten passes the checksum.
type AccountNumberGenerator struct {
	rng         *rand.Rand
	maxAttempts int
}

func NewAccountNumberGenerator(rng *rand.Rand, maxAttempts int) *AccountNumberGenerator {
	return &AccountNumberGenerator{rng: rng, maxAttempts: maxAttempts}
}

// Generate draws uniform 12-digit numbers until one passes the Luhn
// check. Uniqueness against existing accounts is the store's job, not
// the generator's.
func (g *AccountNumberGenerator) Generate() (string, error) {
	const min, max = 100000000000, 999999999999
	for i := 0; i < g.maxAttempts; i++ {
		n := min + g.rng.Int63n(max-min+1)
		number := strconv.FormatInt(n, 10)
		if ValidLuhn(number) {
			return number, nil
		}
	}
	return "", ErrNumberGeneration
}

// ValidLuhn reports whether s is a digit string passing the Luhn
// checksum: double every second digit from the right, subtract 9 from
// doubles above 9, and require the total to be divisible by 10.
func ValidLuhn(s string) bool {
	if s == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
