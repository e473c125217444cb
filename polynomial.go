package chunker

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"math/bits"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Pol is a polynomial over GF(2). Bit i of the underlying integer holds the
// coefficient of x^i, so the whole polynomial fits in a single 64-bit word.
// Pol is an immutable value type; every operation returns a new value.
type Pol uint64

var (
	// ErrPolOverflow is returned by Mul when the product does not fit in
	// 64 bits.
	ErrPolOverflow = errors.New("chunker: polynomial multiplication overflows uint64")

	// ErrNoPolynomial is returned by RandomPolynomial when no irreducible
	// polynomial could be found within randPolMaxTries attempts.
	ErrNoPolynomial = errors.New("chunker: unable to find a random irreducible polynomial")
)

// randPolMaxTries bounds the search for a random irreducible polynomial.
// About 2/53 (3.8%) of the candidates are irreducible, so reaching this bound has
// negligible probability.
const randPolMaxTries = 1e6

// Add returns x+y. In GF(2) addition is a carryless XOR, so x.Add(x) == 0.
func (x Pol) Add(y Pol) Pol {
	return x ^ y
}

// Deg returns the degree of x, the index of its highest set bit. The degree
// of the zero polynomial is -1.
func (x Pol) Deg() int {
	return bits.Len64(uint64(x)) - 1
}

// mul is the carryless multiplication of x and y, truncated to 64 bits.
func (x Pol) mul(y Pol) Pol {
	if x == 0 || y == 0 {
		return 0
	}

	var res Pol
	for i := 0; i <= y.Deg(); i++ {
		if y&(1<<uint(i)) > 0 {
			res = res.Add(x << uint(i))
		}
	}

	return res
}

// mulOverflows reports whether x*y does not fit in 64 bits. Instead of a
// wide multiplication the product is divided back by y and compared with x.
// Trick by Rob Pike, see
// https://groups.google.com/d/msg/golang-nuts/h5oSN5t3Au4/KaNQREhZh0QJ
func mulOverflows(x, y Pol) bool {
	if x <= 1 || y <= 1 {
		return false
	}

	return x.mul(y).Div(y) != x
}

// Mul returns x*y. If the product does not fit in 64 bits, ErrPolOverflow
// is returned.
func (x Pol) Mul(y Pol) (Pol, error) {
	if mulOverflows(x, y) {
		return 0, ErrPolOverflow
	}

	return x.mul(y), nil
}

// DivMod returns the quotient and remainder of x divided by d, so that
// x = d*q + r with Deg(r) < Deg(d). Dividing by the zero polynomial panics.
func (x Pol) DivMod(d Pol) (q, r Pol) {
	if d == 0 {
		panic("chunker: division by zero polynomial")
	}

	if x == 0 {
		return 0, 0
	}

	D := d.Deg()
	diff := x.Deg() - D
	if diff < 0 {
		return 0, x
	}

	for diff >= 0 {
		q |= 1 << uint(diff)
		x = x.Add(d << uint(diff))

		diff = x.Deg() - D
	}

	return q, x
}

// Div returns the quotient of x divided by d.
func (x Pol) Div(d Pol) Pol {
	q, _ := x.DivMod(d)
	return q
}

// Mod returns the remainder of x divided by d.
func (x Pol) Mod(d Pol) Pol {
	_, r := x.DivMod(d)
	return r
}

// GCD returns the greatest common divisor of x and f.
func (x Pol) GCD(f Pol) Pol {
	if f == 0 {
		return x
	}

	if x == 0 {
		return f
	}

	if x.Deg() < f.Deg() {
		x, f = f, x
	}

	return f.GCD(x.Mod(f))
}

// MulMod returns x*f mod g. The product is reduced after every step, so no
// intermediate value can overflow the 64-bit word.
func (x Pol) MulMod(f, g Pol) Pol {
	if x == 0 || f == 0 {
		return 0
	}

	// a runs through x, x*x^1, x*x^2, ... mod g. Since a stays reduced,
	// Deg(a) < Deg(g) <= 63 and the shift below cannot lose bits.
	a := x.Mod(g)

	var res Pol
	for i := 0; i <= f.Deg(); i++ {
		if f&(1<<uint(i)) > 0 {
			res = res.Add(a)
		}

		a = (a << 1).Mod(g)
	}

	return res
}

// qp returns the polynomial x^(2^p)+x mod g, needed for the reducibility
// test: it is computed by squaring x modulo g a total of p times.
func qp(p uint, g Pol) Pol {
	res := Pol(2)
	for i := uint(0); i < p; i++ {
		res = res.MulMod(res, g)
	}

	return res.Add(2).Mod(g)
}

// Irreducible returns true iff x is irreducible over GF(2). This uses
// Ben-Or's reducibility test: x is irreducible iff
// gcd(x, x^(2^i)+x mod x) == 1 for all i up to Deg(x)/2.
//
// For details see "Tests and Constructions of Irreducible Polynomials over
// Finite Fields".
func (x Pol) Irreducible() bool {
	for i := 1; i <= x.Deg()/2; i++ {
		if x.GCD(qp(uint(i), x)) != 1 {
			return false
		}
	}

	return true
}

// RandomPolynomial returns a random irreducible polynomial of degree 53
// drawn from crypto/rand. Degree 53 is the largest prime below 64-8, which
// leaves the top eight digest bits free for the table-driven reduction.
// There are about (2^53-2)/53 irreducible polynomials of that degree, cf.
// Michael O. Rabin (1981): "Fingerprinting by Random Polynomials", page 4.
func RandomPolynomial() (Pol, error) {
	return RandomPolynomialFrom(rand.Reader)
}

// RandomPolynomialFrom returns a random irreducible polynomial of degree 53
// using entropy as the source of random bits. If no irreducible polynomial
// is found within randPolMaxTries attempts, ErrNoPolynomial is returned.
func RandomPolynomialFrom(entropy io.Reader) (Pol, error) {
	for i := 0; i < randPolMaxTries; i++ {
		var f Pol
		if err := binary.Read(entropy, binary.LittleEndian, &f); err != nil {
			return 0, errors.Wrap(err, "reading entropy")
		}

		// keep bits 0..53 only, then pin the degree to exactly 53 and
		// make the polynomial coprime to x
		f &= (1 << 54) - 1
		f |= 1<<53 | 1

		if f.Irreducible() {
			return f, nil
		}
	}

	return 0, ErrNoPolynomial
}

// String returns the coefficients as a hex number.
func (x Pol) String() string {
	return "0x" + strconv.FormatUint(uint64(x), 16)
}

// Expand returns x written out as a sum of powers, e.g. "x^3+x+1".
// The zero polynomial expands to "0".
func (x Pol) Expand() string {
	if x == 0 {
		return "0"
	}

	var b strings.Builder
	for i := x.Deg(); i > 1; i-- {
		if x&(1<<uint(i)) > 0 {
			b.WriteString("+x^")
			b.WriteString(strconv.Itoa(i))
		}
	}

	if x&2 > 0 {
		b.WriteString("+x")
	}

	if x&1 > 0 {
		b.WriteString("+1")
	}

	return b.String()[1:]
}

// MarshalJSON renders the polynomial as a quoted hex string.
func (x Pol) MarshalJSON() ([]byte, error) {
	buf := strconv.AppendUint([]byte{'"'}, uint64(x), 16)
	return append(buf, '"'), nil
}

// UnmarshalJSON parses a polynomial from a quoted hex string.
func (x *Pol) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("chunker: invalid string for polynomial")
	}

	n, err := strconv.ParseUint(string(data[1:len(data)-1]), 16, 64)
	if err != nil {
		return errors.Wrap(err, "parsing polynomial")
	}
	*x = Pol(n)

	return nil
}
