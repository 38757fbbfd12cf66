package domain

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// U256 is an unsigned 256-bit integer. It marshals to JSON as a decimal
// string so persisted records keep full numeric fidelity.
type U256 big.Int

// NewU256 wraps a big.Int, rejecting negative values and values wider than
// 256 bits.
func NewU256(i *big.Int) (*U256, error) {
	if i.Sign() < 0 || i.BitLen() > 256 {
		return nil, fmt.Errorf("%s does not fit into U256", i)
	}
	return (*U256)(new(big.Int).Set(i)), nil
}

// U256FromUint64 wraps a uint64
func U256FromUint64(v uint64) *U256 {
	return (*U256)(new(big.Int).SetUint64(v))
}

// U256FromDecimal converts an arbitrary-precision decimal. The second return
// value is false when the decimal is fractional, negative or too wide.
func U256FromDecimal(d decimal.Decimal) (*U256, bool) {
	if !d.IsInteger() || d.Sign() < 0 {
		return nil, false
	}
	i := d.BigInt()
	if i.BitLen() > 256 {
		return nil, false
	}
	return (*U256)(i), true
}

// ToBig returns the value as a big.Int. The caller must not mutate it.
func (u *U256) ToBig() *big.Int {
	return (*big.Int)(u)
}

func (u *U256) String() string {
	return (*big.Int)(u).String()
}

// MarshalJSON encodes the value as a quoted decimal string
func (u U256) MarshalJSON() ([]byte, error) {
	return json.Marshal((*big.Int)(&u).String())
}

// UnmarshalJSON decodes a quoted decimal string with bounds checking
func (u *U256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("invalid U256 %q", s)
	}
	if i.Sign() < 0 || i.BitLen() > 256 {
		return fmt.Errorf("%s does not fit into U256", s)
	}
	*u = U256(*i)
	return nil
}
