package domain

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// OrderKind distinguishes buy orders from sell orders
type OrderKind string

const (
	OrderKindBuy  OrderKind = "buy"
	OrderKindSell OrderKind = "sell"
)

// SellTokenSource is where the sell amount is drawn from
type SellTokenSource string

const (
	SellTokenSourceErc20    SellTokenSource = "erc20"
	SellTokenSourceInternal SellTokenSource = "internal"
	SellTokenSourceExternal SellTokenSource = "external"
)

// BuyTokenDestination is where the buy amount is paid to
type BuyTokenDestination string

const (
	BuyTokenDestinationErc20    BuyTokenDestination = "erc20"
	BuyTokenDestinationInternal BuyTokenDestination = "internal"
)

// SigningScheme is how the order signature was produced
type SigningScheme string

const (
	SigningSchemeEip712  SigningScheme = "eip712"
	SigningSchemeEthSign SigningScheme = "ethsign"
	SigningSchemeEip1271 SigningScheme = "eip1271"
	SigningSchemePreSign SigningScheme = "presign"
)

// OrderUID is the 56-byte unique order identifier derived from owner, order
// hash and expiry.
type OrderUID [56]byte

func (u OrderUID) String() string {
	return "0x" + hex.EncodeToString(u[:])
}

// MarshalText encodes the UID as 0x-prefixed hex
func (u OrderUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText decodes a 0x-prefixed 112-character hex string
func (u *OrderUID) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("invalid order UID: %w", err)
	}
	if len(b) != len(u) {
		return fmt.Errorf("order UID must be %d bytes, got %d", len(u), len(b))
	}
	copy(u[:], b)
	return nil
}

// AppData is the 32-byte fingerprint of the order's app data document
type AppData [32]byte

// MarshalText encodes the fingerprint as 0x-prefixed hex
func (a AppData) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(a[:])), nil
}

// UnmarshalText decodes a 0x-prefixed 64-character hex string
func (a *AppData) UnmarshalText(text []byte) error {
	b, err := hexutil.Decode(string(text))
	if err != nil {
		return fmt.Errorf("invalid app data: %w", err)
	}
	if len(b) != len(a) {
		return fmt.Errorf("app data must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return nil
}

// Signature carries the signing scheme together with the raw signature bytes
type Signature struct {
	Scheme SigningScheme `json:"signingScheme"`
	Data   hexutil.Bytes `json:"signature"`
}

// OrderMetadata is execution state maintained by the backend, not signed by
// the user.
type OrderMetadata struct {
	CreationDate     time.Time      `json:"creationDate"`
	Owner            common.Address `json:"owner"`
	UID              OrderUID       `json:"uid"`
	ExecutedAmount   *U256          `json:"executedAmount"`
	FullFeeAmount    *U256          `json:"fullFeeAmount"`
	IsLiquidityOrder bool           `json:"isLiquidityOrder"`
}

// OrderData is the user-signed trade intent
type OrderData struct {
	SellToken         common.Address      `json:"sellToken"`
	BuyToken          common.Address      `json:"buyToken"`
	Receiver          *common.Address     `json:"receiver,omitempty"`
	SellAmount        *U256               `json:"sellAmount"`
	BuyAmount         *U256               `json:"buyAmount"`
	ValidTo           uint32              `json:"validTo"`
	AppData           AppData             `json:"appData"`
	FeeAmount         *U256               `json:"feeAmount"`
	Kind              OrderKind           `json:"kind"`
	PartiallyFillable bool                `json:"partiallyFillable"`
	SellTokenBalance  SellTokenSource     `json:"sellTokenBalance"`
	BuyTokenBalance   BuyTokenDestination `json:"buyTokenBalance"`
}

// Order is a solvable user trade intent
type Order struct {
	Metadata  OrderMetadata `json:"metadata"`
	Data      OrderData     `json:"data"`
	Signature Signature     `json:"signature"`
}

// Tokens returns the traded token pair
func (o *Order) Tokens() []common.Address {
	return []common.Address{o.Data.SellToken, o.Data.BuyToken}
}
