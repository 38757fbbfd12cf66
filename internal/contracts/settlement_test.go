package contracts

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCode []byte

func (c staticCode) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return c, nil
}

func TestDomainSeparatorMainnet(t *testing.T) {
	// reference value computed for the canonical mainnet deployment
	separator := DomainSeparator(1, common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41"))
	assert.Equal(t,
		"0xc078f884a2676e1345748b1feace7b0abee5d00ecadb6e574dcdd109a63e8943",
		separator.Hex())
}

func TestOrderTypeHash(t *testing.T) {
	assert.Equal(t,
		"0xd5a25ba2e97094ad7d83dc28a6572da797d6b3e7fc6663bd93efb789fc17e489",
		OrderTypeHash().Hex())
}

func TestVerifySettlementContract(t *testing.T) {
	contract := common.HexToAddress("0x9008D19f58AAbD9eD0D60971565AA8510560ab41")
	separator := DomainSeparator(1, contract)

	code := append([]byte{0x60, 0x80}, separator.Bytes()...)
	code = append(code, OrderTypeHash().Bytes()...)
	require.NoError(t, VerifySettlementContract(context.Background(), staticCode(code), contract, 1))

	withoutSeparator := append([]byte{0x60, 0x80}, OrderTypeHash().Bytes()...)
	err := VerifySettlementContract(context.Background(), staticCode(withoutSeparator), contract, 1)
	assert.EqualError(t, err, "bytecode did not contain domain separator")

	withoutTypeHash := append([]byte{0x60, 0x80}, separator.Bytes()...)
	err = VerifySettlementContract(context.Background(), staticCode(withoutTypeHash), contract, 1)
	assert.EqualError(t, err, "bytecode did not contain order type hash")

	err = VerifySettlementContract(context.Background(), staticCode(nil), contract, 1)
	assert.ErrorContains(t, err, "no contract deployed")
}
