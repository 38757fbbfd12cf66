package contracts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EIP-712 domain of the settlement contract
const (
	domainName    = "Gnosis Protocol"
	domainVersion = "v2"
)

const eip712DomainType = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"

const orderType = "Order(" +
	"address sellToken," +
	"address buyToken," +
	"address receiver," +
	"uint256 sellAmount," +
	"uint256 buyAmount," +
	"uint32 validTo," +
	"bytes32 appData," +
	"uint256 feeAmount," +
	"string kind," +
	"bool partiallyFillable," +
	"string sellTokenBalance," +
	"string buyTokenBalance)"

// OrderTypeHash is the EIP-712 type hash of the settled order struct
func OrderTypeHash() common.Hash {
	return crypto.Keccak256Hash([]byte(orderType))
}

// DomainSeparator computes the settlement contract's EIP-712 domain
// separator for the given chain and deployment address.
func DomainSeparator(chainID uint64, contract common.Address) common.Hash {
	var buf bytes.Buffer
	buf.Write(crypto.Keccak256([]byte(eip712DomainType)))
	buf.Write(crypto.Keccak256([]byte(domainName)))
	buf.Write(crypto.Keccak256([]byte(domainVersion)))
	buf.Write(common.BigToHash(new(big.Int).SetUint64(chainID)).Bytes())
	buf.Write(common.LeftPadBytes(contract.Bytes(), 32))
	return crypto.Keccak256Hash(buf.Bytes())
}

// CodeReader reads deployed contract bytecode
type CodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// VerifySettlementContract checks that the deployed settlement contract was
// built with the domain separator and order type hash this binary signs and
// verifies against. Signature inconsistencies caused by a mismatch of these
// constants are hard to debug, so a mismatch is fatal at startup.
func VerifySettlementContract(ctx context.Context, client CodeReader, contract common.Address, chainID uint64) error {
	code, err := client.CodeAt(ctx, contract, nil)
	if err != nil {
		return fmt.Errorf("could not load deployed bytecode: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no contract deployed at %s", contract.Hex())
	}

	separator := DomainSeparator(chainID, contract)
	if !bytes.Contains(code, separator.Bytes()) {
		return errors.New("bytecode did not contain domain separator")
	}
	if !bytes.Contains(code, OrderTypeHash().Bytes()) {
		return errors.New("bytecode did not contain order type hash")
	}
	return nil
}
