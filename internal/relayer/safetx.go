package relayer

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/betkit/gopoly/clob/types"
)

// MultiSendAddr is the Gnosis MultiSend contract on Polygon.
const MultiSendAddr = "0xA238CBeb142c10Ef7Ad8442C6D1f9E89e07e7761"

const multiSendABIJSON = `[{"inputs":[{"internalType":"bytes","name":"transactions","type":"bytes"}],"name":"multiSend","outputs":[],"stateMutability":"payable","type":"function"}]`

// encodeMultiSend collapses the batch into a single call target. One
// transaction goes through directly; several are packed into a
// multiSend delegatecall.
func encodeMultiSend(txns []SafeTransaction) (common.Address, []byte, uint8, error) {
	if len(txns) == 1 {
		return txns[0].To, txns[0].Data, txns[0].Operation, nil
	}

	// Per-transaction packing: operation (1) + to (20) + value (32) +
	// dataLength (32) + data.
	var packed []byte
	for _, tx := range txns {
		value := tx.Value
		if value == nil {
			value = big.NewInt(0)
		}
		packed = append(packed, tx.Operation)
		packed = append(packed, tx.To.Bytes()...)
		packed = append(packed, common.LeftPadBytes(value.Bytes(), 32)...)
		packed = append(packed, common.LeftPadBytes(big.NewInt(int64(len(tx.Data))).Bytes(), 32)...)
		packed = append(packed, tx.Data...)
	}

	multiSendABI, err := abi.JSON(strings.NewReader(multiSendABIJSON))
	if err != nil {
		return common.Address{}, nil, 0, err
	}
	data, err := multiSendABI.Pack("multiSend", packed)
	if err != nil {
		return common.Address{}, nil, 0, err
	}

	// multiSend must run in the Safe's own context.
	return common.HexToAddress(MultiSendAddr), data, 1, nil
}

// safeTxHash computes the EIP-712 digest a Safe owner signs to approve
// a transaction.
func safeTxHash(chainID types.Chain, safeAddr, to common.Address, data []byte, operation uint8, nonce *big.Int) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"SafeTx": {
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "data", Type: "bytes"},
				{Name: "operation", Type: "uint8"},
				{Name: "safeTxGas", Type: "uint256"},
				{Name: "baseGas", Type: "uint256"},
				{Name: "gasPrice", Type: "uint256"},
				{Name: "gasToken", Type: "address"},
				{Name: "refundReceiver", Type: "address"},
				{Name: "nonce", Type: "uint256"},
			},
		},
		PrimaryType: "SafeTx",
		Domain: apitypes.TypedDataDomain{
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: safeAddr.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"to":             to.Hex(),
			"value":          "0",
			"data":           data,
			"operation":      fmt.Sprintf("%d", operation),
			"safeTxGas":      "0",
			"baseGas":        "0",
			"gasPrice":       "0",
			"gasToken":       "0x0000000000000000000000000000000000000000",
			"refundReceiver": "0x0000000000000000000000000000000000000000",
			"nonce":          nonce.String(),
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hash message: %w", err)
	}

	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, messageHash...)
	return crypto.Keccak256(rawData), nil
}
