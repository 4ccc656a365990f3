package client

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/betkit/gopoly/clob/signing"
	"github.com/betkit/gopoly/clob/types"
)

// RoundConfig fixes the decimal precision of one tick-size class.
type RoundConfig struct {
	Price  int
	Size   int
	Amount int
}

// RoundingConfig maps tick size to the precision the exchange accepts.
var RoundingConfig = map[types.TickSize]RoundConfig{
	types.TickSize01:    {Price: 1, Size: 2, Amount: 3},
	types.TickSize001:   {Price: 2, Size: 2, Amount: 4},
	types.TickSize0001:  {Price: 3, Size: 2, Amount: 5},
	types.TickSize00001: {Price: 4, Size: 2, Amount: 6},
}

// OrderBuilder turns user orders into exchange-signed payloads. The
// funder address becomes the order's maker; for EOA orders it equals
// the signer.
type OrderBuilder struct {
	client        *Client
	signatureType types.SignatureType
	funderAddress string
}

func NewOrderBuilder(client *Client, signatureType types.SignatureType, funderAddress string) *OrderBuilder {
	return &OrderBuilder{
		client:        client,
		signatureType: signatureType,
		funderAddress: funderAddress,
	}
}

// BuildOrder computes amounts, resolves the verifying exchange contract
// and asks the wallet for one EIP-712 signature.
func (ob *OrderBuilder) BuildOrder(ctx context.Context, userOrder *types.UserOrder, options *types.CreateOrderOptions) (*types.SignedOrder, error) {
	contractConfig, err := GetContractConfig(ob.client.GetChainID())
	if err != nil {
		return nil, err
	}

	roundConfig, ok := RoundingConfig[options.TickSize]
	if !ok {
		return nil, fmt.Errorf("unsupported tick size: %s", options.TickSize)
	}

	signerAddress := ob.client.Address().Hex()
	maker := signerAddress
	if ob.funderAddress != "" {
		maker = ob.funderAddress
	}

	rawMakerAmt, rawTakerAmt := getOrderRawAmounts(userOrder.Side, userOrder.Size, userOrder.Price, roundConfig)

	makerAmount := parseUnits(rawMakerAmt, CollateralTokenDecimals)
	takerAmount := parseUnits(rawTakerAmt, CollateralTokenDecimals)

	taker := "0x0000000000000000000000000000000000000000"
	if userOrder.Taker != nil && *userOrder.Taker != "" {
		taker = *userOrder.Taker
	}

	feeRateBps := big.NewInt(0)
	if userOrder.FeeRateBps != nil {
		feeRateBps = big.NewInt(int64(*userOrder.FeeRateBps))
	}
	nonce := big.NewInt(0)
	if userOrder.Nonce != nil {
		nonce = big.NewInt(*userOrder.Nonce)
	}
	expiration := big.NewInt(0)
	if userOrder.Expiration != nil {
		expiration = big.NewInt(*userOrder.Expiration)
	}

	tokenID, ok := new(big.Int).SetString(userOrder.TokenID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid tokenID: %s", userOrder.TokenID)
	}

	exchangeAddress := contractConfig.Exchange
	if options.NegRisk {
		exchangeAddress = contractConfig.NegRiskExchange
	}

	orderData := &signing.OrderData{
		Salt:          time.Now().UnixNano(),
		Maker:         maker,
		Signer:        signerAddress,
		Taker:         taker,
		TokenID:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Expiration:    expiration,
		Nonce:         nonce,
		FeeRateBps:    feeRateBps,
		Side:          userOrder.Side,
		SignatureType: ob.signatureType,
	}

	signature, err := signing.BuildOrderSignature(ctx, ob.client.signer, ob.client.GetChainID(), exchangeAddress, orderData)
	if err != nil {
		return nil, err
	}

	return &types.SignedOrder{
		Salt:          orderData.Salt,
		Maker:         maker,
		Signer:        signerAddress,
		Taker:         taker,
		TokenID:       userOrder.TokenID,
		MakerAmount:   makerAmount.String(),
		TakerAmount:   takerAmount.String(),
		Expiration:    expiration.String(),
		Nonce:         nonce.String(),
		FeeRateBps:    feeRateBps.String(),
		Side:          userOrder.Side,
		SignatureType: int(ob.signatureType),
		Signature:     signature,
	}, nil
}

func decimalPlaces(num float64) int {
	if num == math.Trunc(num) {
		return 0
	}
	str := strconv.FormatFloat(num, 'f', -1, 64)
	parts := strings.Split(str, ".")
	if len(parts) < 2 {
		return 0
	}
	return len(parts[1])
}

func roundNormal(num float64, decimals int) float64 {
	if decimalPlaces(num) <= decimals {
		return num
	}
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(num*multiplier) / multiplier
}

func roundDown(num float64, decimals int) float64 {
	if decimalPlaces(num) <= decimals {
		return num
	}
	multiplier := math.Pow(10, float64(decimals))
	return math.Floor(num*multiplier) / multiplier
}

func roundUp(num float64, decimals int) float64 {
	if decimalPlaces(num) <= decimals {
		return num
	}
	multiplier := math.Pow(10, float64(decimals))
	return math.Ceil(num*multiplier) / multiplier
}

// getOrderRawAmounts derives maker/taker amounts. BUY: maker pays USDC
// and takes tokens; SELL: maker gives tokens (2 dp) and takes USDC (4 dp).
func getOrderRawAmounts(side types.Side, size, price float64, roundConfig RoundConfig) (rawMakerAmt, rawTakerAmt float64) {
	rawPrice := roundNormal(price, roundConfig.Price)

	if side == types.SideBuy {
		rawTakerAmt = roundDown(size, roundConfig.Size)
		rawMakerAmt = rawTakerAmt * rawPrice
		if decimalPlaces(rawMakerAmt) > roundConfig.Amount {
			rawMakerAmt = roundUp(rawMakerAmt, roundConfig.Amount+4)
			if decimalPlaces(rawMakerAmt) > roundConfig.Amount {
				rawMakerAmt = roundDown(rawMakerAmt, roundConfig.Amount)
			}
		}
		return rawMakerAmt, rawTakerAmt
	}

	rawMakerAmt = roundDown(size, roundConfig.Size)
	rawTakerAmt = rawMakerAmt * rawPrice
	if decimalPlaces(rawTakerAmt) > 4 {
		rawTakerAmt = roundDown(rawTakerAmt, 4)
	}
	if decimalPlaces(rawMakerAmt) > 2 {
		rawMakerAmt = roundDown(rawMakerAmt, 2)
		rawTakerAmt = rawMakerAmt * rawPrice
		if decimalPlaces(rawTakerAmt) > 4 {
			rawTakerAmt = roundDown(rawTakerAmt, 4)
		}
	}
	return rawMakerAmt, rawTakerAmt
}

// parseUnits converts a human amount to raw token units.
func parseUnits(value float64, decimals int) *big.Int {
	multiplier := new(big.Float).SetFloat64(math.Pow(10, float64(decimals)))
	valueBig := new(big.Float).SetFloat64(value)
	result := new(big.Float).Mul(valueBig, multiplier)
	resultInt, _ := result.Int(nil)
	return resultInt
}
