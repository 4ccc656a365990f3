package signing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betkit/gopoly/clob/types"
	"github.com/betkit/gopoly/pkg/wallet"
)

// CreateL1Headers produces the wallet-signature auth headers used by
// the api-key derive/create endpoints. Each call requests exactly one
// signature from the wallet.
func CreateL1Headers(ctx context.Context, signer wallet.Signer, chainID types.Chain, nonce int64, timestamp *int64) (*types.L1PolyHeader, error) {
	ts := time.Now().Unix()
	if timestamp != nil {
		ts = *timestamp
	}

	sig, err := BuildClobAuthSignature(ctx, signer, chainID, ts, nonce)
	if err != nil {
		return nil, err
	}

	return &types.L1PolyHeader{
		PolyAddress:   signer.Address().Hex(),
		PolySignature: sig,
		PolyTimestamp: strconv.FormatInt(ts, 10),
		PolyNonce:     strconv.FormatInt(nonce, 10),
	}, nil
}

// CreateL2Headers produces API-key auth headers for one request. No
// wallet interaction happens here; only the HMAC secret is used. The
// address header carries the credential's signer.
func CreateL2Headers(signerAddress common.Address, creds *types.ApiKeyCreds, args *types.L2HeaderArgs, timestamp *int64) (*types.L2PolyHeader, error) {
	ts := time.Now().Unix()
	if timestamp != nil {
		ts = *timestamp
	}

	sig, err := BuildHmacSignature(creds.Secret, ts, args.Method, args.RequestPath, args.Body)
	if err != nil {
		return nil, fmt.Errorf("build hmac signature: %w", err)
	}

	return &types.L2PolyHeader{
		PolyAddress:    signerAddress.Hex(),
		PolySignature:  sig,
		PolyTimestamp:  strconv.FormatInt(ts, 10),
		PolyAPIKey:     creds.Key,
		PolyPassphrase: creds.Passphrase,
	}, nil
}
