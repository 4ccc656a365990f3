package types

// UserOrder is the caller-facing order request before building/signing.
type UserOrder struct {
	TokenID    string
	Price      float64
	Size       float64
	Side       Side
	FeeRateBps *int
	Nonce      *int64
	Expiration *int64
	Taker      *string
}

// SignedOrder is the exchange-ready order payload.
type SignedOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          Side   `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// NewOrder is the POST /order body.
type NewOrder struct {
	Order     SignedOrder `json:"order"`
	Owner     string      `json:"owner"` // api key of the submitting credential
	OrderType OrderType   `json:"orderType"`
}

// OrderResponse is the exchange's answer to a submission or cancel.
type OrderResponse struct {
	Success           bool     `json:"success"`
	ErrorMsg          string   `json:"errorMsg"`
	OrderID           string   `json:"orderID"`
	TransactionHashes []string `json:"transactionsHashes"`
	Status            string   `json:"status"`
	TakingAmount      string   `json:"takingAmount"`
	MakingAmount      string   `json:"makingAmount"`
}

// OpenOrder is one row of GET /data/orders.
type OpenOrder struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	Owner           string   `json:"owner"`
	MakerAddress    string   `json:"maker_address"`
	Market          string   `json:"market"`
	AssetID         string   `json:"asset_id"`
	Side            string   `json:"side"`
	OriginalSize    string   `json:"original_size"`
	SizeMatched     string   `json:"size_matched"`
	Price           string   `json:"price"`
	AssociateTrades []string `json:"associate_trades"`
	Outcome         string   `json:"outcome"`
	CreatedAt       int64    `json:"created_at"`
	Expiration      string   `json:"expiration"`
	OrderType       string   `json:"order_type"`
}

// OpenOrdersAPIResponse wraps the paginated open-orders listing.
type OpenOrdersAPIResponse struct {
	Data       []OpenOrder `json:"data"`
	NextCursor string      `json:"next_cursor"`
	Limit      int         `json:"limit"`
	Count      int         `json:"count"`
}

// OpenOrderParams filters the open-orders listing.
type OpenOrderParams struct {
	ID      *string
	Market  *string
	AssetID *string
}

// CreateOrderOptions carries the market attributes orders must honor.
type CreateOrderOptions struct {
	TickSize TickSize
	NegRisk  bool
}
