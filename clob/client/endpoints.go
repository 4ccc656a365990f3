package client

// CLOB API endpoints.
const (
	EndpointTime = "/time"

	// API key endpoints (L1 auth)
	EndpointCreateAPIKey = "/auth/api-key"
	EndpointDeriveAPIKey = "/auth/derive-api-key"
	EndpointDeleteAPIKey = "/auth/api-key"

	// Markets
	EndpointGetOrderBook = "/book"
	EndpointGetTickSize  = "/tick-size"
	EndpointGetNegRisk   = "/neg-risk"
	EndpointGetPrice     = "/price"

	// Orders (L2 auth)
	EndpointPostOrder     = "/order"
	EndpointCancelOrder   = "/order"
	EndpointGetOrder      = "/data/order/"
	EndpointGetOpenOrders = "/data/orders"

	// Balance
	EndpointGetBalanceAllowance = "/balance-allowance"
)
