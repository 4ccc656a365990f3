package signing

const (
	// ClobDomainName is the EIP-712 domain for L1 auth signatures.
	ClobDomainName = "ClobAuthDomain"

	// ClobVersion is the EIP-712 domain version.
	ClobVersion = "1"

	// MsgToSign is the fixed attestation message the exchange expects.
	MsgToSign = "This message attests that I control the given wallet"

	// ExchangeDomainName is the EIP-712 domain for order signatures.
	ExchangeDomainName = "Polymarket CTF Exchange"

	// ExchangeDomainVersion is the order domain version.
	ExchangeDomainVersion = "1"
)
