package asset

// Asset identifies a fungible asset by its ticker symbol. Identity only,
// never quantity; balances live in the ledger.
type Asset string

// Account identifies a principal holding balances at the ledger. The hosting
// environment authenticates principals; here they are opaque names.
type Account string

func (a Asset) String() string {
	return string(a)
}

func (a Account) String() string {
	return string(a)
}
