package bitcoin

import "time"

// Reference to an output spent by a transaction
type Input struct {
	PrevHash  string
	PrevIndex uint32

	// Coinbase inputs don't spend anything
	Coinbase bool
}

type Output struct {
	Index uint32

	// Amount in satoshi
	Value int64

	// Empty for non-standard scripts
	Address string

	// False for provably unspendable scripts, e.g. OP_RETURN
	Spendable bool
}

// Decoded transaction, either confirmed or pending
type Transaction struct {
	Hash string

	// Serialized size in bytes, witness included
	Size int

	Inputs  []Input
	Outputs []Output
}

// Decoded block with its transactions
type Block struct {
	Hash      string
	Height    int64
	PrevHash  string
	Timestamp time.Time

	Transactions []*Transaction
}

type BlockchainInfo struct {
	Chain                string  `json:"chain"`
	Blocks               int64   `json:"blocks"`
	Headers              int64   `json:"headers"`
	BestBlockHash        string  `json:"bestblockhash"`
	VerificationProgress float64 `json:"verificationprogress"`
	InitialBlockDownload bool    `json:"initialblockdownload"`
}
