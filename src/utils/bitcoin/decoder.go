package bitcoin

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Converts raw, hex encoded transactions and blocks into their structured form
type Decoder struct {
	params *chaincfg.Params
}

func NewDecoder(network string) (self *Decoder, err error) {
	self = new(Decoder)

	switch network {
	case "mainnet", "":
		self.params = &chaincfg.MainNetParams
	case "testnet3", "testnet":
		self.params = &chaincfg.TestNet3Params
	case "regtest":
		self.params = &chaincfg.RegressionNetParams
	case "signet":
		self.params = &chaincfg.SigNetParams
	case "simnet":
		self.params = &chaincfg.SimNetParams
	default:
		return nil, fmt.Errorf("unknown network: %s", network)
	}

	return
}

func (self *Decoder) Params() *chaincfg.Params {
	return self.params
}

func (self *Decoder) DecodeTransaction(rawHex string) (out *Transaction, err error) {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("%w transaction hex: %w", ErrDecode, err)
	}

	tx, err := btcutil.NewTxFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w transaction: %w", ErrDecode, err)
	}

	out = self.convert(tx)
	out.Size = len(raw)
	return
}

func (self *Decoder) DecodeBlock(rawHex string, height int64) (out *Block, err error) {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("%w block hex: %w", ErrDecode, err)
	}

	block, err := btcutil.NewBlockFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w block: %w", ErrDecode, err)
	}

	header := block.MsgBlock().Header
	out = &Block{
		Hash:         block.Hash().String(),
		Height:       height,
		PrevHash:     header.PrevBlock.String(),
		Timestamp:    header.Timestamp,
		Transactions: make([]*Transaction, 0, len(block.Transactions())),
	}

	for _, tx := range block.Transactions() {
		converted := self.convert(tx)
		converted.Size = tx.MsgTx().SerializeSize()
		out.Transactions = append(out.Transactions, converted)
	}

	return
}

func (self *Decoder) convert(tx *btcutil.Tx) (out *Transaction) {
	msg := tx.MsgTx()
	out = &Transaction{
		Hash:    tx.Hash().String(),
		Inputs:  make([]Input, 0, len(msg.TxIn)),
		Outputs: make([]Output, 0, len(msg.TxOut)),
	}

	coinbase := isCoinbase(msg)
	for _, in := range msg.TxIn {
		out.Inputs = append(out.Inputs, Input{
			PrevHash:  in.PreviousOutPoint.Hash.String(),
			PrevIndex: in.PreviousOutPoint.Index,
			Coinbase:  coinbase,
		})
	}

	for idx, txOut := range msg.TxOut {
		out.Outputs = append(out.Outputs, Output{
			Index:     uint32(idx),
			Value:     txOut.Value,
			Address:   self.address(txOut.PkScript),
			Spendable: !txscript.IsUnspendable(txOut.PkScript),
		})
	}

	return
}

// First address the script pays to, empty for non-standard scripts
func (self *Decoder) address(script []byte) string {
	_, addresses, _, err := txscript.ExtractPkScriptAddrs(script, self.params)
	if err != nil || len(addresses) == 0 {
		return ""
	}
	return addresses[0].EncodeAddress()
}

func isCoinbase(msg *wire.MsgTx) bool {
	if len(msg.TxIn) != 1 {
		return false
	}
	prev := msg.TxIn[0].PreviousOutPoint
	return prev.Index == math.MaxUint32 && prev.Hash == chainhash.Hash{}
}

// Serializes a transaction into the hex format accepted by DecodeTransaction
func EncodeTransaction(msg *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	buf.Grow(msg.SerializeSize())
	err := msg.Serialize(&buf)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
