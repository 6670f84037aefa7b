package bitcoin

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	genesisTxHex = "01000000010000000000000000000000000000000000000000000000000000000000000000ffffffff4d04ffff001d0104455468652054696d65732030332f4a616e2f32303039204368616e63656c6c6f72206f6e206272696e6b206f66207365636f6e64206261696c6f757420666f722062616e6b73ffffffff0100f2052a01000000434104678afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0ea1f61deb649f6bc3f4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf11d5fac00000000"
	genesisTxHash = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"

	genesisBlockHeaderHex = "0100000000000000000000000000000000000000000000000000000000000000000000003ba3edfd7a7b12b27ac72c3e67768f617fc81bc3888a51323a9fb8aa4b1e5e4a29ab5f49ffff001d1dac2b7c01"
	genesisBlockHash      = "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"
)

func TestDecoderTestSuite(t *testing.T) {
	suite.Run(t, new(DecoderTestSuite))
}

type DecoderTestSuite struct {
	suite.Suite
	decoder *Decoder
}

func (s *DecoderTestSuite) SetupSuite() {
	var err error
	s.decoder, err = NewDecoder("mainnet")
	require.Nil(s.T(), err)
}

func (s *DecoderTestSuite) TestUnknownNetwork() {
	_, err := NewDecoder("dogecoin")
	require.Error(s.T(), err)
}

func (s *DecoderTestSuite) TestGenesisTransaction() {
	tx, err := s.decoder.DecodeTransaction(genesisTxHex)
	require.Nil(s.T(), err)
	require.Equal(s.T(), genesisTxHash, tx.Hash)
	require.Equal(s.T(), 204, tx.Size)

	require.Len(s.T(), tx.Inputs, 1)
	require.True(s.T(), tx.Inputs[0].Coinbase)

	require.Len(s.T(), tx.Outputs, 1)
	require.Equal(s.T(), int64(5000000000), tx.Outputs[0].Value)
	require.Equal(s.T(), "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", tx.Outputs[0].Address)
	require.True(s.T(), tx.Outputs[0].Spendable)
}

func (s *DecoderTestSuite) TestGenesisBlock() {
	block, err := s.decoder.DecodeBlock(genesisBlockHeaderHex+genesisTxHex, 0)
	require.Nil(s.T(), err)
	require.Equal(s.T(), genesisBlockHash, block.Hash)
	require.Equal(s.T(), int64(0), block.Height)
	require.Equal(s.T(), chainhash.Hash{}.String(), block.PrevHash)
	require.Equal(s.T(), int64(1231006505), block.Timestamp.Unix())
	require.Len(s.T(), block.Transactions, 1)
	require.Equal(s.T(), genesisTxHash, block.Transactions[0].Hash)
	require.Equal(s.T(), 204, block.Transactions[0].Size)
}

func (s *DecoderTestSuite) TestSpendingTransaction() {
	address, err := btcutil.NewAddressPubKeyHash(make([]byte, 20), &chaincfg.MainNetParams)
	require.Nil(s.T(), err)
	payToAddress, err := txscript.PayToAddrScript(address)
	require.Nil(s.T(), err)
	nullData, err := txscript.NullDataScript([]byte("memo"))
	require.Nil(s.T(), err)

	prevHash, err := chainhash.NewHashFromStr(genesisTxHash)
	require.Nil(s.T(), err)

	msg := wire.NewMsgTx(wire.TxVersion)
	msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(prevHash, 3), nil, nil))
	msg.AddTxOut(wire.NewTxOut(1000, payToAddress))
	msg.AddTxOut(wire.NewTxOut(0, nullData))

	raw, err := EncodeTransaction(msg)
	require.Nil(s.T(), err)

	tx, err := s.decoder.DecodeTransaction(raw)
	require.Nil(s.T(), err)
	require.Equal(s.T(), msg.TxHash().String(), tx.Hash)
	require.Equal(s.T(), len(raw)/2, tx.Size)

	require.Len(s.T(), tx.Inputs, 1)
	require.False(s.T(), tx.Inputs[0].Coinbase)
	require.Equal(s.T(), genesisTxHash, tx.Inputs[0].PrevHash)
	require.Equal(s.T(), uint32(3), tx.Inputs[0].PrevIndex)

	require.Len(s.T(), tx.Outputs, 2)
	require.Equal(s.T(), address.EncodeAddress(), tx.Outputs[0].Address)
	require.True(s.T(), tx.Outputs[0].Spendable)
	require.Equal(s.T(), uint32(1), tx.Outputs[1].Index)
	require.Empty(s.T(), tx.Outputs[1].Address)
	require.False(s.T(), tx.Outputs[1].Spendable)
}

func (s *DecoderTestSuite) TestMalformed() {
	_, err := s.decoder.DecodeTransaction("zz")
	require.ErrorIs(s.T(), err, ErrDecode)

	_, err = s.decoder.DecodeTransaction("0100")
	require.ErrorIs(s.T(), err, ErrDecode)

	_, err = s.decoder.DecodeBlock("00", 1)
	require.ErrorIs(s.T(), err, ErrDecode)
}
