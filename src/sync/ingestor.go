package sync

import (
	"context"
	"errors"
	"time"

	"github.com/chainwatch/utxo-syncer/src/utils/bitcoin"
	"github.com/chainwatch/utxo-syncer/src/utils/logger"
	"github.com/chainwatch/utxo-syncer/src/utils/model"
	"github.com/chainwatch/utxo-syncer/src/utils/monitoring"

	"github.com/sirupsen/logrus"
)

// Stores pending transactions, one at a time, each with the next sequence index
type Ingestor struct {
	log      *logrus.Entry
	writer   *Writer
	decoder  *bitcoin.Decoder
	store    TransactionStore
	notifier *Notifier
	monitor  monitoring.Monitor

	now func() time.Time
}

func NewIngestor(writer *Writer, decoder *bitcoin.Decoder, store TransactionStore, notifier *Notifier) (self *Ingestor) {
	self = new(Ingestor)
	self.log = logger.NewSublogger("ingestor")
	self.writer = writer
	self.decoder = decoder
	self.store = store
	self.notifier = notifier
	self.now = time.Now
	return
}

func (self *Ingestor) WithMonitor(monitor monitoring.Monitor) *Ingestor {
	self.monitor = monitor
	return self
}

// Decodes and stores a raw pending transaction. Failures don't consume the sequence index.
func (self *Ingestor) Ingest(ctx context.Context, rawHex string) (out *model.Transaction, err error) {
	err = self.writer.Do(ctx, func(next int64) (err error) {
		decoded, err := self.decoder.DecodeTransaction(rawHex)
		if err != nil {
			return
		}

		tx := &model.Transaction{
			Hash:          decoded.Hash,
			SequenceIndex: next,
			Size:          decoded.Size,
			BlockNumber:   model.Unconfirmed,
			Timestamp:     self.now().UnixMilli(),
		}

		created, spent := model.BuildCoins(decoded, model.Unconfirmed)

		err = self.store.InsertPending(ctx, tx, created, spent)
		if err != nil {
			return
		}

		out = tx

		// Still inside the gate, so notifications are ordered by the sequence index
		self.notifier.transactionIngested(tx)
		return nil
	})
	if err != nil {
		if self.monitor != nil {
			if errors.Is(err, ErrAlreadyIngested) {
				self.monitor.GetReport().Syncer.State.DuplicateTransactions.Inc()
			} else {
				self.monitor.GetReport().Syncer.Errors.IngestFailures.Inc()
			}
		}
		return nil, err
	}

	if self.monitor != nil {
		self.monitor.GetReport().Syncer.State.TransactionsIngested.Inc()
	}

	return
}
