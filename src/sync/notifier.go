package sync

import (
	"github.com/chainwatch/utxo-syncer/src/utils/logger"
	"github.com/chainwatch/utxo-syncer/src/utils/model"

	evbus "github.com/asaskevich/EventBus"
	"github.com/sirupsen/logrus"
)

const (
	TopicBlockCommitted      = "blockCommitted"
	TopicTransactionIngested = "transactionIngested"
)

// Delivers engine notifications to subscribers. Handlers run synchronously, in the emitter's goroutine.
type Notifier struct {
	log *logrus.Entry
	bus evbus.Bus
}

func NewNotifier() (self *Notifier) {
	self = new(Notifier)
	self.log = logger.NewSublogger("notifier")
	self.bus = evbus.New()
	return
}

// Handler for TopicBlockCommitted takes *model.Block, for TopicTransactionIngested *model.Transaction
func (self *Notifier) Subscribe(topic string, fn any) error {
	return self.bus.Subscribe(topic, fn)
}

func (self *Notifier) Unsubscribe(topic string, fn any) error {
	return self.bus.Unsubscribe(topic, fn)
}

func (self *Notifier) OnBlockCommitted(fn func(block *model.Block)) (unsubscribe func()) {
	return self.subscribe(TopicBlockCommitted, fn)
}

func (self *Notifier) OnTransactionIngested(fn func(tx *model.Transaction)) (unsubscribe func()) {
	return self.subscribe(TopicTransactionIngested, fn)
}

func (self *Notifier) subscribe(topic string, fn any) (unsubscribe func()) {
	err := self.bus.Subscribe(topic, fn)
	if err != nil {
		self.log.WithError(err).WithField("topic", topic).Error("Failed to subscribe")
		return func() {}
	}

	return func() {
		err := self.bus.Unsubscribe(topic, fn)
		if err != nil {
			self.log.WithError(err).WithField("topic", topic).Warn("Failed to unsubscribe")
		}
	}
}

func (self *Notifier) blockCommitted(block *model.Block) {
	self.bus.Publish(TopicBlockCommitted, block)
}

func (self *Notifier) transactionIngested(tx *model.Transaction) {
	self.bus.Publish(TopicTransactionIngested, tx)
}
