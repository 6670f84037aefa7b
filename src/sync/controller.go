package sync

import (
	"context"

	"github.com/chainwatch/utxo-syncer/src/utils/bitcoin"
	"github.com/chainwatch/utxo-syncer/src/utils/config"
	"github.com/chainwatch/utxo-syncer/src/utils/listener"
	"github.com/chainwatch/utxo-syncer/src/utils/model"
	monitor_syncer "github.com/chainwatch/utxo-syncer/src/utils/monitoring/syncer"
	"github.com/chainwatch/utxo-syncer/src/utils/publisher"
	"github.com/chainwatch/utxo-syncer/src/utils/task"
)

type Controller struct {
	*task.Task
}

// Main class that orchestrates main syncer functionalities
func NewController(config *config.Config) (self *Controller, err error) {
	self = new(Controller)

	self.Task = task.NewTask(config, "controller")

	provider, err := bitcoin.NewProvider(config)
	if err != nil {
		return
	}

	monitor := monitor_syncer.NewMonitor(config).
		WithNode(provider)

	server := NewServer(config).
		WithMonitor(monitor)

	db, err := model.NewConnection(self.Ctx, config, "syncer")
	if err != nil {
		return
	}

	store := NewStore(config).
		WithDB(db)

	engine := NewEngine(config, provider, provider.Decoder(), store).
		WithMonitor(monitor).
		WithContext(self.Ctx)

	engineTask := task.NewTask(config, "engine").
		WithOnBeforeStart(func() error {
			height, err := getStartHeight(self.Ctx, config, store)
			if err != nil {
				return err
			}
			return engine.Start(self.Ctx, height)
		}).
		WithSubtaskFunc(func() error {
			engine.Wait()
			return nil
		}).
		WithOnStop(engine.Stop)

	self.Task = self.Task.
		WithSubtask(monitor.Task).
		WithSubtask(server.Task)

	if config.Redis.Publish {
		notifications := make(chan *model.Notification, config.Redis.MaxQueueSize)

		push := func(notification *model.Notification) {
			select {
			case notifications <- notification:
			default:
				self.Log.WithField("hash", notification.Hash).Warn("Notification queue is full, dropping")
			}
		}

		engine.Notifier().OnBlockCommitted(func(block *model.Block) {
			push(model.NewBlockNotification(block))
		})
		engine.Notifier().OnTransactionIngested(func(tx *model.Transaction) {
			push(model.NewTransactionNotification(tx))
		})

		redisPublisher := publisher.NewRedisPublisher[*model.Notification](config, config.Redis, "redis-publisher").
			WithInputChannel(notifications).
			WithMonitor(monitor)

		self.Task = self.Task.WithSubtask(redisPublisher.Task)
	}

	// Live sources are started after the engine subscribed to pending transactions
	self.Task = self.Task.WithSubtask(engineTask)

	if config.Mempool.Enabled {
		mempoolMonitor := listener.NewMempoolMonitor(config).
			WithNode(provider).
			WithMonitor(monitor)

		self.Task = self.Task.WithSubtask(mempoolMonitor.Task)
	}

	if config.Redis.Enabled {
		redisSource := listener.NewRedisSource(config).
			WithNode(provider).
			WithMonitor(monitor)

		self.Task = self.Task.WithSubtask(redisSource.Task)
	}

	self.Task = self.Task.WithOnAfterStop(func() {
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		err = sqlDB.Close()
		if err != nil {
			self.Log.WithError(err).Error("Failed to close database connection")
		}
	})

	return
}

// Block after the highest stored one, configured height if nothing is stored
func getStartHeight(ctx context.Context, config *config.Config, store BlockStore) (int64, error) {
	highest, err := store.GetHighestBlock(ctx)
	if err != nil {
		return 0, err
	}

	if highest == nil {
		return config.Syncer.StartHeight, nil
	}
	return highest.Number + 1, nil
}
