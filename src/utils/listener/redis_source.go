package listener

import (
	"encoding/hex"

	"github.com/chainwatch/utxo-syncer/src/utils/config"
	"github.com/chainwatch/utxo-syncer/src/utils/model"
	"github.com/chainwatch/utxo-syncer/src/utils/monitoring"
	"github.com/chainwatch/utxo-syncer/src/utils/task"

	"github.com/redis/go-redis/v9"
)

// Receives raw transactions from a Redis channel fed by a ZMQ rawtx bridge
type RedisSource struct {
	*task.Task

	redisConfig config.Redis

	node    PendingTxNode
	monitor monitoring.Monitor

	client *redis.Client
}

func NewRedisSource(config *config.Config) (self *RedisSource) {
	self = new(RedisSource)

	self.redisConfig = config.Redis

	self.Task = task.NewTask(config, "redis-source").
		WithSubtaskFunc(self.run).
		WithOnAfterStop(self.disconnect)

	return
}

func (self *RedisSource) WithNode(node PendingTxNode) *RedisSource {
	self.node = node
	return self
}

func (self *RedisSource) WithMonitor(monitor monitoring.Monitor) *RedisSource {
	self.monitor = monitor
	return self
}

func (self *RedisSource) disconnect() {
	if self.client == nil {
		return
	}
	err := self.client.Close()
	if err != nil {
		self.Log.WithError(err).Error("Failed to close connection")
	}
}

// Connects and subscribes, retrying till it succeeds or the task is stopped
func (self *RedisSource) subscribe() (pubsub *redis.PubSub, err error) {
	err = task.NewRetry().
		WithContext(self.Ctx).
		WithMaxElapsedTime(self.redisConfig.MaxElapsedTime).
		WithMaxInterval(self.redisConfig.MaxInterval).
		WithOnError(func(err error, isDurationAcceptable bool) error {
			self.Log.WithError(err).Warn("Failed to subscribe to Redis, retrying")
			self.monitor.GetReport().Mempool.Errors.RedisSubscribe.Inc()
			return err
		}).
		Run(func() (err error) {
			if self.client == nil {
				self.client, err = model.NewRedisConnection(self.Ctx, &self.redisConfig, self.Name)
				if err != nil {
					return
				}
			}

			pubsub = self.client.Subscribe(self.Ctx, self.redisConfig.RawTxChannel)

			// Wait for the confirmation
			_, err = pubsub.Receive(self.Ctx)
			if err != nil {
				_ = pubsub.Close()
			}
			return
		})
	return
}

func (self *RedisSource) run() (err error) {
	pubsub, err := self.subscribe()
	if err != nil {
		if self.IsStopping.Load() {
			return nil
		}
		return
	}
	defer pubsub.Close()

	self.Log.WithField("channel", self.redisConfig.RawTxChannel).Info("Subscribed to raw transactions")

	// Channel is reconnected by the client, it gets closed only with pubsub
	messages := pubsub.Channel()
	for {
		select {
		case <-self.StopChannel:
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			self.monitor.GetReport().Mempool.State.RedisMessages.Inc()
			self.node.EmitPendingTx(normalizeRawTx(msg.Payload))
		}
	}
}

// Bridges may publish the transaction as hex or as raw bytes
func normalizeRawTx(payload string) string {
	_, err := hex.DecodeString(payload)
	if err == nil {
		return payload
	}
	return hex.EncodeToString([]byte(payload))
}
