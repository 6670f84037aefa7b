package bitcoin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chainwatch/utxo-syncer/src/utils/build_info"
	"github.com/chainwatch/utxo-syncer/src/utils/config"
	"github.com/chainwatch/utxo-syncer/src/utils/logger"
	"github.com/chainwatch/utxo-syncer/src/utils/task"

	evbus "github.com/asaskevich/EventBus"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const topicPendingTx = "pendingTx"

// Handle to the node: JSON-RPC calls and the stream of pending transactions
type Provider struct {
	config  *config.Config
	log     *logrus.Entry
	client  *resty.Client
	limiter *rate.Limiter
	decoder *Decoder

	// Pending transactions pushed by the live sources
	bus evbus.Bus
}

type request struct {
	JsonRpc string `json:"jsonrpc"`
	Id      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	Id     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func NewProvider(config *config.Config) (self *Provider, err error) {
	self = new(Provider)
	self.config = config
	self.log = logger.NewSublogger("provider")
	self.bus = evbus.New()

	self.decoder, err = NewDecoder(config.Node.Network)
	if err != nil {
		return
	}

	self.limiter = rate.NewLimiter(rate.Limit(config.Node.Limit), config.Node.Burst)

	self.client = resty.New().
		SetBaseURL(config.Node.Url).
		SetBasicAuth(config.Node.User, config.Node.Password).
		SetTimeout(config.Node.RequestTimeout).
		SetHeader("User-Agent", "utxo-syncer/"+build_info.Version).
		SetHeader("Content-Type", "application/json")

	return
}

func (self *Provider) Decoder() *Decoder {
	return self.decoder
}

// Calls the method on the node and unmarshals the result into out (if not nil).
// Errors reported by the node are returned as *RPCError and aren't retried.
func (self *Provider) Execute(ctx context.Context, method string, params []any, out any) (err error) {
	if params == nil {
		params = []any{}
	}

	req := &request{
		JsonRpc: "1.0",
		Id:      xid.New().String(),
		Method:  method,
		Params:  params,
	}

	var body response
	err = task.NewRetry().
		WithContext(ctx).
		WithMaxElapsedTime(self.config.Node.MaxElapsedTime).
		WithMaxInterval(self.config.Node.MaxInterval).
		WithOnError(func(err error, isDurationAcceptable bool) error {
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) || errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}

			self.log.WithError(err).WithField("method", method).Warn("Node request failed, retrying")
			return err
		}).
		Run(func() error {
			err := self.limiter.Wait(ctx)
			if err != nil {
				return err
			}

			body = response{}
			resp, err := self.client.R().
				SetContext(ctx).
				SetBody(req).
				SetResult(&body).
				SetError(&body).
				Post("/")
			if err != nil {
				return err
			}

			// Node reports errors with a non-2xx status and a JSON body
			if body.Error != nil {
				return body.Error
			}

			if resp.IsError() {
				return fmt.Errorf("%w: %s", ErrBadResponse, resp.Status())
			}
			return nil
		})
	if err != nil {
		return
	}

	if out == nil {
		return nil
	}

	err = json.Unmarshal(body.Result, out)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFailedToParse, method, err)
	}
	return nil
}

// Registers a handler for raw pending transactions. Handlers run synchronously in the emitter's goroutine.
func (self *Provider) OnPendingTx(fn func(rawHex string)) (unsubscribe func()) {
	err := self.bus.Subscribe(topicPendingTx, fn)
	if err != nil {
		self.log.WithError(err).Error("Failed to subscribe to pending transactions")
		return func() {}
	}

	return func() {
		err := self.bus.Unsubscribe(topicPendingTx, fn)
		if err != nil {
			self.log.WithError(err).Warn("Failed to unsubscribe from pending transactions")
		}
	}
}

// Called by the live sources for each pending transaction they observe
func (self *Provider) EmitPendingTx(rawHex string) {
	self.bus.Publish(topicPendingTx, rawHex)
}
