package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chainwatch/utxo-syncer/src/utils/common"
	"github.com/chainwatch/utxo-syncer/src/utils/config"
	"github.com/chainwatch/utxo-syncer/src/utils/logger"

	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Unit of work with a lifecycle: optional subtasks (tasks or plain functions), hooks and a worker pool.
//
// Start runs the before-start hooks, starts subtasks and returns. Stop closes StopChannel,
// cancels Ctx and runs the stop hooks. After-stop hooks run once every subtask returned,
// then CtxRunning gets cancelled.
type Task struct {
	Config *config.Config
	Log    *logrus.Entry
	Name   string

	// Set by Stop
	IsStopping  *atomic.Bool
	StopChannel chan struct{}
	stopOnce    sync.Once

	// Counts everything that keeps the task running
	running sync.WaitGroup

	// Cancelled after the task finished, used by the owner
	CtxRunning    context.Context
	cancelRunning context.CancelFunc

	// Cancelled by Stop, used by subtasks
	Ctx    context.Context
	cancel context.CancelFunc

	// Optional, see WithWorkerPool
	Workers *workerpool.WorkerPool

	onBeforeStart []func() error
	onStop        []func()
	onAfterStop   []func()
	subtasksFunc  []func() error
	subtasks      []*Task
}

func NewTask(config *config.Config, name string) (self *Task) {
	self = new(Task)
	self.Name = name
	self.Log = logger.NewSublogger(name)
	self.Config = config

	self.Ctx, self.cancel = context.WithCancel(common.SetConfig(context.Background(), config))
	self.CtxRunning, self.cancelRunning = context.WithCancel(common.SetConfig(context.Background(), config))

	self.IsStopping = atomic.NewBool(false)
	self.StopChannel = make(chan struct{})

	return
}

func (self *Task) WithOnBeforeStart(f func() error) *Task {
	self.onBeforeStart = append(self.onBeforeStart, f)
	return self
}

func (self *Task) WithOnAfterStop(f func()) *Task {
	self.onAfterStop = append(self.onAfterStop, f)
	return self
}

func (self *Task) WithOnStop(f func()) *Task {
	self.onStop = append(self.onStop, f)
	return self
}

// Parent finishes only after the subtask finished
func (self *Task) WithSubtask(t *Task) *Task {
	t = t.WithOnBeforeStart(func() error {
		self.running.Add(1)
		return nil
	}).WithOnAfterStop(self.running.Done)

	self.subtasks = append(self.subtasks, t)
	return self
}

func (self *Task) WithSubtaskFunc(f func() error) *Task {
	self.subtasksFunc = append(self.subtasksFunc, f)
	return self
}

// Runs f right after start and then period after each run finished, till the task is stopped.
// Error returned by f ends the subtask.
func (self *Task) WithPeriodicSubtaskFunc(period time.Duration, f func() error) *Task {
	return self.WithSubtaskFunc(func() error {
		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-self.StopChannel:
				self.Log.Debug("Periodic subtask stopped")
				return nil
			case <-timer.C:
			}

			err := f()
			if err != nil {
				return err
			}

			timer.Reset(period)
		}
	})
}

// Pool accepts work from Start till every subtask finished after Stop
func (self *Task) WithWorkerPool(maxWorkers int) *Task {
	self.Workers = workerpool.New(maxWorkers)

	return self.
		WithOnBeforeStart(func() error {
			// Released by Stop, so a task without subtasks keeps its pool till then
			self.running.Add(1)
			return nil
		}).
		WithOnStop(self.running.Done).
		WithOnAfterStop(self.Workers.StopWait)
}

// Queues f for one of the workers without blocking. False if the pool is already stopped.
func (self *Task) SubmitToWorker(f func()) bool {
	if self.Workers.Stopped() {
		return false
	}
	self.Workers.Submit(f)
	return true
}

func (self *Task) run(subtask func() error) {
	self.running.Add(1)
	go func() {
		defer func() {
			self.running.Done()

			if p := recover(); p != nil {
				err, ok := p.(error)
				if !ok {
					err = fmt.Errorf("%v", p)
				}
				self.Log.WithError(err).Error("Subtask panicked")
				panic(p)
			}
		}()

		err := subtask()
		if err != nil {
			self.Log.WithError(err).Error("Subtask failed")
		}
	}()
}

func (self *Task) Start() (err error) {
	for _, cb := range self.onBeforeStart {
		err = cb()
		if err != nil {
			return
		}
	}

	for _, subtask := range self.subtasks {
		err = subtask.Start()
		if err != nil {
			return
		}
	}

	for _, subtask := range self.subtasksFunc {
		self.run(subtask)
	}

	go func() {
		// Subtasks are expected to return after Stop
		self.running.Wait()

		for _, cb := range self.onAfterStop {
			cb()
		}

		self.cancelRunning()
	}()

	return nil
}

// Non-blocking, safe to call multiple times
func (self *Task) Stop() {
	self.stopOnce.Do(func() {
		self.Log.Info("Stopping...")

		for _, subtask := range self.subtasks {
			subtask.Stop()
		}

		self.IsStopping.Store(true)
		close(self.StopChannel)
		self.cancel()

		for _, cb := range self.onStop {
			cb()
		}
	})
}

// Stops and waits at most StopTimeout for the task to finish
func (self *Task) StopWait() {
	timeout := 30 * time.Second
	if self.Config != nil && self.Config.StopTimeout > 0 {
		timeout = self.Config.StopTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	self.Stop()

	select {
	case <-timer.C:
		self.Log.Error("Timeout reached, failed to stop")
	case <-self.CtxRunning.Done():
		self.Log.Info("Task finished")
	}
}
