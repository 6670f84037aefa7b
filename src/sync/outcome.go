package sync

import (
	"github.com/chainwatch/utxo-syncer/src/utils/bitcoin"
)

// Result of fetching the block at the height cursor
type OutcomeKind int

const (
	// Block is fetched and can be committed
	OutcomeReady OutcomeKind = iota

	// Node doesn't have a block at this height yet
	OutcomeNotYetAvailable

	// Stored predecessor doesn't match the node's chain
	OutcomeReorg

	// Any other failure
	OutcomeOther
)

func (self OutcomeKind) String() string {
	switch self {
	case OutcomeReady:
		return "ready"
	case OutcomeNotYetAvailable:
		return "not_yet_available"
	case OutcomeReorg:
		return "reorg"
	default:
		return "other"
	}
}

type Outcome struct {
	Kind  OutcomeKind
	Block *bitcoin.Block
	Err   error
}

func Ready(block *bitcoin.Block) Outcome {
	return Outcome{Kind: OutcomeReady, Block: block}
}

func NotYetAvailable() Outcome {
	return Outcome{Kind: OutcomeNotYetAvailable}
}

func Reorg() Outcome {
	return Outcome{Kind: OutcomeReorg}
}

func Other(err error) Outcome {
	return Outcome{Kind: OutcomeOther, Err: err}
}

type Action int

const (
	ActionCommit Action = iota
	ActionWait
	ActionRollback
	ActionContinue
)

func (self Action) String() string {
	switch self {
	case ActionCommit:
		return "commit"
	case ActionWait:
		return "wait"
	case ActionRollback:
		return "rollback"
	default:
		return "continue"
	}
}

var decisions = map[OutcomeKind]Action{
	OutcomeReady:           ActionCommit,
	OutcomeNotYetAvailable: ActionWait,
	OutcomeReorg:           ActionRollback,
	OutcomeOther:           ActionContinue,
}

// Maps the outcome of a fetch to what the main loop does next
func decide(outcome Outcome) Action {
	action, ok := decisions[outcome.Kind]
	if !ok {
		return ActionContinue
	}
	return action
}
