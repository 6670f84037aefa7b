package sync

type SyncState int32

const (
	Stopped SyncState = iota
	Starting
	Running
)

func (self SyncState) String() string {
	switch self {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}
