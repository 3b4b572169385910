package agent

// State is the position of the loop within a cycle
type State int

const (
	Idle State = iota
	TokenAcquired
	Polling
	Processing
	Sleeping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case TokenAcquired:
		return "TokenAcquired"
	case Polling:
		return "Polling"
	case Processing:
		return "Processing"
	case Sleeping:
		return "Sleeping"
	default:
		return "Unknown"
	}
}
