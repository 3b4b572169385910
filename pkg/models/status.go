package models

import "time"

// AgentStatus is a point-in-time view of the agent loop for operators
type AgentStatus struct {
	Account        string
	State          string
	Cycles         int
	Processed      int // messages handed to the policy since start
	Replied        int
	LastCycleAt    time.Time
	LastError      string
	LastErrorClass string
	StartedAt      time.Time
}
