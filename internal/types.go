package internal

import "time"

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ProtocolPass is the distinct-protocol survey taken after one repair step.
// Step 0 is the survey of the untouched input.
type ProtocolPass struct {
	Step      int          `json:"step"`
	Rule      string       `json:"rule"`
	Protocols []ValueCount `json:"protocols"`
	Missing   int          `json:"missing"`
}

type Survey struct {
	Passes            []ProtocolPass `json:"passes"`
	Extensions        []ValueCount   `json:"extensions"`
	MissingExtensions int            `json:"missingExtensions"`
	Unrepaired        []string       `json:"unrepaired"`
}

type RunRow struct {
	ID              string
	InputPath       string
	InputHash       string
	OutputPath      string
	Status          RunStatus
	Error           *string
	Rows            int
	EmailColumns    int
	CategoryColumns int
	DurationMs      int64
	StartedAt       time.Time
	FinishedAt      *time.Time
}
