package job

import "time"

// Job is a snapshot of a scheduled unit of work as stored by the job
// store. Identity, the command vector, resource request and scheduling
// metadata are immutable once created; Status and the terminal fields are
// set by the store's atomic transitions.
//
// Job values returned by the store are independent snapshots: mutating
// the fields of a returned Job does not change the underlying row.
// Transitions must go through the store's Claimer operations.
type Job struct {
	ID      string
	Command []string

	GPUs      int
	Priority  int
	MemoryTag string
	Cwd       string

	Status Status

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	GPUsAssigned []int

	ReturnCode *int
	Stdout     string
	Stderr     string
	PID        *int
}

// Running reports whether the job currently owns a worker slot.
func (j *Job) Running() bool {
	return j.Status == StatusRunning
}

// Terminal reports whether the job's status allows no further
// transitions except the administrative ClearJobs operation.
func (j *Job) Terminal() bool {
	return j.Status.Terminal()
}
