package sqlite

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/nkh361/ravel-scheduler/job"
)

// jobModel mirrors the "jobs" table. Command and GPUsAssigned are stored
// as JSON text columns: this keeps argv
// unambiguous across shells and platforms; no shell is ever invoked by
// the worker).
type jobModel struct {
	bun.BaseModel `bun:"table:jobs"`

	ID      string `bun:"id,pk"`
	Command string `bun:"command,notnull"`

	GPUs      int    `bun:"gpus,notnull"`
	Priority  int    `bun:"priority,notnull,default:0"`
	MemoryTag string `bun:"memory_tag"`
	Cwd       string `bun:"cwd"`

	Status string `bun:"status,notnull"`

	CreatedAt  time.Time  `bun:"created_at,notnull"`
	StartedAt  *time.Time `bun:"started_at"`
	FinishedAt *time.Time `bun:"finished_at"`

	GPUsAssigned string `bun:"gpus_assigned"`

	ReturnCode *int   `bun:"returncode"`
	Stdout     string `bun:"stdout"`
	Stderr     string `bun:"stderr"`
	PID        *int   `bun:"pid"`

	RowID int64 `bun:"rowid,scanonly"`
}

// depModel mirrors the "job_dependencies" table: a directed edge
// jobID -> dependsOn. Self-loops and edges naming an unknown job are
// both permitted; readiness simply never sees them satisfied.
type depModel struct {
	bun.BaseModel `bun:"table:job_dependencies"`

	JobID     string `bun:"job_id,pk"`
	DependsOn string `bun:"depends_on,pk"`
}

func marshalCommand(command []string) string {
	b, _ := json.Marshal(command)
	return string(b)
}

func unmarshalCommand(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func marshalGPUs(gpus []int) string {
	if len(gpus) == 0 {
		return ""
	}
	b, _ := json.Marshal(gpus)
	return string(b)
}

func unmarshalGPUs(raw string) []int {
	if raw == "" {
		return nil
	}
	var out []int
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func (m *jobModel) toJob() *job.Job {
	status, _ := job.ParseStatus(m.Status)
	return &job.Job{
		ID:           m.ID,
		Command:      unmarshalCommand(m.Command),
		GPUs:         m.GPUs,
		Priority:     m.Priority,
		MemoryTag:    m.MemoryTag,
		Cwd:          m.Cwd,
		Status:       status,
		CreatedAt:    m.CreatedAt,
		StartedAt:    m.StartedAt,
		FinishedAt:   m.FinishedAt,
		GPUsAssigned: unmarshalGPUs(m.GPUsAssigned),
		ReturnCode:   m.ReturnCode,
		Stdout:       m.Stdout,
		Stderr:       m.Stderr,
		PID:          m.PID,
	}
}
