package domain

import "github.com/sirupsen/logrus"

// Status classifies the result of processing a single input row.
type Status string

const (
	StatusInserted  Status = "inserted"
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// NoEntityID is recorded when a row did not produce or locate an entity.
const NoEntityID int64 = -1

// Outcome is the per-row result of a batch. Every input row receives exactly
// one outcome.
type Outcome struct {
	Status   Status
	EntityID int64
	Message  string
}

func Inserted(id int64, message string) Outcome {
	return Outcome{Status: StatusInserted, EntityID: id, Message: message}
}

func Updated(id int64, message string) Outcome {
	return Outcome{Status: StatusUpdated, EntityID: id, Message: message}
}

func Unchanged(id int64, message string) Outcome {
	return Outcome{Status: StatusUnchanged, EntityID: id, Message: message}
}

func Skipped(message string) Outcome {
	return Outcome{Status: StatusSkipped, EntityID: NoEntityID, Message: message}
}

func Failed(message string) Outcome {
	return Outcome{Status: StatusError, EntityID: NoEntityID, Message: message}
}

// BatchProgress accumulates running counters over a batch. It is an explicit
// value threaded through the row loop, never package-level state, so two
// batches can run in one process without interference.
type BatchProgress struct {
	Total     int
	Processed int
	Inserted  int
	Updated   int
	Unchanged int
	Skipped   int
	Errors    int
	Cancelled int
}

// Record counts one outcome.
func (p *BatchProgress) Record(o Outcome) {
	p.Processed++
	switch o.Status {
	case StatusInserted:
		p.Inserted++
	case StatusUpdated:
		p.Updated++
	case StatusUnchanged:
		p.Unchanged++
	case StatusSkipped:
		p.Skipped++
	case StatusError:
		p.Errors++
	case StatusCancelled:
		p.Cancelled++
	}
}

func (p BatchProgress) Fields() logrus.Fields {
	return logrus.Fields{
		"processed": p.Processed,
		"total":     p.Total,
		"inserted":  p.Inserted,
		"updated":   p.Updated,
		"unchanged": p.Unchanged,
		"skipped":   p.Skipped,
		"errors":    p.Errors,
	}
}
