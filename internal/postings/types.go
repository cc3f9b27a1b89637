// Package postings records job and event postings and announces them to the
// role channels that should see them.
package postings

import (
	"context"
	"errors"
	"time"

	"github.com/alumnet/alumnet/internal/event"
)

// Kind distinguishes job postings from events.
type Kind string

const (
	KindJob   Kind = "JOB"
	KindEvent Kind = "EVENT"
)

var ErrInvalidInput = errors.New("invalid posting input")

// Posting is a stored job or event.
type Posting struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Title        string    `json:"title"`
	Organization string    `json:"organization,omitempty"`
	Location     string    `json:"location,omitempty"`
	StartsAt     time.Time `json:"startsAt,omitzero"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

type JobInput struct {
	Title    string
	Company  string
	Location string
	PostedBy string
}

type EventInput struct {
	Title     string
	Location  string
	StartsAt  time.Time
	CreatedBy string
}

type Store interface {
	Insert(ctx context.Context, p Posting) (Posting, error)
	List(ctx context.Context, kind Kind, limit int) ([]Posting, error)
}

// Notifier receives new postings. *event.Dispatcher implements it.
type Notifier interface {
	Emit(ev event.Event) (event.Report, error)
}
