package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar follows how many of a known number of items are done.
type ProgressBar struct {
	sync.Mutex
	ID         string
	Name       string
	StartTime  time.Time
	Total      uint64
	Finished   uint64
	InProgress uint64
}

// Update sets the number of finished and in-progress items. Finished items
// are never taken back.
func (b *ProgressBar) Update(finished, inProgress uint64) {
	b.Lock()
	defer b.Unlock()

	if finished > b.Finished {
		b.Finished = finished
	}

	b.InProgress = inProgress
}

// Remaining returns the number of items that are neither finished nor in
// progress.
func (b *ProgressBar) Remaining() uint64 {
	b.Lock()
	defer b.Unlock()

	started := b.Finished + b.InProgress
	if started >= b.Total {
		return 0
	}

	return b.Total - started
}

// Estimate extrapolates the wall time left from the rate so far. It
// returns false before the first item is done.
func (b *ProgressBar) Estimate(now time.Time) (time.Duration, bool) {
	b.Lock()
	defer b.Unlock()

	if b.Finished == 0 {
		return 0, false
	}

	elapsed := now.Sub(b.StartTime)
	perItem := elapsed / time.Duration(b.Finished)

	left := uint64(0)
	if b.Total > b.Finished {
		left = b.Total - b.Finished
	}

	return perItem * time.Duration(left), true
}

type progressView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

func (b *ProgressBar) view() progressView {
	b.Lock()
	defer b.Unlock()

	return progressView{
		ID:         b.ID,
		Name:       b.Name,
		StartTime:  b.StartTime,
		Total:      b.Total,
		Finished:   b.Finished,
		InProgress: b.InProgress,
	}
}
