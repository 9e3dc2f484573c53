package usecase

import (
	"sync"
	"time"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
)

// AlertQueue is the bounded outbound notification channel. When the front end
// falls behind, the oldest alert is dropped so the bot never blocks on it.
type AlertQueue struct {
	mu      sync.Mutex
	ch      chan domain.Alert
	dropped int
}

func NewAlertQueue(capacity int) *AlertQueue {
	if capacity <= 0 {
		capacity = 128
	}
	return &AlertQueue{ch: make(chan domain.Alert, capacity)}
}

// Publish enqueues an alert, evicting the oldest entry when full.
func (q *AlertQueue) Publish(level domain.AlertLevel, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	alert := domain.Alert{Level: level, Message: message, Timestamp: time.Now()}
	for {
		select {
		case q.ch <- alert:
			return
		default:
			select {
			case <-q.ch:
				q.dropped++
			default:
			}
		}
	}
}

// Dropped counts alerts evicted because the queue overflowed.
func (q *AlertQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// C is the consumer side, read by the web alert stream.
func (q *AlertQueue) C() <-chan domain.Alert {
	return q.ch
}

func (q *AlertQueue) Len() int {
	return len(q.ch)
}
