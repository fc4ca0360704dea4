package webhook

import (
	"sync"
	"time"
)

// Delivery is one matched (registration, event) pair queued for delivery.
// The delivery log is append-only and never pruned at runtime.
type Delivery struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	WebhookID string    `json:"webhookId"`
	URL       string    `json:"url"`
	Enqueued  time.Time `json:"enqueuedAt"`
}

// Attempt records the outcome of one delivery attempt.
type Attempt struct {
	EventID    string    `json:"eventId"`
	WebhookID  string    `json:"webhookId"`
	URL        string    `json:"url"`
	StatusCode int       `json:"statusCode,omitempty"`
	Error      string    `json:"error,omitempty"`
	LatencyMS  int64     `json:"latencyMs"`
	Poisoned   bool      `json:"poisoned,omitempty"`
	Success    bool      `json:"success"`
	At         time.Time `json:"at"`
}

// deliveryLog holds both append-only logs behind one mutex.
type deliveryLog struct {
	mu         sync.Mutex
	deliveries []Delivery
	attempts   []Attempt
}

func (l *deliveryLog) addDelivery(d Delivery) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliveries = append(l.deliveries, d)
}

func (l *deliveryLog) addAttempt(a Attempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, a)
}

func (l *deliveryLog) Deliveries() []Delivery {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Delivery(nil), l.deliveries...)
}

func (l *deliveryLog) Attempts() []Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Attempt(nil), l.attempts...)
}
