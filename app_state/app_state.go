// Package app_state holds the cross-cutting UI state shared by the client
// controller and the dashboard: the loading indicator, the notification queue
// and the layout mode. It is passed explicitly to the components that need it.
package app_state

import (
	"sync"
	"time"
)

// State groups the application wide signals.
type State struct {
	Loading *LoadingSignal
	Notices *Notifier
}

// New returns a State with an idle loading signal and an empty notification
// queue holding up to DefaultNotificationCapacity entries.
func New() *State {
	return &State{
		Loading: NewLoadingSignal(),
		Notices: NewNotifier(DefaultNotificationCapacity),
	}
}

// LoadingSignal is a counted "busy" flag: Set(true) calls nest, and the signal
// only turns off after a matching number of Set(false) calls.
type LoadingSignal struct {
	mu      sync.Mutex
	depth   int
	changes chan struct{}
}

func NewLoadingSignal() *LoadingSignal {
	return &LoadingSignal{changes: make(chan struct{}, 1)}
}

// Set increments (true) or decrements (false) the busy count.
// Unbalanced Set(false) calls are ignored.
func (l *LoadingSignal) Set(loading bool) {
	l.mu.Lock()
	was := l.depth > 0
	if loading {
		l.depth++
	} else if l.depth > 0 {
		l.depth--
	}
	now := l.depth > 0
	l.mu.Unlock()

	if was != now {
		signal(l.changes)
	}
}

// Hold turns the signal on and returns the function that turns it off again.
func (l *LoadingSignal) Hold() func() {
	l.Set(true)
	var once sync.Once
	return func() {
		once.Do(func() { l.Set(false) })
	}
}

// IsLoading reports whether any operation holds the signal.
func (l *LoadingSignal) IsLoading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth > 0
}

// Changes receives a value whenever IsLoading flips. Notifications coalesce.
func (l *LoadingSignal) Changes() <-chan struct{} {
	return l.changes
}

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one transient message for the user.
type Notification struct {
	Level   Level
	Message string
	Time    time.Time
}

// DefaultNotificationCapacity is the queue size used by New.
const DefaultNotificationCapacity = 32

// Notifier is a bounded FIFO of notifications. When full, the oldest entry is dropped.
type Notifier struct {
	mu       sync.Mutex
	queue    []Notification
	capacity int
	dropped  int
	changes  chan struct{}
	now      func() time.Time
}

func NewNotifier(capacity int) *Notifier {
	if capacity < 1 {
		capacity = 1
	}
	return &Notifier{
		capacity: capacity,
		changes:  make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Notify queues a message.
func (n *Notifier) Notify(level Level, message string) {
	n.mu.Lock()
	if len(n.queue) == n.capacity {
		n.queue = n.queue[1:]
		n.dropped++
	}
	n.queue = append(n.queue, Notification{Level: level, Message: message, Time: n.now()})
	n.mu.Unlock()
	signal(n.changes)
}

func (n *Notifier) Info(message string) {
	n.Notify(LevelInfo, message)
}

func (n *Notifier) Success(message string) {
	n.Notify(LevelSuccess, message)
}

func (n *Notifier) Error(message string) {
	n.Notify(LevelError, message)
}

// Drain returns and removes all queued notifications, oldest first.
func (n *Notifier) Drain() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.queue
	n.queue = nil
	return out
}

// Pending returns the number of queued notifications.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Dropped returns how many notifications were discarded because the queue was full.
func (n *Notifier) Dropped() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.dropped
}

// Changes receives a value after a notification was queued. Notifications coalesce.
func (n *Notifier) Changes() <-chan struct{} {
	return n.changes
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
