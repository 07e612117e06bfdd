package memory

import (
	"context"
	"sync"
)

// UserDirectory records history references per user.
type UserDirectory struct {
	mu      sync.RWMutex
	history map[string][]string
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{history: make(map[string][]string)}
}

func (d *UserDirectory) AppendHistory(_ context.Context, userID, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history[userID] = append(d.history[userID], sessionID)
	return nil
}

// History returns the session ids appended for userID, in order.
func (d *UserDirectory) History(userID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.history[userID]...)
}
