package checkout

import "sync"

// chatLocks hands out one mutex per chat id. Locks are never removed;
// the map grows with the number of distinct chats seen by the process,
// which is bounded by the audience of a single venue bot.
type chatLocks struct {
	mu    *sync.Mutex
	locks map[int64]*sync.Mutex
}

func newChatLocks() chatLocks {
	return chatLocks{mu: &sync.Mutex{}, locks: make(map[int64]*sync.Mutex)}
}

func (c chatLocks) lock(chatID int64) func() {
	c.mu.Lock()
	l, ok := c.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[chatID] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}
