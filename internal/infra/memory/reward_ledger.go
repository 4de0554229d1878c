package memory

import (
	"context"
	"strconv"
	"sync"
)

// UserRewards is an in-memory user reward record with the account service's
// level rule: level up while xp reaches level*100.
type UserRewards struct {
	XP      int
	Level   int
	Thalers int
}

// RewardLedger is the in-memory RewardSettler for dev mode and tests. A
// (matchID, userID) pair settles at most once no matter how often it is
// retried.
type RewardLedger struct {
	mu      sync.Mutex
	settled map[string]struct{}
	users   map[int64]*UserRewards
}

func NewRewardLedger() *RewardLedger {
	return &RewardLedger{
		settled: make(map[string]struct{}),
		users:   make(map[int64]*UserRewards),
	}
}

func (l *RewardLedger) Settle(_ context.Context, matchID string, userID int64, xp, thalers int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := matchID + "/" + strconv.FormatInt(userID, 10)
	if _, done := l.settled[key]; done {
		return nil
	}
	l.settled[key] = struct{}{}

	user, ok := l.users[userID]
	if !ok {
		user = &UserRewards{Level: 1}
		l.users[userID] = user
	}
	user.XP += xp
	user.Thalers += thalers
	for user.XP >= user.Level*100 {
		user.Level++
	}
	return nil
}

// User returns a copy of a user's reward record.
func (l *RewardLedger) User(userID int64) (UserRewards, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	user, ok := l.users[userID]
	if !ok {
		return UserRewards{}, false
	}
	return *user, true
}
