package tests

import (
	"context"
	"sync"

	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
)

// FakeNotifier records every message it is asked to send.
type FakeNotifier struct {
	lock     sync.Mutex
	Messages []string
	// Err, when set, is returned (as a NotificationError) from every Send.
	Err error
}

func (n *FakeNotifier) Send(ctx context.Context, text string) error {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.Messages = append(n.Messages, text)
	if n.Err != nil {
		return &rewardsTypes.NotificationError{Err: n.Err}
	}
	return nil
}

func (n *FakeNotifier) GetMessages() []string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]string{}, n.Messages...)
}
