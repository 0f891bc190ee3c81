package tests

import (
	"os"

	"github.com/forum-rewards/rewarder/pkg/clients/forum"
)

func ReplaceEnv(newValues map[string]string, previousValues *map[string]string) {
	for k, v := range newValues {
		(*previousValues)[k] = os.Getenv(k)
		os.Setenv(k, v)
	}
}

func RestoreEnv(previousValues map[string]string) {
	for k, v := range previousValues {
		os.Setenv(k, v)
	}
}

// ForumUser builds a forum record; an empty email yields a record with the
// email field absent.
func ForumUser(email string, postCount uint64) *forum.User {
	u := &forum.User{PostCount: postCount}
	if email != "" {
		u.Email = &email
	}
	return u
}
