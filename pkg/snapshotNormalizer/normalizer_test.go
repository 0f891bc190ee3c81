package snapshotNormalizer

import (
	"testing"

	"github.com/forum-rewards/rewarder/internal/logger"
	"github.com/forum-rewards/rewarder/internal/tests"
	"github.com/forum-rewards/rewarder/pkg/clients/forum"
	"github.com/forum-rewards/rewarder/pkg/rewardsTypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identities(records []*rewardsTypes.ActivityRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Identity)
	}
	return out
}

func Test_SnapshotNormalizer(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.Nil(t, err)

	sn := NewSnapshotNormalizer(l)

	t.Run("Should drop zero activity and keep source order", func(t *testing.T) {
		snapshot := sn.Normalize([]*forum.User{
			tests.ForumUser("a@x.com", 5),
			tests.ForumUser("b@x.com", 0),
			tests.ForumUser("c@x.com", 3),
		})

		assert.Equal(t, []string{"a@x.com", "c@x.com"}, identities(snapshot.Records))
		assert.Equal(t, uint64(5), snapshot.Records[0].ActivityCount)
		assert.Equal(t, uint64(3), snapshot.Records[1].ActivityCount)
		assert.Equal(t, 1, snapshot.Inactive)
		assert.Equal(t, 0, snapshot.Malformed)
	})
	t.Run("Should skip and count records without an identity", func(t *testing.T) {
		snapshot := sn.Normalize([]*forum.User{
			tests.ForumUser("", 9),
			nil,
			tests.ForumUser("a@x.com", 1),
		})

		assert.Equal(t, []string{"a@x.com"}, identities(snapshot.Records))
		assert.Equal(t, 2, snapshot.Malformed)
	})
	t.Run("Should keep the first position and the last value for duplicates", func(t *testing.T) {
		snapshot := sn.Normalize([]*forum.User{
			tests.ForumUser("a@x.com", 1),
			tests.ForumUser("b@x.com", 2),
			tests.ForumUser("a@x.com", 7),
		})

		require.Len(t, snapshot.Records, 2)
		assert.Equal(t, "a@x.com", snapshot.Records[0].Identity)
		assert.Equal(t, uint64(7), snapshot.Records[0].ActivityCount)
		assert.Equal(t, 1, snapshot.Duplicates)
	})
	t.Run("Should not normalize identity casing or whitespace", func(t *testing.T) {
		snapshot := sn.Normalize([]*forum.User{
			tests.ForumUser("A@x.com", 1),
			tests.ForumUser("a@x.com", 2),
			tests.ForumUser(" a@x.com", 3),
		})

		assert.Equal(t, []string{"A@x.com", "a@x.com", " a@x.com"}, identities(snapshot.Records))
	})
	t.Run("Should never emit a zero count and preserve relative order", func(t *testing.T) {
		users := make([]*forum.User, 0)
		expected := make([]string, 0)
		for i := 0; i < 200; i++ {
			email := string(rune('a'+i%26)) + string(rune('a'+i/26)) + "@x.com"
			count := uint64(i % 3)
			users = append(users, tests.ForumUser(email, count))
			if count > 0 {
				expected = append(expected, email)
			}
		}

		snapshot := sn.Normalize(users)
		for _, r := range snapshot.Records {
			assert.NotEqual(t, uint64(0), r.ActivityCount)
		}
		assert.Equal(t, expected, identities(snapshot.Records))
	})
	t.Run("Should handle an empty input", func(t *testing.T) {
		snapshot := sn.Normalize(nil)
		assert.NotNil(t, snapshot.Records)
		assert.Len(t, snapshot.Records, 0)
	})
}
