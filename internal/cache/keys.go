package cache

import "fmt"

const SessionKeyPrefix = "session:user:%d"

// SessionKey is the Redis key of a user's conversation session.
func SessionKey(userID int64) string {
	return fmt.Sprintf(SessionKeyPrefix, userID)
}
