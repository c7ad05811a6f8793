package cache

import (
	"fmt"
	"time"
)

// PostKeyPrefix formats the cache key of a post detail.
const PostKeyPrefix = "post:%d"

// PostTTL bounds how long a post detail may be served from cache.
const PostTTL = 5 * time.Minute

// PostKey is the cache key for a post detail (post plus comments).
func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}
