package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
)

const cacheKeyPrefix = "export:"

// CacheKey identifies one rendering of one state of a session. Messages are
// append-only, so the count and the highest Seq pin the history.
func CacheKey(sessionID valueobjects.SessionID, format Format, opts ExportOptions, messages []*entities.ChatMessage) string {
	var lastSeq int64
	for _, m := range messages {
		if m.Seq > lastSeq {
			lastSeq = m.Seq
		}
	}

	// ExportOptions only holds plain fields, so Marshal cannot fail
	encodedOpts, _ := json.Marshal(opts)

	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|", sessionID, format, len(messages), lastSeq)
	h.Write(encodedOpts)
	return cacheKeyPrefix + sessionID.String() + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}
