package memory

import (
	"sort"

	"canvas-backend/domain/core/entities"
)

func sortMessages(messages []*entities.ChatMessage) {
	sort.SliceStable(messages, func(i, j int) bool {
		a, b := messages[i], messages[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})
}
