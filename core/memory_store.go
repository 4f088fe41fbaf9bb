package core

import "context"

// MemoryStore persists a bounded, ordered history of ConversationRecords per
// PairKey. Implementations truncate to their cap on Append, oldest first.
// Recent returns records oldest first.
type MemoryStore interface {
	Recent(ctx context.Context, key PairKey) ([]ConversationRecord, error)
	Append(ctx context.Context, rec ConversationRecord) error
}
