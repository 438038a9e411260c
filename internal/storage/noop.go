package storage

import "github.com/dialdesk/acd/internal/types"

// Store defines the storage interface for queue-log persistence
type Store interface {
	SaveQueueLog(record types.QueueLogRecord) error
	GetQueueLogs(dateKey string) ([]types.QueueLogRecord, error)
	GetQueueLogsByQueue(dateKey, queue string) ([]types.QueueLogRecord, error)
	TruncateAll() error
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveQueueLog(_ types.QueueLogRecord) error { return nil }
func (s *NoopStore) GetQueueLogs(_ string) ([]types.QueueLogRecord, error) {
	return nil, nil
}
func (s *NoopStore) GetQueueLogsByQueue(_, _ string) ([]types.QueueLogRecord, error) {
	return nil, nil
}
func (s *NoopStore) TruncateAll() error { return nil }
