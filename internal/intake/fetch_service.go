package intake

import (
	"context"

	"cusplit/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *DocumentStore
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawDir string, connector MailConnector) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewDocumentStore(db, rawDir),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		rows, err := s.store.Store(msg)
		if err != nil {
			return FetchResult{}, err
		}
		stored += len(rows)
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
