package services

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"scrollguard/internal/codec"
	repoerrors "scrollguard/internal/infrastructure/errors"
	"scrollguard/internal/infrastructure/logging"
	"scrollguard/internal/repository"
	"scrollguard/internal/types"
)

// JournalService owns the journal blob. Entries are appended to the bucket
// of their date and never edited.
type JournalService struct {
	store  repository.KeyValueStore
	clock  Clock
	logger logging.Logger
}

// NewJournalService creates a journal service
func NewJournalService(store repository.KeyValueStore, clock Clock, logger logging.Logger) *JournalService {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &JournalService{store: store, clock: clock, logger: logger}
}

// AddEntry appends a new entry dated today
func (j *JournalService) AddEntry(ctx context.Context, text string, mood types.Mood, tags []string) (types.JournalEntry, error) {
	now := j.clock.Now()
	entry := types.JournalEntry{
		ID:        uuid.NewString(),
		Timestamp: now.UnixMilli(),
		Date:      types.DateKey(now),
		Text:      strings.TrimSpace(text),
		Mood:      mood,
		Tags:      types.NormalizeTags(tags),
	}
	if err := entry.Validate(); err != nil {
		return types.JournalEntry{}, repoerrors.HandleValidationError("AddJournalEntry", "entry", entry.ID, err.Error())
	}

	_, err := repository.UpdateBlob(ctx, j.store, types.BlobJournal, codec.Journal, newJournal,
		func(journal map[string][]types.JournalEntry) (map[string][]types.JournalEntry, error) {
			journal[entry.Date] = append(journal[entry.Date], entry)
			return journal, nil
		})
	if err != nil {
		logging.LogError(j.logger, err, "AddJournalEntry", map[string]interface{}{"date": entry.Date})
		return types.JournalEntry{}, err
	}

	j.logger.Debug("Journal entry added", "id", entry.ID, "date", entry.Date)
	return entry, nil
}

// Entries returns the entries dated between from and to inclusive, in date
// order and append order within a date
func (j *JournalService) Entries(ctx context.Context, from, to string) ([]types.JournalEntry, error) {
	for field, key := range map[string]string{"from": from, "to": to} {
		if err := types.ValidateDateKey(key); err != nil {
			return nil, repoerrors.HandleValidationError("GetJournalEntries", field, key, err.Error())
		}
	}

	journal, _, err := repository.LoadBlob(ctx, j.store, types.BlobJournal, codec.Journal, newJournal())
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(journal))
	for date := range journal {
		if date >= from && date <= to {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	out := []types.JournalEntry{}
	for _, date := range dates {
		out = append(out, journal[date]...)
	}
	return out, nil
}

// Search returns entries whose text or tags contain query, newest first
func (j *JournalService) Search(ctx context.Context, query string, limit int) ([]types.JournalEntry, error) {
	journal, _, err := repository.LoadBlob(ctx, j.store, types.BlobJournal, codec.Journal, newJournal())
	if err != nil {
		return nil, err
	}

	var matches []types.JournalEntry
	for _, entries := range journal {
		for _, e := range entries {
			if matchesQuery(query, append([]string{e.Text}, e.Tags...)...) {
				matches = append(matches, e)
			}
		}
	}
	sort.Slice(matches, func(a, b int) bool { return matches[a].Timestamp > matches[b].Timestamp })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	if matches == nil {
		matches = []types.JournalEntry{}
	}
	return matches, nil
}

func newJournal() map[string][]types.JournalEntry {
	return map[string][]types.JournalEntry{}
}
