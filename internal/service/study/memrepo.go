package study

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/chess-study-bot/internal/domain"
)

// memrepo is a development-only in-memory repository used when no DB is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	byID     map[int64]*domain.StudyRecord
	byPlayer map[string][]*domain.StudyRecord // playerHash -> slice (append, latest last)
	byUUID   map[string]*domain.StudyRecord   // studyUUID|playerHash -> record
}

func NewMemoryRepository() Repository {
	return &memrepo{
		byID:     make(map[int64]*domain.StudyRecord),
		byPlayer: make(map[string][]*domain.StudyRecord),
		byUUID:   make(map[string]*domain.StudyRecord),
	}
}

func (m *memrepo) InsertStudy(ctx context.Context, record *domain.StudyRecord) (int64, error) {
	if record == nil {
		return 0, ErrDuplicateStudy
	}

	key := m.uuidKey(record.StudyUUID, record.PlayerHash)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byUUID[key]; exists {
		return 0, ErrDuplicateStudy
	}

	m.nextID++
	id := m.nextID
	stored := *record
	stored.ID = id

	m.byID[id] = &stored
	m.byUUID[key] = &stored
	m.byPlayer[record.PlayerHash] = append(m.byPlayer[record.PlayerHash], &stored)

	return id, nil
}

func (m *memrepo) GetRecentStudies(ctx context.Context, playerHash string, limit int) ([]*domain.StudyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byPlayer[playerHash]
	if len(list) == 0 {
		return []*domain.StudyRecord{}, nil
	}
	items := append([]*domain.StudyRecord(nil), list...)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetStudy(ctx context.Context, id int64, playerHash string) (*domain.StudyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.byID[id]
	if !ok || record == nil || record.PlayerHash != playerHash {
		return nil, nil
	}
	stored := *record
	return &stored, nil
}

func (m *memrepo) GetStudyByUUID(ctx context.Context, studyUUID string, playerHash string) (*domain.StudyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if record, ok := m.byUUID[m.uuidKey(studyUUID, playerHash)]; ok && record != nil {
		stored := *record
		return &stored, nil
	}
	return nil, nil
}

func (m *memrepo) uuidKey(studyUUID, playerHash string) string {
	return strings.TrimSpace(studyUUID) + "|" + strings.TrimSpace(playerHash)
}
