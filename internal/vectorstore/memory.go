package vectorstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"drivemind/internal/models"
)

// MemoryStore is an in-process Store used in tests and single-node setups.
// Search ranks by token overlap between query and chunk instead of vector
// distance.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	docs        map[string]Document
	manifest    []models.FileDescriptor
	hasManifest bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) collection(name string) *memoryCollection {
	coll, ok := s.collections[name]
	if !ok {
		coll = &memoryCollection{docs: make(map[string]Document)}
		s.collections[name] = coll
	}
	return coll
}

func (s *MemoryStore) Upsert(_ context.Context, userID, folderID string, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(CollectionName(userID, folderID))
	for _, d := range docs {
		coll.docs[d.ID] = d
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, userID, folderID, query string, topK int, fileName string) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[CollectionName(userID, folderID)]
	if !ok {
		return nil, nil
	}

	queryTokens := tokenize(query)
	var hits []SearchHit
	for _, d := range coll.docs {
		if fileName != "" && d.Metadata.FileName != fileName {
			continue
		}
		hits = append(hits, SearchHit{
			Content:  d.Content,
			Metadata: d.Metadata,
			Distance: 1 - overlapScore(queryTokens, tokenize(d.Content)),
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) StoreFileManifest(_ context.Context, userID, folderID string, files []models.FileDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(CollectionName(userID, folderID))
	coll.manifest = append([]models.FileDescriptor(nil), files...)
	coll.hasManifest = true
	return nil
}

func (s *MemoryStore) GetFileManifest(_ context.Context, userID, folderID string) ([]models.FileDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[CollectionName(userID, folderID)]
	if !ok || !coll.hasManifest {
		return []models.FileDescriptor{}, nil
	}
	return append([]models.FileDescriptor(nil), coll.manifest...), nil
}

func (s *MemoryStore) DropCollection(_ context.Context, userID, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, CollectionName(userID, folderID))
	return nil
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(text)) {
		tokens[strings.Trim(t, ".,;:!?\"'()")] = struct{}{}
	}
	return tokens
}

func overlapScore(query, doc map[string]struct{}) float32 {
	if len(query) == 0 {
		return 0
	}
	matches := 0
	for t := range query {
		if _, ok := doc[t]; ok {
			matches++
		}
	}
	return float32(matches) / float32(len(query))
}
