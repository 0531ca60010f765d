package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formbricks/promptrank/internal/models"
	"github.com/formbricks/promptrank/internal/rankerrors"
)

// memoryStore is an in-memory PromptsRepository keeping insertion order as store order.
// The *Err fields inject failures into the matching method.
type memoryStore struct {
	mu      sync.Mutex
	order   []uuid.UUID
	prompts map[uuid.UUID]*models.Prompt
	claims  map[uuid.UUID]time.Time

	setEmbeddingCalls int
	releaseCalls      int

	findErr         error
	findOneErr      error
	setEmbeddingErr error
	claimErr        error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		prompts: map[uuid.UUID]*models.Prompt{},
		claims:  map[uuid.UUID]time.Time{},
	}
}

func (m *memoryStore) add(owner, text string, c models.Category, s models.Status, emb []float32) *models.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &models.Prompt{
		ID:        uuid.Must(uuid.NewV7()),
		OwnerName: owner,
		Prompt:    text,
		Category:  c,
		Status:    s,
		Embedding: emb,
		CreatedAt: time.Now(),
	}
	m.prompts[p.ID] = p
	m.order = append(m.order, p.ID)

	return p
}

func (m *memoryStore) get(id uuid.UUID) models.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()

	return clonePrompt(m.prompts[id])
}

func clonePrompt(p *models.Prompt) models.Prompt {
	out := *p
	out.Embedding = slices.Clone(p.Embedding)

	return out
}

func matches(p *models.Prompt, f models.PromptFilter) bool {
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, p.Category) {
		return false
	}

	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, p.Status) {
		return false
	}

	return !f.MissingEmbedding || !p.HasEmbedding()
}

func (m *memoryStore) Find(_ context.Context, f models.PromptFilter) ([]models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}

	out := []models.Prompt{}

	for _, id := range m.order {
		if p := m.prompts[id]; matches(p, f) {
			out = append(out, clonePrompt(p))
		}
	}

	return out, nil
}

func (m *memoryStore) FindOne(ctx context.Context, f models.PromptFilter) (*models.Prompt, error) {
	if m.findOneErr != nil {
		return nil, m.findOneErr
	}

	all, err := m.Find(ctx, f)
	if err != nil || len(all) == 0 {
		return nil, err
	}

	return &all[0], nil
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prompts[id]
	if !ok {
		return nil, rankerrors.NewNotFoundError("prompt", "prompt not found")
	}

	out := clonePrompt(p)

	return &out, nil
}

func (m *memoryStore) Create(_ context.Context, req *models.CreatePromptRequest) (*models.Prompt, error) {
	p := m.add(req.OwnerName, req.Prompt, req.Category, req.Status, nil)

	m.mu.Lock()
	p.ImageFilename = req.ImageFilename
	out := clonePrompt(p)
	m.mu.Unlock()

	return &out, nil
}

func (m *memoryStore) UpdateStatus(_ context.Context, id uuid.UUID, req *models.UpdatePromptStatusRequest) (*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prompts[id]
	if !ok {
		return nil, rankerrors.NewNotFoundError("prompt", "prompt not found")
	}

	p.Status = req.Status
	if req.ImageFilename != nil {
		p.ImageFilename = req.ImageFilename
	}
	p.Error = req.Error

	out := clonePrompt(p)

	return &out, nil
}

func (m *memoryStore) UpdatePrompt(_ context.Context, id uuid.UUID, text string) (*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prompts[id]
	if !ok {
		return nil, rankerrors.NewNotFoundError("prompt", "prompt not found")
	}

	if p.Prompt != text {
		p.Embedding = nil
		p.EmbeddingPromptHash = nil
		delete(m.claims, id)
	}
	p.Prompt = text

	out := clonePrompt(p)

	return &out, nil
}

func (m *memoryStore) SetEmbedding(_ context.Context, id uuid.UUID, embedding []float32, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setEmbeddingErr != nil {
		return false, m.setEmbeddingErr
	}

	p, ok := m.prompts[id]
	if !ok {
		return false, rankerrors.NewNotFoundError("prompt", "prompt not found")
	}

	if p.Prompt != text {
		return false, nil
	}

	m.setEmbeddingCalls++
	hash := models.PromptHash(text)
	p.Embedding = slices.Clone(embedding)
	p.EmbeddingPromptHash = &hash
	delete(m.claims, id)

	return true, nil
}

func (m *memoryStore) ClaimEmbedding(_ context.Context, id uuid.UUID, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.claimErr != nil {
		return false, m.claimErr
	}

	p, ok := m.prompts[id]
	if !ok {
		return false, rankerrors.NewNotFoundError("prompt", "prompt not found")
	}

	if p.HasEmbedding() {
		return false, nil
	}

	if at, held := m.claims[id]; held && time.Since(at) < ttl {
		return false, nil
	}

	m.claims[id] = time.Now()

	return true, nil
}

func (m *memoryStore) ReleaseEmbeddingClaim(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseCalls++
	delete(m.claims, id)

	return nil
}

// claimed simulates another process holding the claim on id.
func (m *memoryStore) claimed(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.claims[id] = time.Now()
}

func (m *memoryStore) hasClaim(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.claims[id]

	return ok
}

// mockEmbedder returns vectors from a text lookup, falling back to embedFunc.
type mockEmbedder struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	embedFunc func(ctx context.Context, text string) ([]float32, error)
	calls     []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	v, ok := m.vectors[text]
	m.mu.Unlock()

	if ok {
		return slices.Clone(v), nil
	}

	if m.embedFunc != nil {
		return m.embedFunc(ctx, text)
	}

	return []float32{1, 0, 0}, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.calls)
}

type recordedOutcome struct {
	name  string
	count int64
}

// mockMetrics implements observability.EmbeddingMetrics and observability.RankingMetrics.
type mockMetrics struct {
	mu        sync.Mutex
	backfill  []recordedOutcome
	enqueued  int64
	workerErr []string
	rankings  []string
	skipped   []string
}

func (m *mockMetrics) RecordProviderCall(context.Context, string, string, time.Duration) {}

func (m *mockMetrics) RecordBackfillOutcome(_ context.Context, outcome string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.backfill = append(m.backfill, recordedOutcome{outcome, count})
}

func (m *mockMetrics) RecordJobsEnqueued(_ context.Context, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enqueued += count
}

func (m *mockMetrics) RecordWorkerError(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workerErr = append(m.workerErr, reason)
}

func (m *mockMetrics) RecordRanking(_ context.Context, variant, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rankings = append(m.rankings, variant+":"+outcome)
}

func (m *mockMetrics) RecordCandidateSkipped(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.skipped = append(m.skipped, reason)
}
