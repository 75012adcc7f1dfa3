package faq

import (
	"context"
	"sort"
	"strings"

	apperrors "github.com/yanqian/eldertech-assistant/pkg/errors"
)

const defaultCategory = "general"

// DefaultPriority is assigned to entries created without an explicit priority.
const DefaultPriority = 1

func (s *service) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Limit = s.cfg.listLimit(filter.Limit)
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreError, "failed to list faqs", err)
	}
	return entries, nil
}

func (s *service) Get(ctx context.Context, id int64) (Entry, error) {
	entry, ok, err := s.repo.Get(ctx, id)
	if err != nil {
		return Entry{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to load faq", err)
	}
	if !ok {
		return Entry{}, apperrors.Wrap(apperrors.CodeNotFound, "faq not found", nil)
	}
	return entry, nil
}

func (s *service) Create(ctx context.Context, in EntryInput) (Entry, error) {
	entry, err := s.prepareEntry(ctx, in)
	if err != nil {
		return Entry{}, err
	}
	embedding := s.questionEmbedding(ctx, &entry)
	now := s.now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	created, err := s.repo.Create(ctx, entry, embedding)
	if err != nil {
		return Entry{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to create faq", err)
	}
	s.dropCachedAnswer(ctx, created.Question)
	s.logger.Info("faq created", "entryId", created.ID, "category", created.Category)
	return created, nil
}

func (s *service) Update(ctx context.Context, id int64, in EntryInput) (Entry, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	entry, err := s.prepareEntry(ctx, in)
	if err != nil {
		return Entry{}, err
	}
	entry.ID = current.ID
	entry.CreatedAt = current.CreatedAt
	entry.UpdatedAt = s.now()
	var embedding []float32
	if NormalizeQuestion(entry.Question) != NormalizeQuestion(current.Question) {
		embedding = s.questionEmbedding(ctx, &entry)
	} else {
		entry.SemanticHash = current.SemanticHash
	}
	updated, ok, err := s.repo.Update(ctx, entry, embedding)
	if err != nil {
		return Entry{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to update faq", err)
	}
	if !ok {
		return Entry{}, apperrors.Wrap(apperrors.CodeNotFound, "faq not found", nil)
	}
	s.dropCachedAnswer(ctx, updated.Question)
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreError, "failed to delete faq", err)
	}
	if !ok {
		return apperrors.Wrap(apperrors.CodeNotFound, "faq not found", nil)
	}
	s.logger.Info("faq deleted", "entryId", id)
	return nil
}

func (s *service) Categories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreError, "failed to list categories", err)
	}
	return categories, nil
}

func (s *service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Category{}, apperrors.Wrap(apperrors.CodeInvalidInput, "category name cannot be empty", nil)
	}
	category, err := s.repo.EnsureCategory(ctx, name, strings.TrimSpace(in.Description))
	if err != nil {
		return Category{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to create category", err)
	}
	return category, nil
}

func (s *service) Feedback(ctx context.Context, id, userID int64, req FeedbackRequest) (Entry, error) {
	entry, ok, err := s.repo.RecordFeedback(ctx, Feedback{
		EntryID:   id,
		UserID:    userID,
		Helpful:   req.Helpful,
		Text:      strings.TrimSpace(req.Text),
		CreatedAt: s.now(),
	})
	if err != nil {
		return Entry{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to record feedback", err)
	}
	if !ok {
		return Entry{}, apperrors.Wrap(apperrors.CodeNotFound, "faq not found", nil)
	}
	return entry, nil
}

func (s *service) prepareEntry(ctx context.Context, in EntryInput) (Entry, error) {
	question := strings.TrimSpace(in.Question)
	answer := strings.TrimSpace(in.Answer)
	if question == "" || answer == "" {
		return Entry{}, apperrors.Wrap(apperrors.CodeInvalidInput, "question and answer are required", nil)
	}
	if in.Priority < 0 {
		return Entry{}, apperrors.Wrap(apperrors.CodeInvalidInput, "priority cannot be negative", nil)
	}
	priority := in.Priority
	if priority == 0 {
		priority = DefaultPriority
	}
	name := strings.TrimSpace(in.Category)
	if name == "" {
		name = defaultCategory
	}
	category, err := s.repo.EnsureCategory(ctx, name, "")
	if err != nil {
		return Entry{}, apperrors.Wrap(apperrors.CodeStoreError, "failed to resolve category", err)
	}
	return Entry{
		Question:   question,
		Answer:     answer,
		CategoryID: category.ID,
		Category:   category.Name,
		Tags:       cleanTags(in.Tags),
		Priority:   priority,
	}, nil
}

// questionEmbedding embeds the entry question and sets its semantic hash. Entries are
// still saved without a vector when the provider is down.
func (s *service) questionEmbedding(ctx context.Context, entry *Entry) []float32 {
	embedding, err := s.embed(ctx, &query{text: entry.Question})
	if err != nil {
		return nil
	}
	if hash, ok, err := s.hasher.Hash(embedding); err == nil && ok {
		entry.SemanticHash = &hash
	}
	return embedding
}

func (s *service) dropCachedAnswer(ctx context.Context, question string) {
	if err := s.store.DeleteAnswer(ctx, NormalizeQuestion(question)); err != nil {
		s.logger.Warn("faq cache invalidation failed", "error", err)
	}
}

func cleanTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func sortMatches(matches []match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].confidence != matches[j].confidence {
			return matches[i].confidence > matches[j].confidence
		}
		return matches[i].entry.ID < matches[j].entry.ID
	})
}
