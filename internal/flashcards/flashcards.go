// Package flashcards stores study cards and reports spaced-repetition stats.
package flashcards

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/synergyos/synergyos/internal/platform/docstore"
	"github.com/synergyos/synergyos/internal/shared"
)

// Card is a flashcard. FSRSDue is nil until the card has been scheduled.
type Card struct {
	ID        string     `json:"_id,omitempty"`
	CreatedAt time.Time  `json:"_creationTime"`
	UserID    string     `json:"userId"`
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	FSRSDue   *time.Time `json:"fsrsDue"`
}

// Stats summarises a user's cards.
type Stats struct {
	Total int `json:"total"`
	Due   int `json:"due"`
}

// NewCard describes a card to create.
type NewCard struct {
	Question string
	Answer   string
	FSRSDue  *time.Time
}

// Service reads and writes flashcards.
type Service struct {
	docs docstore.Store
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(docs docstore.Store) *Service {
	return &Service{docs: docs, now: time.Now}
}

// WithClock overrides the time source used to decide due cards.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// GetFlashcardStats counts the user's cards and those due now. A card is
// due when it has a due time at or before the current time.
func (s *Service) GetFlashcardStats(ctx context.Context, userID string) (Stats, error) {
	cards, err := s.list(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	now := s.now()
	stats := Stats{Total: len(cards)}
	for _, c := range cards {
		if isDue(c, now) {
			stats.Due++
		}
	}
	return stats, nil
}

// ListDue returns the user's due cards, earliest first.
func (s *Service) ListDue(ctx context.Context, userID string) ([]Card, error) {
	cards, err := s.list(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	due := make([]Card, 0, len(cards))
	for _, c := range cards {
		if isDue(c, now) {
			due = append(due, c)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].FSRSDue.Before(*due[j].FSRSDue) })
	return due, nil
}

// Create stores a new card owned by userID.
func (s *Service) Create(ctx context.Context, userID string, in NewCard) (Card, error) {
	card := Card{
		UserID:   strings.TrimSpace(userID),
		Question: strings.TrimSpace(in.Question),
		Answer:   strings.TrimSpace(in.Answer),
		FSRSDue:  in.FSRSDue,
	}
	if card.UserID == "" || card.Question == "" || card.Answer == "" {
		return Card{}, fmt.Errorf("%w: user, question and answer are required", shared.ErrValidation)
	}
	rec, err := s.docs.Insert(ctx, docstore.Flashcards, card)
	if err != nil {
		return Card{}, fmt.Errorf("flashcards: create: %w", err)
	}
	return docstore.Decode[Card](rec)
}

func (s *Service) list(ctx context.Context, userID string) ([]Card, error) {
	recs, err := s.docs.Query(ctx, docstore.Flashcards, "by_user", userID)
	if err != nil {
		return nil, fmt.Errorf("flashcards: list: %w", err)
	}
	return docstore.DecodeAll[Card](recs)
}

func isDue(c Card, now time.Time) bool {
	return c.FSRSDue != nil && !c.FSRSDue.After(now)
}
