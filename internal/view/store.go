package view

import (
	"sync"
	"time"

	"CoinTrack/internal/domain/models"
	domrepo "CoinTrack/internal/domain/repository"
)

// Store remembers the last rendered view so it can be served on demand.
type Store struct {
	mu   sync.RWMutex
	view models.View
	now  func() time.Time
}

var _ domrepo.Renderer = (*Store)(nil)

func NewStore() *Store {
	return &Store{now: time.Now, view: models.View{Kind: models.ViewEmpty}}
}

func (s *Store) Render(assets []models.Asset) {
	s.set(models.View{Kind: models.ViewList, Assets: append([]models.Asset(nil), assets...)})
}

func (s *Store) RenderEmpty() {
	s.set(models.View{Kind: models.ViewEmpty})
}

func (s *Store) RenderError(message string) {
	s.set(models.View{Kind: models.ViewError, Message: message})
}

func (s *Store) set(v models.View) {
	v.UpdatedAt = s.now()
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
}

// Current returns a copy of the last view.
func (s *Store) Current() models.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.Assets = append([]models.Asset(nil), v.Assets...)
	return v
}

// Multi fans every call out to all renderers in order.
type Multi []domrepo.Renderer

func (m Multi) Render(assets []models.Asset) {
	for _, r := range m {
		r.Render(assets)
	}
}

func (m Multi) RenderEmpty() {
	for _, r := range m {
		r.RenderEmpty()
	}
}

func (m Multi) RenderError(message string) {
	for _, r := range m {
		r.RenderError(message)
	}
}

// Replay shows v on r.
func Replay(v models.View, r domrepo.Renderer) {
	switch v.Kind {
	case models.ViewList:
		r.Render(v.Assets)
	case models.ViewError:
		r.RenderError(v.Message)
	default:
		r.RenderEmpty()
	}
}
