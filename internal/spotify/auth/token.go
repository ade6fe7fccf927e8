package auth

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	rwerrors "github.com/tessro/rewind/internal/errors"
)

// persistingSource wraps a refreshing token source and writes every new
// token back to storage.
type persistingSource struct {
	base    oauth2.TokenSource
	storage *TokenStorage
	logger  *zap.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.storage.Save(tok); err != nil {
			s.logger.Warn("failed to persist refreshed token", zap.Error(err))
		} else {
			s.logger.Debug("token refreshed", zap.Time("expiry", tok.Expiry))
		}
	}
	return tok, nil
}

// TokenSource loads the stored token and returns a source that refreshes
// it when it expires, saving each refreshed token. It returns
// ErrNotAuthenticated when nothing is stored.
func TokenSource(ctx context.Context, cfg *oauth2.Config, storage *TokenStorage, logger *zap.Logger) (oauth2.TokenSource, error) {
	tok, err := storage.Load()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, rwerrors.ErrNotAuthenticated
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	src := &persistingSource{
		base:    cfg.TokenSource(ctx, tok),
		storage: storage,
		logger:  logger,
		last:    tok.AccessToken,
	}
	return oauth2.ReuseTokenSource(tok, src), nil
}
