package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tessro/rewind/internal/deck"
	rwerrors "github.com/tessro/rewind/internal/errors"
	"github.com/tessro/rewind/internal/replay"
	"github.com/tessro/rewind/internal/spotify/auth"
	"github.com/tessro/rewind/internal/spotify/client"
	"github.com/tessro/rewind/internal/spotify/connect"
	"github.com/tessro/rewind/internal/store"
)

func requireClientID() error {
	if cfg.Spotify.ClientID == "" {
		return rwerrors.WithSuggestion(
			fmt.Errorf("%w: spotify.client_id not configured", rwerrors.ErrInvalidConfig),
			"Set it with 'rewind config set spotify.client_id <id>' or via REWIND_SPOTIFY_CLIENT_ID")
	}
	return nil
}

// spotifyClient builds an API client backed by the stored, self-refreshing token.
func spotifyClient(ctx context.Context) (*client.Client, error) {
	if err := requireClientID(); err != nil {
		return nil, err
	}

	storage, err := auth.NewTokenStorage("")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token storage: %w", err)
	}

	oauthCfg := auth.NewConfig(cfg.Spotify.ClientID, cfg.Spotify.RedirectURI)
	tokens, err := auth.TokenSource(ctx, oauthCfg, storage, logger.Named("auth"))
	if err != nil {
		return nil, err
	}

	return client.New(tokens, client.WithLogger(logger.Named("spotify"))), nil
}

// deviceArg returns the --device flag value, falling back to the config.
func deviceArg(flag string) string {
	if flag != "" {
		return flag
	}
	if cfg.Device.ID != "" {
		return cfg.Device.ID
	}
	return cfg.Device.Name
}

// openDeck dials the chosen device and builds a deck that owns the connection.
func openDeck(ctx context.Context, device string, cb replay.Callbacks) (*deck.Deck, error) {
	c, err := spotifyClient(ctx)
	if err != nil {
		return nil, err
	}

	device, err = chooseDevice(ctx, c, device)
	if err != nil {
		return nil, err
	}

	dial := connect.Dialer(c, device,
		connect.WithPollInterval(cfg.Poll.Interval()),
		connect.WithSeekTolerance(cfg.Poll.SeekTolerance()),
		connect.WithLogger(logger.Named("connect")))

	return deck.Dial(ctx, dial,
		deck.WithLogger(logger),
		deck.WithSilenceThreshold(cfg.Recorder.SilenceThreshold()),
		deck.WithRetry(cfg.Player.MaxAttempts, cfg.Player.Backoff()),
		deck.WithCallbacks(cb))
}

func openStore() (*store.Store, error) {
	path := cfg.Store.Path
	if path == "" {
		path = store.DefaultPath()
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recordings database: %w", err)
	}
	return s, nil
}

// signalContext is cancelled on the first SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
