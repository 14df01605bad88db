package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyagent/config"
	"github.com/alejandrodnm/polyagent/internal/domain"
	"github.com/alejandrodnm/polyagent/internal/ports"
)

type closeTrackingStore struct {
	loadErr error
	closed  int
}

func (s *closeTrackingStore) SaveTrade(context.Context, domain.Trade) error { return nil }
func (s *closeTrackingStore) SaveDailySnapshot(context.Context, domain.PortfolioStats) error {
	return nil
}
func (s *closeTrackingStore) LogCycle(context.Context, domain.CycleLog) error { return nil }
func (s *closeTrackingStore) LoadTrades(context.Context) ([]domain.Trade, error) {
	return nil, s.loadErr
}
func (s *closeTrackingStore) Close() error {
	s.closed++
	return nil
}

func withStore(t *testing.T, store *closeTrackingStore) {
	t.Helper()
	prevOpen, prevLog := openStore, slog.Default()
	openStore = func(context.Context, config.StorageConfig) (ports.TradeStore, error) {
		return store, nil
	}
	t.Cleanup(func() {
		openStore = prevOpen
		slog.SetDefault(prevLog)
	})
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600))
	return path
}

func TestRun_ReportFailureClosesStore(t *testing.T) {
	store := &closeTrackingStore{loadErr: errors.New("disk gone")}
	withStore(t, store)

	code := run(options{configPath: writeConfig(t), report: true})
	assert.Equal(t, 1, code)
	assert.Equal(t, 1, store.closed)
}

func TestRun_ReportClosesStore(t *testing.T) {
	store := &closeTrackingStore{}
	withStore(t, store)

	code := run(options{configPath: writeConfig(t), report: true})
	assert.Equal(t, 0, code)
	assert.Equal(t, 1, store.closed)
}

func TestRun_BadConfigNeverOpensStore(t *testing.T) {
	store := &closeTrackingStore{}
	withStore(t, store)

	code := run(options{configPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Equal(t, 1, code)
	assert.Zero(t, store.closed)
}
