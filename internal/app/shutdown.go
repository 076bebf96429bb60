package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown stops all components in reverse dependency order. The ledger
// closes last so every bet recorded during drain reaches the store.
func (a *App) Shutdown() error {
	a.logger.Info("app-stopping")

	a.healthChecker.SetReady(false)

	a.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-failed", zap.Error(err))
	}

	a.wg.Wait()

	a.marketCache.Close()

	if err := a.ledger.Close(); err != nil {
		a.logger.Error("ledger-close-failed", zap.Error(err))
		return err
	}

	a.logger.Info("app-stopped")
	return nil
}
