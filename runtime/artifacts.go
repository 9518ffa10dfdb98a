package runtime

import (
	"context"
	"fmt"

	"github.com/formward/formward/api"
	"github.com/formward/formward/workspace"
)

// ArtifactSource fetches remote artifacts for a run. Implemented by
// api.Client; narrowed for test fakes.
type ArtifactSource interface {
	FetchAppCCZ(ctx context.Context, appID string) ([]byte, *api.App, error)
	LookupUser(ctx context.Context, username string) (*api.User, error)
	FetchRestore(ctx context.Context, asUsername string) ([]byte, error)
}

// ArtifactMirror is an optional shared cache consulted between the
// local workspace and the remote source. A miss is not an error.
type ArtifactMirror interface {
	Fetch(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, data []byte) error
}

// artifactManager resolves the app package and user restore for one run,
// walking workspace cache, then mirror, then remote source. Artifacts
// are keyed by username rather than platform user ID so cache layout is
// stable whether or not a remote source is configured.
type artifactManager struct {
	run *Orchestrator
}

// ensure returns local paths to the app package and restore document,
// downloading and caching whatever is missing.
func (m *artifactManager) ensure(ctx context.Context) (cczPath, restorePath string, err error) {
	cczPath, err = m.ensureAppCCZ(ctx)
	if err != nil {
		return "", "", err
	}
	restorePath, err = m.ensureRestore(ctx)
	if err != nil {
		return "", "", err
	}
	return cczPath, restorePath, nil
}

func (m *artifactManager) ensureAppCCZ(ctx context.Context) (string, error) {
	cfg := m.run.config
	def := cfg.Definition
	ws := cfg.Workspace

	if ws.HasAppCCZ(def.Domain, def.AppID) {
		cfg.Collector.IncCacheHit()
		m.run.logger.Debug("app package cached", map[string]any{
			"path": ws.AppCCZPath(def.Domain, def.AppID),
		})
		return ws.AppCCZPath(def.Domain, def.AppID), nil
	}
	cfg.Collector.IncCacheMiss()

	if cfg.Mirror != nil {
		key := workspace.AppKey(def.Domain, def.AppID)
		data, ok, err := cfg.Mirror.Fetch(ctx, key)
		if err != nil {
			m.run.logger.Warn("mirror fetch failed, falling back to source", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		} else if ok {
			m.run.logger.Info("app package from mirror", map[string]any{"key": key})
			return ws.SaveAppCCZ(def.Domain, def.AppID, data, workspace.AppInfo{Name: def.AppID})
		}
	}

	if cfg.Source == nil {
		return "", fmt.Errorf("app package for %s/%s is not cached and no remote source is configured", def.Domain, def.AppID)
	}

	m.run.logger.Info("downloading app package", map[string]any{"app_id": def.AppID})
	data, app, err := cfg.Source.FetchAppCCZ(ctx, def.AppID)
	if err != nil {
		return "", fmt.Errorf("download app package: %w", err)
	}

	info := workspace.AppInfo{Name: app.Name, Version: app.Version}
	path, err := ws.SaveAppCCZ(def.Domain, def.AppID, data, info)
	if err != nil {
		return "", err
	}

	if cfg.Mirror != nil {
		key := workspace.AppKey(def.Domain, def.AppID)
		if err := cfg.Mirror.Store(ctx, key, data); err != nil {
			m.run.logger.Warn("mirror store failed", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return path, nil
}

func (m *artifactManager) ensureRestore(ctx context.Context) (string, error) {
	cfg := m.run.config
	def := cfg.Definition
	ws := cfg.Workspace

	if ws.HasRestore(def.Domain, def.AppID, def.Username) {
		cfg.Collector.IncCacheHit()
		return ws.RestorePath(def.Domain, def.AppID, def.Username), nil
	}
	cfg.Collector.IncCacheMiss()

	if cfg.Mirror != nil {
		key := workspace.RestoreKey(def.Domain, def.AppID, def.Username)
		data, ok, err := cfg.Mirror.Fetch(ctx, key)
		if err != nil {
			m.run.logger.Warn("mirror fetch failed, falling back to source", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		} else if ok {
			m.run.logger.Info("restore from mirror", map[string]any{"key": key})
			return ws.SaveRestore(def.Domain, def.AppID, def.Username, data,
				workspace.UserInfo{Username: def.Username})
		}
	}

	if cfg.MinimalRestore {
		m.run.logger.Info("generating minimal restore", map[string]any{"username": def.Username})
		data := []byte(workspace.MinimalRestore(def.Username))
		return ws.SaveRestore(def.Domain, def.AppID, def.Username, data,
			workspace.UserInfo{Username: def.Username})
	}

	if cfg.Source == nil {
		return "", fmt.Errorf("restore for %s is not cached and no remote source is configured", def.Username)
	}

	user, err := cfg.Source.LookupUser(ctx, def.Username)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}

	m.run.logger.Info("downloading restore", map[string]any{"username": user.Username})
	data, err := cfg.Source.FetchRestore(ctx, user.Username)
	if err != nil {
		return "", fmt.Errorf("download restore: %w", err)
	}

	info := workspace.UserInfo{UserID: user.ID, Username: user.Username}
	path, err := ws.SaveRestore(def.Domain, def.AppID, def.Username, data, info)
	if err != nil {
		return "", err
	}

	if cfg.Mirror != nil {
		key := workspace.RestoreKey(def.Domain, def.AppID, def.Username)
		if err := cfg.Mirror.Store(ctx, key, data); err != nil {
			m.run.logger.Warn("mirror store failed", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return path, nil
}
