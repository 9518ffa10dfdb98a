// Package workspace manages the local artifact cache for downloaded
// app packages and user restores.
//
// Directory layout:
//
//	.cc/workspaces/
//	└── {domain}/
//	    └── {app_id}/
//	        ├── app.ccz
//	        ├── app-info.json
//	        └── users/
//	            └── {user_id}/
//	                ├── restore.xml
//	                ├── user-info.json
//	                └── sessions/
//
// Artifact writes are write-once-if-absent: two concurrent downloads of
// the same (domain, app, user) key cannot clobber each other, the first
// writer wins and the second sees the cached copy. Distinct keys never
// collide.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/formward/formward/iox"
)

// DefaultBaseDir is the workspace root relative to the working directory.
const DefaultBaseDir = ".cc/workspaces"

// AppInfo is metadata about a downloaded app package.
type AppInfo struct {
	AppID        string `json:"app_id"`
	Name         string `json:"name"`
	Version      int    `json:"version,omitempty"`
	Domain       string `json:"domain,omitempty"`
	DownloadedAt string `json:"downloaded_at,omitempty"`
}

// UserInfo is metadata about a downloaded user restore.
type UserInfo struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	Domain       string `json:"domain,omitempty"`
	AppID        string `json:"app_id,omitempty"`
	DownloadedAt string `json:"downloaded_at,omitempty"`
}

// Workspace resolves and manages artifact paths under a base directory.
type Workspace struct {
	baseDir string
}

// New creates a workspace rooted at baseDir.
func New(baseDir string) *Workspace {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	return &Workspace{baseDir: baseDir}
}

// BaseDir returns the workspace root.
func (w *Workspace) BaseDir() string { return w.baseDir }

// AppDir returns the directory for an app's artifacts.
func (w *Workspace) AppDir(domain, appID string) string {
	return filepath.Join(w.baseDir, domain, appID)
}

// AppCCZPath returns the path of an app's package file.
func (w *Workspace) AppCCZPath(domain, appID string) string {
	return filepath.Join(w.AppDir(domain, appID), "app.ccz")
}

// AppInfoPath returns the path of an app's metadata file.
func (w *Workspace) AppInfoPath(domain, appID string) string {
	return filepath.Join(w.AppDir(domain, appID), "app-info.json")
}

// UserDir returns the directory for a user's artifacts.
func (w *Workspace) UserDir(domain, appID, userID string) string {
	return filepath.Join(w.AppDir(domain, appID), "users", userID)
}

// RestorePath returns the path of a user's restore file.
func (w *Workspace) RestorePath(domain, appID, userID string) string {
	return filepath.Join(w.UserDir(domain, appID, userID), "restore.xml")
}

// UserInfoPath returns the path of a user's metadata file.
func (w *Workspace) UserInfoPath(domain, appID, userID string) string {
	return filepath.Join(w.UserDir(domain, appID, userID), "user-info.json")
}

// SessionsDir returns the directory holding a user's run history.
func (w *Workspace) SessionsDir(domain, appID, userID string) string {
	return filepath.Join(w.UserDir(domain, appID, userID), "sessions")
}

// HasAppCCZ reports whether the app package is cached.
func (w *Workspace) HasAppCCZ(domain, appID string) bool {
	_, err := os.Stat(w.AppCCZPath(domain, appID))
	return err == nil
}

// HasRestore reports whether the user's restore is cached.
func (w *Workspace) HasRestore(domain, appID, userID string) bool {
	_, err := os.Stat(w.RestorePath(domain, appID, userID))
	return err == nil
}

// SaveAppCCZ stores an app package and its metadata.
// Returns the package path. If the package already exists the cached
// copy is kept and no bytes are written.
func (w *Workspace) SaveAppCCZ(domain, appID string, ccz []byte, info AppInfo) (string, error) {
	path := w.AppCCZPath(domain, appID)
	created, err := writeIfAbsent(path, ccz)
	if err != nil {
		return "", fmt.Errorf("save app package: %w", err)
	}
	if created {
		info.AppID = appID
		info.Domain = domain
		info.DownloadedAt = time.Now().UTC().Format(time.RFC3339)
		if err := writeJSON(w.AppInfoPath(domain, appID), info); err != nil {
			return "", fmt.Errorf("save app metadata: %w", err)
		}
	}
	return path, nil
}

// SaveRestore stores a user's restore document and its metadata.
// Same write-once semantics as SaveAppCCZ.
func (w *Workspace) SaveRestore(domain, appID, userID string, restore []byte, info UserInfo) (string, error) {
	path := w.RestorePath(domain, appID, userID)
	created, err := writeIfAbsent(path, restore)
	if err != nil {
		return "", fmt.Errorf("save restore: %w", err)
	}
	if created {
		if info.UserID == "" {
			info.UserID = userID
		}
		info.Domain = domain
		info.AppID = appID
		info.DownloadedAt = time.Now().UTC().Format(time.RFC3339)
		if err := writeJSON(w.UserInfoPath(domain, appID, userID), info); err != nil {
			return "", fmt.Errorf("save user metadata: %w", err)
		}
	}
	return path, nil
}

// ReadAppInfo loads an app's cached metadata.
func (w *Workspace) ReadAppInfo(domain, appID string) (*AppInfo, error) {
	var info AppInfo
	if err := readJSON(w.AppInfoPath(domain, appID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ReadUserInfo loads a user's cached metadata.
func (w *Workspace) ReadUserInfo(domain, appID, userID string) (*UserInfo, error) {
	var info UserInfo
	if err := readJSON(w.UserInfoPath(domain, appID, userID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// MinimalRestore generates a restore document with user registration but
// no case data, for exercising form logic without real user data.
// The XML declaration is intentionally omitted; the player's parser does
// not handle it well.
func MinimalRestore(username string) string {
	now := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	return fmt.Sprintf(`<OpenRosaResponse xmlns="http://openrosa.org/http/response">
    <message nature="ota_restore_success">Successfully restored account %[1]s!</message>
    <Sync xmlns="http://commcarehq.org/sync">
        <restore_id>minimal-restore-%[2]s</restore_id>
    </Sync>
    <registration xmlns="http://openrosa.org/user/registration">
        <username>%[1]s</username>
        <password>not-used</password>
        <uuid>minimal-user-%[1]s</uuid>
        <date>%[2]s</date>
        <user_data>
            <data key="commcare_first_name">%[1]s</data>
            <data key="commcare_last_name">User</data>
        </user_data>
    </registration>
</OpenRosaResponse>`, username, now)
}

// writeIfAbsent creates path with data unless it already exists.
// The bytes go to a temp file first and are linked into place only once
// fully written, so the final path never holds a torn artifact; the
// link fails if the path exists, so concurrent writers for the same key
// serialize on the first link and later writers keep the cached copy.
func writeIfAbsent(path string, data []byte) (created bool, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".partial-*")
	if err != nil {
		return false, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		iox.DiscardClose(tmp)
		return false, err
	}
	if err := tmp.Chmod(0o644); err != nil {
		iox.DiscardClose(tmp)
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}

	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
