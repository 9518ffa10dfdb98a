package player

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/formward/formward/iox"
)

// JarName is the cached player jar filename.
const JarName = "commcare-cli.jar"

// CacheSubdir is the working-directory subdirectory holding the jar
// and downloaded workspaces.
const CacheSubdir = ".cc"

// minJavaVersion is the oldest Java major version the jar runs on.
const minJavaVersion = 17

// buildTimeout bounds the gradle build of the player jar.
const buildTimeout = 5 * time.Minute

// ErrJavaNotFound is returned when no usable java executable exists.
var ErrJavaNotFound = fmt.Errorf("java not found: install Java %d+ and ensure it is on PATH or set JAVA_HOME", minJavaVersion)

// ErrGradleNotFound is returned when neither a gradle wrapper nor a
// system gradle is available.
var ErrGradleNotFound = fmt.Errorf("gradle not found: install gradle or initialize the commcare-core checkout")

// JavaVersionError reports a Java installation that is too old.
type JavaVersionError struct {
	Found int
}

func (e *JavaVersionError) Error() string {
	return fmt.Sprintf("java %d found, but java %d+ is required", e.Found, minJavaVersion)
}

// BuildError reports a failed jar build.
type BuildError struct {
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("player jar build failed: %v", e.Err)
	}
	return fmt.Sprintf("player jar build failed:\n%s", e.Output)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Locator finds or builds the player jar from a commcare-core checkout.
type Locator struct {
	// CoreDir is the commcare-core source checkout.
	CoreDir string
	// CacheDir holds the built jar. Defaults to ./.cc.
	CacheDir string
}

// NewLocator creates a locator with the default cache directory.
func NewLocator(coreDir string) *Locator {
	return &Locator{CoreDir: coreDir, CacheDir: CacheSubdir}
}

// JarPath returns the cached jar location. The file may not exist yet.
func (l *Locator) JarPath() string {
	return filepath.Join(l.CacheDir, JarName)
}

// FindJava locates a java executable: JAVA_HOME first, then PATH.
func FindJava() (string, error) {
	if home := os.Getenv("JAVA_HOME"); home != "" {
		java := filepath.Join(home, "bin", "java")
		if runtime.GOOS == "windows" {
			java += ".exe"
		}
		if _, err := os.Stat(java); err == nil {
			return java, nil
		}
	}
	if java, err := exec.LookPath("java"); err == nil {
		return java, nil
	}
	return "", ErrJavaNotFound
}

// javaVersionPattern extracts the major version from a line like
//
//	openjdk version "17.0.1" 2021-10-19
var javaVersionPattern = regexp.MustCompile(`version "(\d+)`)

// CheckJavaVersion runs `java -version` and verifies the major version.
func CheckJavaVersion(ctx context.Context, javaPath string) (int, error) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(checkCtx, javaPath, "-version")
	// Java prints its version banner to stderr.
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("cannot determine java version: %w", err)
	}

	m := javaVersionPattern.FindSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("cannot determine java version from output: %s", out)
	}
	version, _ := strconv.Atoi(string(m[1]))
	if version < minJavaVersion {
		return version, &JavaVersionError{Found: version}
	}
	return version, nil
}

// EnsureJar returns the path to the player jar, building it if absent.
func (l *Locator) EnsureJar(ctx context.Context) (string, error) {
	jar := l.JarPath()
	if _, err := os.Stat(jar); err == nil {
		return jar, nil
	}
	return l.Build(ctx)
}

// Build compiles the player jar from the commcare-core checkout and
// copies it into the cache directory.
func (l *Locator) Build(ctx context.Context) (string, error) {
	if _, err := os.Stat(filepath.Join(l.CoreDir, "build.gradle")); err != nil {
		return "", fmt.Errorf("commcare-core checkout not found at %s (run 'git submodule update --init')", l.CoreDir)
	}

	java, err := FindJava()
	if err != nil {
		return "", err
	}
	if _, err := CheckJavaVersion(ctx, java); err != nil {
		return "", err
	}

	gradle, err := l.findGradle()
	if err != nil {
		return "", err
	}

	buildCtx, cancel := context.WithTimeout(ctx, buildTimeout)
	defer cancel()

	cmd := exec.CommandContext(buildCtx, gradle, "cliJar", "--no-daemon")
	cmd.Dir = l.CoreDir
	out, err := cmd.CombinedOutput()
	if buildCtx.Err() == context.DeadlineExceeded {
		return "", &BuildError{Err: fmt.Errorf("timed out after %s", buildTimeout)}
	}
	if err != nil {
		return "", &BuildError{Output: string(out), Err: err}
	}

	built, err := filepath.Glob(filepath.Join(l.CoreDir, "build", "libs", "commcare-cli*.jar"))
	if err != nil || len(built) == 0 {
		return "", &BuildError{Err: fmt.Errorf("build completed but no jar found in %s", filepath.Join(l.CoreDir, "build", "libs"))}
	}

	if err := os.MkdirAll(l.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create cache dir: %w", err)
	}
	if err := copyFile(built[0], l.JarPath()); err != nil {
		return "", fmt.Errorf("cannot cache jar: %w", err)
	}
	return l.JarPath(), nil
}

// findGradle prefers the checkout's gradle wrapper over a system gradle.
func (l *Locator) findGradle() (string, error) {
	wrapper := filepath.Join(l.CoreDir, "gradlew")
	if runtime.GOOS == "windows" {
		wrapper += ".bat"
	}
	if _, err := os.Stat(wrapper); err == nil {
		return wrapper, nil
	}
	if gradle, err := exec.LookPath("gradle"); err == nil {
		return gradle, nil
	}
	return "", ErrGradleNotFound
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(in)

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		iox.DiscardClose(out)
		return err
	}
	return out.Close()
}
