package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/lockbox/failure"
	"github.com/jmcleod/lockbox/internal/config"
)

const (
	testPassphrase = "correct horse battery staple"
	newPassphrase  = "remembered this time"
)

var recoveryKeyLine = regexp.MustCompile(`\n {4}(\S+)\n`)

// isolate points every config search location at an empty temp dir and
// returns a sqlite path inside it.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)
	t.Chdir(tmp)
	return filepath.Join(tmp, "vault.sqlite")
}

// run executes the command tree with input on stdin and returns what was
// written to stdout and stderr.
func run(t *testing.T, input string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func lines(s ...string) string {
	return strings.Join(s, "\n") + "\n"
}

func storageArgs(dsn string) []string {
	return []string{"--backend", "sqlite", "--dsn", dsn}
}

func TestGenerate(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "", "generate", "--length", "20", "--no-symbols")
	require.NoError(t, err)
	pw := strings.TrimSpace(out)
	assert.Len(t, pw, 20)
	assert.False(t, strings.ContainsAny(pw, "!@#$%^&*()_+-=[]{}|;:,.<>?"))
}

func TestRecordsLifecycle(t *testing.T) {
	dsn := isolate(t)

	out, stderr, err := run(t, lines(testPassphrase, testPassphrase, "y", "hunter2"),
		append([]string{"records", "add", "--site", "example.com", "--username", "alice"}, storageArgs(dsn)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "for example.com")
	assert.Regexp(t, recoveryKeyLine, stderr)

	out, _, err = run(t, lines(testPassphrase),
		append([]string{"records", "list", "--show-passwords"}, storageArgs(dsn)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "example.com")
	assert.Contains(t, out, "hunter2")

	id := regexp.MustCompile(`(?m)^(\d+)\s+example\.com`).FindStringSubmatch(out)
	require.Len(t, id, 2)

	out, _, err = run(t, lines(testPassphrase),
		append([]string{"records", "delete", id[1]}, storageArgs(dsn)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted record "+id[1])

	out, _, err = run(t, lines(testPassphrase),
		append([]string{"records", "list", "--show-passwords"}, storageArgs(dsn)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "No records.")
}

func TestWrongPassphrase(t *testing.T) {
	dsn := isolate(t)
	_, _, err := run(t, lines(testPassphrase, testPassphrase, "y", "hunter2"),
		append([]string{"records", "add", "--site", "example.com", "--username", "alice"}, storageArgs(dsn)...)...)
	require.NoError(t, err)

	_, _, err = run(t, lines("not the passphrase at all"),
		append([]string{"records", "list"}, storageArgs(dsn)...)...)
	assert.ErrorIs(t, err, failure.ErrWrongPassphrase)
}

func TestEnrollment_MismatchedPassphrases(t *testing.T) {
	dsn := isolate(t)
	_, _, err := run(t, lines(testPassphrase, "something different"),
		append([]string{"records", "list"}, storageArgs(dsn)...)...)
	assert.ErrorIs(t, err, errNotConfirmed)
}

func TestRecoverAndReclaim(t *testing.T) {
	dsn := isolate(t)
	_, stderr, err := run(t, lines(testPassphrase, testPassphrase, "y", "hunter2"),
		append([]string{"records", "add", "--site", "example.com", "--username", "alice"}, storageArgs(dsn)...)...)
	require.NoError(t, err)
	m := recoveryKeyLine.FindStringSubmatch(stderr)
	require.Len(t, m, 2)

	// Declining once reprints the key.
	out, stderr, err := run(t, lines(m[1], newPassphrase, newPassphrase, "n", "y"),
		append([]string{"recover"}, storageArgs(dsn)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Master passphrase reset.")
	assert.Len(t, recoveryKeyLine.FindAllString(stderr, -1), 2)

	out, _, err = run(t, lines(newPassphrase, testPassphrase),
		append([]string{"records", "reclaim"}, storageArgs(dsn)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Reclaimed 1 records.")

	out, _, err = run(t, lines(newPassphrase),
		append([]string{"records", "reclaim"}, storageArgs(dsn)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to reclaim.")
}

func TestPasswd(t *testing.T) {
	dsn := isolate(t)
	_, _, err := run(t, lines(testPassphrase, testPassphrase, "y", "hunter2"),
		append([]string{"records", "add", "--site", "example.com", "--username", "alice"}, storageArgs(dsn)...)...)
	require.NoError(t, err)

	out, _, err := run(t, lines(testPassphrase, newPassphrase, newPassphrase, "y"),
		append([]string{"passwd"}, storageArgs(dsn)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Master passphrase changed.")

	out, _, err = run(t, lines(newPassphrase),
		append([]string{"records", "list", "--show-passwords"}, storageArgs(dsn)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "hunter2")
}

func TestConfigInit(t *testing.T) {
	tmp := filepath.Dir(isolate(t))
	path := filepath.Join(tmp, "out", "lockbox.yaml")

	out, _, err := run(t, "", "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "backend:")
	assert.Contains(t, string(data), "issuer: Lockbox")
}

func TestOpenRepository(t *testing.T) {
	tmp := t.TempDir()
	for _, backend := range []string{"memory", "bbolt", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			c := config.Config{DataDir: filepath.Join(tmp, backend), Storage: config.StorageConfig{Backend: backend}}
			repo, closeRepo, err := openRepository(t.Context(), c)
			require.NoError(t, err)
			defer closeRepo()
			require.NoError(t, repo.Put("k", "v"))
			got, err := repo.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "v", got)
		})
	}

	_, closeRepo, err := openRepository(t.Context(), config.Config{Storage: config.StorageConfig{Backend: "floppy"}})
	closeRepo()
	assert.Error(t, err)
}
