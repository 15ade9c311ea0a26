/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssiautomations/website/internal/version"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestBlogList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "older-post.md"),
		"---\ntitle: Older post\ndate: 2024-01-10\nauthor: Jane\n---\nBody.\n")
	writeFile(t, filepath.Join(dir, "newer-post.mdx"),
		"---\ntitle: Newer post\ndate: 2024-03-05\nauthor: John\n---\nBody.\n")

	out, err := executeRoot(t, "--config", filepath.Join(dir, "missing.yml"), "blog", "list", "--dir", dir)
	require.NoError(t, err)

	require.Contains(t, out, "Older post")
	require.Contains(t, out, "newer-post")
	require.Contains(t, out, "John")
	require.Less(t, bytes.Index([]byte(out), []byte("Newer post")), bytes.Index([]byte(out), []byte("Older post")))
	require.Contains(t, out, "TOTAL")
}

func TestBlogList_DirFromConfig(t *testing.T) {
	dir := t.TempDir()
	postsDir := filepath.Join(dir, "posts")
	writeFile(t, filepath.Join(postsDir, "hello.md"), "---\ntitle: Hello\ndate: 2024-02-01\n---\n")
	cfgPath := filepath.Join(dir, "config.yml")
	writeFile(t, cfgPath, "blog:\n  dir: "+postsDir+"\n")

	out, err := executeRoot(t, "--config", cfgPath, "blog", "list")
	require.NoError(t, err)
	require.Contains(t, out, "hello")
}

func TestServe_InvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	writeFile(t, cfgPath, "rateLimit:\n  window: -1s\n")

	_, err := executeRoot(t, "--config", cfgPath, "serve")
	require.EqualError(t, err, "load configuration: rateLimit.window: must be positive")
}

func TestLoadEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	writeFile(t, envPath, "WEBSITE_TEST_ENV_FILE=from-file\n")
	t.Setenv("WEBSITE_TEST_ENV_FILE", "")
	require.NoError(t, os.Unsetenv("WEBSITE_TEST_ENV_FILE"))

	require.NoError(t, loadEnvFile(envPath))
	require.Equal(t, "from-file", os.Getenv("WEBSITE_TEST_ENV_FILE"))

	require.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, loadEnvFile(""))
}

func TestPrintVersion(t *testing.T) {
	info := version.Info{Version: "v1.2.3", Revision: "abc123", Modified: true, GoVersion: "go1.22.5"}

	out := &bytes.Buffer{}
	require.NoError(t, printVersion(out, info, false))
	require.Equal(t, "website v1.2.3\nRevision: abc123 (modified)\nGo: go1.22.5\n", out.String())

	out.Reset()
	require.NoError(t, printVersion(out, version.Info{Version: "v0.0.0"}, false))
	require.Equal(t, "website v0.0.0\n", out.String())

	out.Reset()
	require.NoError(t, printVersion(out, info, true))
	var decoded version.Info
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Equal(t, info, decoded)
}

func TestVersionCommand(t *testing.T) {
	out, err := executeRoot(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "website ")
}
