package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const leaseText = `Rent is due on the first day of every month.
Late payments incur a fee of fifty dollars.
Pets are not allowed in the apartment without written consent.
The tenant must keep the garden tidy during the summer.
Parking is limited to one car per household.
The landlord repairs the heating within three days of a report.
`

// newProject creates an isolated project directory using the static
// embedder and returns its path.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "xdg"))
	for _, key := range []string{
		"OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "OLLAMA_HOST",
		"DOCRAG_EMBEDDINGS_PROVIDER", "DOCRAG_EMBEDDINGS_DIMENSIONS", "DOCRAG_CACHE_DIR",
		"DOCRAG_TOP_K", "DOCRAG_LOG_LEVEL", "DOCRAG_INDEX_KIND",
	} {
		t.Setenv(key, "")
	}

	cfg := fmt.Sprintf(`chunking:
  chunk_size: 80
  chunk_overlap: 10
embeddings:
  provider: static
  dimensions: 64
logging:
  file: %s
`, filepath.Join(root, "logs", "docrag.log"))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".docrag.yaml"), []byte(cfg), 0o644))
	return root
}

// writeDoc writes a document into the project and returns its path.
func writeDoc(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the CLI against root and returns stdout and stderr.
func run(t *testing.T, root string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--config-dir", root}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Count(s string) int {
	return strings.Count(b.String(), s)
}
