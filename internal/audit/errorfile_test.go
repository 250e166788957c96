package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFileAppendsUrlencodedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.txt")
	ef, err := NewErrorFile(path)
	require.NoError(t, err)

	require.NoError(t, ef.Record(Path{Account: "AUTH_test", Container: "pics", Object: "cat photo.jpg"}))
	require.NoError(t, ef.Record(Path{Account: "AUTH_test", Container: "c", Object: "o2"}))
	require.NoError(t, ef.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "cat+photo.jpg")
	require.Contains(t, string(data), "AUTH_test")
}
