package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteUpload writes data to dir/name, creating dir as needed, and returns
// the full path.
func WriteUpload(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Garbage returns size bytes that no audio decoder accepts.
func Garbage(size int) []byte {
	if size <= 0 {
		size = 1
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	return buf
}
