package pbsmk

import (
	"os"
	"testing"
)

// mustTaskFile writes script to a temp file and returns its path plus a
// cleanup func, for backend tests that need a task file without going
// through the full Driver pipeline.
func mustTaskFile(t *testing.T, script string) (string, func()) {
	t.Helper()
	f, err := os.CreateTemp("", "pbsmk-test-*.sh")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(script); err != nil {
		f.Close()
		os.Remove(f.Name())
		t.Fatal(err)
	}
	f.Close()
	return f.Name(), func() { os.Remove(f.Name()) }
}

func openDevNull() (*os.File, error) {
	return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
}
