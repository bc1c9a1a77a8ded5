package test_test

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// LoadBytes is helper to load file contents from testdata directory of the calling test
func LoadBytes(t *testing.T, name string) []byte {
	t.Helper()
	return loadBytes(t, fmt.Sprintf("testdata/%v", name), 2)
}

func loadBytes(t *testing.T, name string, callDepth int) []byte {
	_, caller, _, _ := runtime.Caller(callDepth)
	path := filepath.Join(filepath.Dir(caller), name)

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
