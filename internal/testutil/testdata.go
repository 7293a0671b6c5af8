// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"path/filepath"
	"runtime"
)

// Testdata returns the path of elem under the repository testdata directory,
// independent of the calling test's working directory.
func Testdata(elem ...string) string {
	_, file, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(file), "..", "..", "testdata")
	return filepath.Join(append([]string{root}, elem...)...)
}
