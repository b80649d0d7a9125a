// Package scripts holds the built-in behavior scripts. Scripts are embedded
// so the binary runs standalone, but an on-disk copy under SearchDir wins so
// behaviors can be edited and hot reloaded without rebuilding.
package scripts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed *.tengo
var scriptsFS embed.FS

// SearchDir is the on-disk directory checked before the embedded copies.
var SearchDir = "scripts"

// Load returns the named behavior source. Disk beats the embedded copy.
func Load(name string) ([]byte, error) {
	clean := cleanPath(name)
	if data, err := os.ReadFile(diskPath(clean)); err == nil {
		return data, nil
	}
	data, err := scriptsFS.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("scripts: load %s: %w", name, err)
	}
	return data, nil
}

// Names lists the embedded behavior scripts.
func Names() []string {
	entries, err := scriptsFS.ReadDir(".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".tengo") {
			names = append(names, e.Name())
		}
	}
	return names
}

func cleanPath(path string) string {
	s := filepath.ToSlash(path)
	if after, ok := strings.CutPrefix(s, "scripts/"); ok {
		s = after
	}
	return s
}

func diskPath(clean string) string {
	return filepath.Join(SearchDir, filepath.FromSlash(clean))
}
