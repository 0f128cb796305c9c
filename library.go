package main

import (
	"os"
	"path/filepath"
	"runtime"
)

// onnxLibraryName is the file name of the onnxruntime shared library on the
// current OS.
func onnxLibraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}

// resolveLibraryPath picks the onnxruntime library: the configured path, then
// $ONNXRUNTIME_SHARED_LIBRARY, then $HOME/lib/onnxruntime, /usr/local/lib and
// /usr/lib. An empty result leaves the choice to the runtime's own default.
func resolveLibraryPath(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY"); env != "" {
		return env
	}

	name := onnxLibraryName()
	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "lib", "onnxruntime", name))
	}
	candidates = append(candidates,
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
	)
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}
