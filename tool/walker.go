package tool

import (
	"os"
	"path/filepath"
	"strings"
)

// GetRunPositionDir is the directory holding the executable. Binaries built
// by "go run" live in a throwaway go-build directory, so the working
// directory is used instead.
func GetRunPositionDir() string {
	exePath, err := os.Executable()
	if err == nil {
		exePath, err = filepath.EvalSymlinks(exePath)
	}
	if err != nil {
		return workingDir()
	}
	dir := filepath.Dir(exePath)
	if strings.Contains(dir, "go-build") {
		return workingDir()
	}
	return dir
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return wd
}
