// Package configuration owns the on-disk lifecycle of an installed pipeline
// configuration and decides which configuration applies to a project.
package configuration

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pipeline-bundles/internal/shared"
)

// ConfigFormatGeneration is bumped whenever the install layout or the
// side-car documents change incompatibly. Installs recorded with another
// generation report OLD.
const ConfigFormatGeneration = 2

const (
	backupTimeFormat = "20060102_150405"
	defaultNamespace = "default"
)

// Layout names the fixed directories under an install root.
type Layout struct {
	Root string
}

func (l Layout) CacheDir() string {
	return filepath.Join(l.Root, "cache")
}

func (l Layout) ConfigDir() string {
	return filepath.Join(l.Root, "config")
}

// SidecarDir holds the provenance documents of the installed payload.
func (l Layout) SidecarDir() string {
	return filepath.Join(l.ConfigDir(), "core")
}

func (l Layout) InstallDir() string {
	return filepath.Join(l.Root, "install")
}

func (l Layout) CoreDir() string {
	return filepath.Join(l.InstallDir(), "core")
}

func (l Layout) CoreBackupDir() string {
	return filepath.Join(l.InstallDir(), "core.backup")
}

func (l Layout) ConfigBackupDir() string {
	return filepath.Join(l.InstallDir(), "config.backup")
}

// PlaceholderDirs are created empty for the runtime loader.
func (l Layout) PlaceholderDirs() []string {
	return []string{
		filepath.Join(l.InstallDir(), "engines"),
		filepath.Join(l.InstallDir(), "apps"),
		filepath.Join(l.InstallDir(), "frameworks"),
	}
}

// UnmanagedInstallRoot is the deterministic install root of a configuration
// not pinned to a fixed path:
// <primary>/<host slug>/p<project|site>c<pcid|base>.<namespace>/cfg.
func UnmanagedInstallRoot(primary string, host string, projectID *int, pipelineConfigID *int, namespace string) string {
	project := "site"
	if projectID != nil {
		project = strconv.Itoa(*projectID)
	}
	pipelineConfig := "base"
	if pipelineConfigID != nil {
		pipelineConfig = strconv.Itoa(*pipelineConfigID)
	}
	if strings.TrimSpace(namespace) == "" {
		namespace = defaultNamespace
	}
	hostSlug := shared.Slug(host)
	if hostSlug == "" {
		hostSlug = "offline"
	}
	return filepath.Join(primary, hostSlug, fmt.Sprintf("p%sc%s.%s", project, pipelineConfig, shared.Slug(namespace)), "cfg")
}

// dirHasEntries reports whether path is a directory with at least one entry.
func dirHasEntries(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}
