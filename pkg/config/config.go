// Package config implements the Config Loader: reading and normalizing a
// bundle's config/keter.yaml into the typed types.Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/keeper/pkg/kerrs"
	"github.com/cuemby/keeper/pkg/types"
	"gopkg.in/yaml.v3"
)

// FileName is the config document's fixed name inside the bundle's config
// directory.
const FileName = "keter.yaml"

// document mirrors the bundle's wire format; yaml tags match its
// kebab-case keys.
type document struct {
	Host        string              `yaml:"host"`
	Exec        string              `yaml:"exec"`
	Args        []string            `yaml:"args"`
	Postgres    bool                `yaml:"postgres"`
	SSL         bool                `yaml:"ssl"`
	ExtraHosts  []string            `yaml:"extra-hosts"`
	StaticHosts []staticHostWire    `yaml:"static-hosts"`
	Redirects   []redirectWire      `yaml:"redirects"`
}

type staticHostWire struct {
	Host string `yaml:"host"`
	Root string `yaml:"root"`
}

type redirectWire struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Load reads workDir/config/keter.yaml and returns the normalized Config.
func Load(workDir string) (*types.Config, error) {
	path := filepath.Join(workDir, "config", FileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerrs.New(kerrs.ConfigMissing, "load config", err)
		}
		return nil, kerrs.New(kerrs.ConfigMissing, "load config", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, kerrs.New(kerrs.ConfigMalformed, "parse config", err)
	}

	return normalize(&doc, workDir)
}

func normalize(doc *document, workDir string) (*types.Config, error) {
	cfg := &types.Config{}
	configDir := filepath.Join(workDir, "config")

	if doc.Host != "" || doc.Exec != "" {
		exec, ok := normalizeBundlePath(configDir, doc.Exec)
		if !ok {
			return nil, kerrs.New(kerrs.ConfigMalformed, "resolve exec", fmt.Errorf("exec %q is not a path inside workDir/config", doc.Exec))
		}
		cfg.App = &types.AppConfig{
			Exec:       exec,
			Args:       append([]string{}, doc.Args...),
			Host:       doc.Host,
			ExtraHosts: dedupe(doc.ExtraHosts),
			Postgres:   doc.Postgres,
			SSL:        doc.SSL,
		}
	}

	for _, sh := range doc.StaticHosts {
		root, ok := normalizeBundlePath(configDir, sh.Root)
		if !ok {
			// Dropped silently: non-relative or escaping root.
			continue
		}
		cfg.StaticHosts = append(cfg.StaticHosts, types.StaticHostEntry{
			Host: sh.Host,
			Root: root,
		})
	}

	for _, r := range doc.Redirects {
		cfg.Redirects = append(cfg.Redirects, types.RedirectEntry{From: r.From, To: r.To})
	}

	return cfg, nil
}

// normalizeBundlePath resolves a bundle-relative path (a static host root,
// or the app's exec) against configDir and path-collapses it. It returns
// ok=false when rel was not a relative path to begin with, or when the
// collapsed result does not remain inside the owning workDir.
func normalizeBundlePath(configDir, rel string) (string, bool) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", false
	}

	resolved := filepath.Clean(filepath.Join(configDir, rel))
	workDir := filepath.Dir(configDir)
	workDirWithSep := strings.TrimSuffix(workDir, string(filepath.Separator)) + string(filepath.Separator)

	if resolved != strings.TrimSuffix(workDir, string(filepath.Separator)) && !strings.HasPrefix(resolved, workDirWithSep) {
		return "", false
	}
	return resolved, true
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
