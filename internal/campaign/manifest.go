package campaign

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest describes one compiled campaign content version and the
// compatibility it declares for previously recorded runs.
type Manifest struct {
	CampaignID string `yaml:"campaign_id"`
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`

	Engine struct {
		// MinVersion and MaxVersion bound the engine versions this content
		// is known to work with, inclusive. Empty means unbounded on that
		// side.
		MinVersion string `yaml:"min_version"`
		MaxVersion string `yaml:"max_version"`
	} `yaml:"engine"`

	Compatibility struct {
		// AcceptedHashes lists earlier content fingerprints whose runs this
		// version explicitly accepts for replay.
		AcceptedHashes []string `yaml:"accepted_hashes"`
	} `yaml:"compatibility"`
}

// ParseManifest decodes a campaign manifest from YAML.
func ParseManifest(data []byte) (Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if strings.TrimSpace(manifest.CampaignID) == "" {
		return Manifest{}, fmt.Errorf("manifest: campaign_id is required")
	}
	return manifest, nil
}

// LoadManifest reads and decodes a campaign manifest file.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// AcceptsHash reports whether the manifest explicitly accepts runs recorded
// against the given content fingerprint.
func (m Manifest) AcceptsHash(hash string) bool {
	for _, accepted := range m.Compatibility.AcceptedHashes {
		if accepted == hash {
			return true
		}
	}
	return false
}

// AcceptsEngine reports whether the given engine version falls inside the
// manifest's declared range. Versions compare as dotted numeric components;
// a malformed version never passes.
func (m Manifest) AcceptsEngine(version string) bool {
	if m.Engine.MinVersion == "" && m.Engine.MaxVersion == "" {
		return false
	}
	parsed, err := parseVersion(version)
	if err != nil {
		return false
	}
	if m.Engine.MinVersion != "" {
		min, err := parseVersion(m.Engine.MinVersion)
		if err != nil || compareVersions(parsed, min) < 0 {
			return false
		}
	}
	if m.Engine.MaxVersion != "" {
		max, err := parseVersion(m.Engine.MaxVersion)
		if err != nil || compareVersions(parsed, max) > 0 {
			return false
		}
	}
	return true
}

func parseVersion(value string) ([]int, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "v")
	if value == "" {
		return nil, fmt.Errorf("version is empty")
	}
	parts := strings.Split(value, ".")
	parsed := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("version component %q is not numeric", part)
		}
		parsed = append(parsed, n)
	}
	return parsed, nil
}

func compareVersions(a, b []int) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		av, bv := 0, 0
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}
