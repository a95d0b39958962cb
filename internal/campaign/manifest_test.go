package campaign

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleManifest = `
campaign_id: camp-1
name: The Hollow Crown
version: "1.4.0"
engine:
  min_version: "0.9.0"
  max_version: "1.2.0"
compatibility:
  accepted_hashes:
    - aaa111
    - bbb222
`

func TestParseManifest(t *testing.T) {
	manifest, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest returned error: %v", err)
	}
	if manifest.CampaignID != "camp-1" {
		t.Fatalf("campaign id = %q, want camp-1", manifest.CampaignID)
	}
	if manifest.Name != "The Hollow Crown" {
		t.Fatalf("name = %q", manifest.Name)
	}
	if manifest.Engine.MinVersion != "0.9.0" || manifest.Engine.MaxVersion != "1.2.0" {
		t.Fatalf("engine range = [%q, %q]", manifest.Engine.MinVersion, manifest.Engine.MaxVersion)
	}
	if len(manifest.Compatibility.AcceptedHashes) != 2 {
		t.Fatalf("accepted hashes = %v", manifest.Compatibility.AcceptedHashes)
	}
}

func TestParseManifestRequiresCampaignID(t *testing.T) {
	if _, err := ParseManifest([]byte("name: nameless")); err == nil {
		t.Fatal("expected error for missing campaign_id")
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.yaml")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest returned error: %v", err)
	}
	if !manifest.AcceptsHash("bbb222") {
		t.Fatal("expected accepted hash bbb222")
	}
	if manifest.AcceptsHash("ccc333") {
		t.Fatal("unexpected accepted hash ccc333")
	}
}

func TestAcceptsEngine(t *testing.T) {
	manifest, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest returned error: %v", err)
	}

	for _, tc := range []struct {
		version string
		want    bool
	}{
		{"0.9.0", true},
		{"1.0.5", true},
		{"1.2.0", true},
		{"v1.2", true},
		{"0.8.9", false},
		{"1.2.1", false},
		{"2.0.0", false},
		{"garbage", false},
		{"", false},
	} {
		if got := manifest.AcceptsEngine(tc.version); got != tc.want {
			t.Errorf("AcceptsEngine(%q) = %v, want %v", tc.version, got, tc.want)
		}
	}
}

func TestAcceptsEngineUnboundedManifest(t *testing.T) {
	var manifest Manifest
	if manifest.AcceptsEngine("1.0.0") {
		t.Fatal("manifest with no declared range must not accept any engine version")
	}
}
