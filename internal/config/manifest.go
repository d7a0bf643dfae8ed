package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mtr002/bansu-harness/internal/jobs"
)

// Manifest describes a batch of independent runs
type Manifest struct {
	URL         string        `yaml:"url"`
	Concurrency int           `yaml:"concurrency"`
	Jobs        []ManifestJob `yaml:"jobs"`
	dir         string
}

// ManifestJob is one entry of a batch manifest. Mmcif paths are relative
// to the manifest file.
type ManifestJob struct {
	Name   string   `yaml:"name"`
	Smiles string   `yaml:"smiles"`
	Mmcif  string   `yaml:"mmcif"`
	Ccd    string   `yaml:"ccd"`
	Args   []string `yaml:"args"`
}

// LoadManifest reads and checks a batch manifest
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(m.Jobs) == 0 {
		return nil, fmt.Errorf("manifest %s lists no jobs", path)
	}
	if m.Concurrency <= 0 {
		m.Concurrency = 1
	}
	m.dir = filepath.Dir(path)

	seen := make(map[string]bool)
	for i := range m.Jobs {
		if m.Jobs[i].Name == "" {
			m.Jobs[i].Name = fmt.Sprintf("job-%d", i+1)
		}
		if seen[m.Jobs[i].Name] {
			return nil, fmt.Errorf("manifest job name %q used twice", m.Jobs[i].Name)
		}
		seen[m.Jobs[i].Name] = true
	}
	return &m, nil
}

// Request builds the job request of entry i
func (m *Manifest) Request(i int) (jobs.Request, error) {
	j := m.Jobs[i]
	req := jobs.Request{
		Smiles:          j.Smiles,
		CcdCode:         j.Ccd,
		CommandlineArgs: j.Args,
	}
	if j.Mmcif != "" {
		path := j.Mmcif
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.dir, path)
		}
		encoded, err := EncodeDocument(path)
		if err != nil {
			return jobs.Request{}, err
		}
		req.InputMmcifBase64 = encoded
	}
	return req, nil
}
