package discovery

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen/internal/model"
)

// TargetFile is the YAML layout accepted by LoadTargets:
//
//	targets:
//	  - name: Sunrise Academy
//	    url: sunrise.edu
type TargetFile struct {
	Targets []TargetEntry `yaml:"targets"`
}

// TargetEntry is one site in a target file.
type TargetEntry struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Type string `yaml:"type"`
}

// LoadTargets reads a YAML target file. Entries without a URL are rejected.
func LoadTargets(path string) ([]model.Target, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: read target file %s", path)
	}
	return ParseTargets(raw)
}

// ParseTargets decodes a target file's contents.
func ParseTargets(raw []byte) ([]model.Target, error) {
	var f TargetFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, eris.Wrap(err, "discovery: parse target file")
	}

	targets := make([]model.Target, 0, len(f.Targets))
	for i, e := range f.Targets {
		if strings.TrimSpace(e.URL) == "" {
			return nil, eris.Errorf("discovery: target %d has no url", i+1)
		}
		name := e.Name
		if strings.TrimSpace(name) == "" {
			name = e.URL
		}
		t := model.NewTarget(e.URL, name)
		if e.Type != "" {
			t.EntityType = e.Type
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// StaticSource returns a fixed target list for every request.
type StaticSource struct {
	targets []model.Target
}

// NewStaticSource wraps targets as a Source.
func NewStaticSource(targets []model.Target) *StaticSource {
	return &StaticSource{targets: targets}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Discover(_ context.Context, _ model.LeadRequest) ([]model.Target, error) {
	out := make([]model.Target, len(s.targets))
	copy(out, s.targets)
	return out, nil
}
