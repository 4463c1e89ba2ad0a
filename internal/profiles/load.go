package profiles

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// profilesFile is the on-disk shape of the profiles YAML.
type profilesFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadProfiles reads profiles from path. A missing file yields the
// built-in defaults; the bool result reports whether they were used.
func LoadProfiles(path string) ([]Profile, bool, error) {
	if path == "" {
		return DefaultProfiles(), true, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultProfiles(), true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("profiles: read %s: %w", path, err)
	}

	var f profilesFile
	if err := decodeStrict(data, &f); err != nil {
		return nil, false, fmt.Errorf("profiles: parse %s: %w", path, err)
	}
	if len(f.Profiles) == 0 {
		return nil, false, fmt.Errorf("profiles: %s declares no profiles", path)
	}
	return f.Profiles, false, nil
}

// LoadRules reads the routing rule set from path. A missing file is
// regenerated from DefaultRules and persisted; the bool result reports
// whether that happened.
func LoadRules(path string) (RuleSet, bool, error) {
	if path == "" {
		return DefaultRules(), true, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		rs := DefaultRules()
		if err := SaveRules(path, rs); err != nil {
			return RuleSet{}, false, err
		}
		return rs, true, nil
	}
	if err != nil {
		return RuleSet{}, false, fmt.Errorf("profiles: read %s: %w", path, err)
	}

	var rs RuleSet
	if err := decodeStrict(data, &rs); err != nil {
		return RuleSet{}, false, fmt.Errorf("profiles: parse %s: %w", path, err)
	}
	return rs, false, nil
}

// SaveRules writes a rule set as YAML, creating parent directories.
func SaveRules(path string, rs RuleSet) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("profiles: create dir for %s: %w", path, err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(rs); err != nil {
		return fmt.Errorf("profiles: encode rules: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("profiles: encode rules: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("profiles: write %s: %w", path, err)
	}
	return nil
}

// Paths names the files a registry is loaded from.
type Paths struct {
	ProfilesFile string
	RulesFile    string
	Fallback     string
}

// Load builds a registry from disk using the regexp matcher.
func Load(p Paths) (*Registry, error) {
	profs, _, err := LoadProfiles(p.ProfilesFile)
	if err != nil {
		return nil, err
	}
	rules, _, err := LoadRules(p.RulesFile)
	if err != nil {
		return nil, err
	}
	return NewRegistry(profs, rules, p.Fallback, CompileRegexp)
}

// decodeStrict decodes a single YAML document, rejecting unknown fields.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		// YAML library returns io.EOF when there is no document.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	var extra any
	if err := dec.Decode(&extra); err == nil {
		return fmt.Errorf("multiple YAML documents are not supported")
	} else if !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed after first YAML document: %w", err)
	}
	return nil
}
