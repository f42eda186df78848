package rule

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Document is the top-level shape of a rules YAML file.
type Document struct {
	Rules []*RuleDoc `yaml:"rules"`
}

// Load loads rule documents from either a single file or a directory,
// auto-detecting which.
func Load(path string) ([]*RuleDoc, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rules path: %w", err)
	}

	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadFile reads and parses a single rules YAML file.
func LoadFile(path string) ([]*RuleDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML %s: %w", path, err)
	}

	if err := checkDuplicateIDs(doc.Rules); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return doc.Rules, nil
}

// LoadDir walks dirPath recursively, parsing every .yaml/.yml file
// concurrently (the files are independent, so there is no reason to parse
// them one at a time) and merging the results. A rule ID seen in more than
// one file is a load error naming both source files.
func LoadDir(dirPath string) ([]*RuleDoc, error) {
	var paths []string
	err := filepath.WalkDir(dirPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk rules directory: %w", err)
	}

	perFile := make([][]*RuleDoc, len(paths))

	var g errgroup.Group
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			docs, err := LoadFile(p)
			if err != nil {
				return err
			}
			perFile[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idToFile := make(map[string]string)
	var merged []*RuleDoc
	for i, docs := range perFile {
		for _, d := range docs {
			if d.ID == "" {
				continue
			}
			if existing, exists := idToFile[d.ID]; exists {
				return nil, fmt.Errorf("duplicate rule ID %s: found in both %s and %s", d.ID, existing, paths[i])
			}
			idToFile[d.ID] = paths[i]
		}
		merged = append(merged, docs...)
	}

	return merged, nil
}

// Merge appends other's documents to docs.
func Merge(docs []*RuleDoc, other []*RuleDoc) []*RuleDoc {
	return append(docs, other...)
}

// Validate compiles every document, surfacing the first error encountered.
// It performs no engine-side effects, so a rules path can be checked without
// standing up an Engine.
func Validate(docs []*RuleDoc) error {
	_, err := CompileAll(docs)
	return err
}

func checkDuplicateIDs(docs []*RuleDoc) error {
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			continue
		}
		if seen[d.ID] {
			return &DuplicateRuleError{ID: d.ID}
		}
		seen[d.ID] = true
	}
	return nil
}
