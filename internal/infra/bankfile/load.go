// Package bankfile reads question banks written for the browser quiz and
// normalizes them into domain banks.
package bankfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"edukids-quiz/internal/domain"
	"gopkg.in/yaml.v3"
)

// rawQuestion accepts every field name the legacy banks used for the same thing.
type rawQuestion struct {
	Text          string   `json:"text" yaml:"text"`
	Question      string   `json:"question" yaml:"question"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Options       []string `json:"options" yaml:"options"`
	CorrectOption string   `json:"correctOption" yaml:"correctOption"`
	Correct       string   `json:"correct" yaml:"correct"`
	Answer        string   `json:"answer" yaml:"answer"`
	CorrectAnswer string   `json:"correctAnswer" yaml:"correctAnswer"`
}

func (r rawQuestion) normalize() domain.Question {
	return domain.Question{
		Text:          firstNonEmpty(r.Text, r.Question, r.Prompt),
		Options:       append([]string(nil), r.Options...),
		CorrectOption: firstNonEmpty(r.CorrectOption, r.Correct, r.Answer, r.CorrectAnswer),
	}
}

// Load reads a JSON or YAML bank file. A nested file ({subject: {level1: [...]}})
// yields one bank per subject; a flat question list yields a single one-level
// bank named after the file.
func Load(path string) (map[string]domain.Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	fallback := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		return parseYAML(data, fallback)
	}
	return parseJSON(data, fallback)
}

func parseJSON(data []byte, fallback string) (map[string]domain.Bank, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var flat []rawQuestion
		if err := json.Unmarshal(trimmed, &flat); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return flatBank(fallback, flat), nil
	}
	var nested map[string]map[string][]rawQuestion
	if err := json.Unmarshal(trimmed, &nested); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return nestedBanks(nested)
}

func parseYAML(data []byte, fallback string) (map[string]domain.Bank, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("parse yaml: empty document")
	}
	doc := root.Content[0]
	if doc.Kind == yaml.SequenceNode {
		var flat []rawQuestion
		if err := doc.Decode(&flat); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return flatBank(fallback, flat), nil
	}
	var nested map[string]map[string][]rawQuestion
	if err := doc.Decode(&nested); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return nestedBanks(nested)
}

func flatBank(subject string, flat []rawQuestion) map[string]domain.Bank {
	level := make([]domain.Question, len(flat))
	for i, q := range flat {
		level[i] = q.normalize()
	}
	return map[string]domain.Bank{
		subject: {Subject: subject, Levels: [][]domain.Question{level}},
	}
}

func nestedBanks(nested map[string]map[string][]rawQuestion) (map[string]domain.Bank, error) {
	banks := make(map[string]domain.Bank, len(nested))
	for subject, levels := range nested {
		bank, err := subjectBank(subject, levels)
		if err != nil {
			return nil, err
		}
		banks[subject] = bank
	}
	return banks, nil
}

func subjectBank(subject string, levels map[string][]rawQuestion) (domain.Bank, error) {
	byIndex := make(map[int][]rawQuestion, len(levels))
	indexes := make([]int, 0, len(levels))
	for key, qs := range levels {
		idx, err := levelIndex(key)
		if err != nil {
			return domain.Bank{}, fmt.Errorf("subject %q: %w", subject, err)
		}
		byIndex[idx] = qs
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	bank := domain.Bank{Subject: subject, Levels: make([][]domain.Question, 0, len(indexes))}
	for i, idx := range indexes {
		if idx != i+1 {
			return domain.Bank{}, fmt.Errorf("subject %q: missing level%d", subject, i+1)
		}
		level := make([]domain.Question, len(byIndex[idx]))
		for j, q := range byIndex[idx] {
			level[j] = q.normalize()
		}
		bank.Levels = append(bank.Levels, level)
	}
	return bank, nil
}

func levelIndex(key string) (int, error) {
	digits := strings.TrimPrefix(strings.ToLower(key), "level")
	idx, err := strconv.Atoi(digits)
	if err != nil || idx < 1 || digits == key {
		return 0, fmt.Errorf("unrecognized level key %q", key)
	}
	return idx, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Loader serves banks from a file; pair it with a caching repository.
type Loader struct {
	path string
}

func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

func (l *Loader) LoadBank(_ context.Context, subject string) (domain.Bank, error) {
	banks, err := Load(l.path)
	if err != nil {
		return domain.Bank{}, err
	}
	bank, ok := banks[subject]
	if !ok {
		return domain.Bank{}, domain.ErrBankNotFound
	}
	return bank, nil
}
