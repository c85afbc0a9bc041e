// Package importer feeds rows from a YAML seed file into the bus as save
// requests, once or every time the file changes.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/songledger/songledger/pkg/event"
)

// Seed is the on-disk import format:
//
//	songs:
//	  - {id: 1, artist: Alpha, title: First, duration: "5:36"}
//	report:
//	  - {date: 2024-05-01, time: "8:20:00", artist: Alpha, title: First, play_count: 2}
type Seed struct {
	Songs  []map[string]any `yaml:"songs"`
	Report []map[string]any `yaml:"report"`
}

// Load reads and parses the seed at path.
func Load(path string) (*Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a seed document.
func Parse(r io.Reader) (*Seed, error) {
	var s Seed
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		if err == io.EOF {
			return &s, nil
		}
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &s, nil
}

// Rows returns the rows of group g with every value rendered as text.
func (s *Seed) Rows(g event.Group) []map[string]string {
	var src []map[string]any
	switch g {
	case event.GroupSongs:
		src = s.Songs
	case event.GroupReport:
		src = s.Report
	}
	out := make([]map[string]string, 0, len(src))
	for _, row := range src {
		fields := make(map[string]string, len(row))
		for k, v := range row {
			fields[strings.ToLower(strings.TrimSpace(k))] = cast.ToString(v)
		}
		out = append(out, fields)
	}
	return out
}

// Len is the total number of rows in the seed.
func (s *Seed) Len() int { return len(s.Songs) + len(s.Report) }

// Publish emits one SaveRequested per row, grouped by table, and returns how
// many were published. Rows without an id create new records every time.
func Publish(ctx context.Context, pub event.Publisher, s *Seed) int {
	n := 0
	for _, g := range event.Groups() {
		for _, fields := range s.Rows(g) {
			pub.Publish(ctx, event.Of(event.TypeSaveRequested).In(g), event.SaveRequested{Fields: fields})
			n++
		}
	}
	return n
}
