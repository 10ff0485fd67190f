package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"qlcal/internal/config"
	"qlcal/internal/schedule"
)

// File stores records in a YAML document:
//
//	events:
//	  - title: standup
//	    description: ""
//	    predicate: wd = mon
//	    time_pair: 9:00-9:15
type File struct {
	Path string
}

type fileDoc struct {
	Events []schedule.Record `yaml:"events"`
}

func NewFile(path string) *File {
	return &File{Path: path}
}

// Load returns no records when the file does not exist yet.
func (f *File) Load(ctx context.Context) ([]schedule.Record, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", f.Path, err)
	}
	return doc.Events, nil
}

func (f *File) Save(ctx context.Context, records []schedule.Record) error {
	if records == nil {
		records = []schedule.Record{}
	}
	data, err := yaml.Marshal(fileDoc{Events: records})
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(f.Path, data)
}

func (f *File) Close() error { return nil }
