package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidOptions is returned for option values that cannot be used.
var ErrInvalidOptions = errors.New("invalid options")

// Options controls how a trace is read and how the report is laid out.
type Options struct {
	KernelNameColumn    string `yaml:"kernel_name_column"`
	DurationColumn      string `yaml:"duration_column"`
	MaxNameWithShape    int    `yaml:"max_name_with_shape"`
	MaxNameWithoutShape int    `yaml:"max_name_without_shape"`
	NameColumnWidth     int    `yaml:"name_column_width"`
	Top                 int    `yaml:"top"`
	NormalizeNames      bool   `yaml:"normalize_names"`
}

// DefaultOptions matches the layout of the kernel tracer's CSV output.
func DefaultOptions() Options {
	return Options{
		KernelNameColumn:    "KernelName",
		DurationColumn:      "DurationNs",
		MaxNameWithShape:    80,
		MaxNameWithoutShape: 110,
		NameColumnWidth:     115,
	}
}

// LoadOptions reads a YAML options file on top of the defaults.
// An empty path returns the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if path == "" {
		return opts, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return opts, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&opts); err != nil && err != io.EOF {
		return opts, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Validate checks that the options can be used.
func (o Options) Validate() error {
	switch {
	case o.KernelNameColumn == "":
		return fmt.Errorf("%w: kernel_name_column is empty", ErrInvalidOptions)
	case o.DurationColumn == "":
		return fmt.Errorf("%w: duration_column is empty", ErrInvalidOptions)
	case o.MaxNameWithShape < 4:
		return fmt.Errorf("%w: max_name_with_shape must be at least 4, got %d", ErrInvalidOptions, o.MaxNameWithShape)
	case o.MaxNameWithoutShape < 4:
		return fmt.Errorf("%w: max_name_without_shape must be at least 4, got %d", ErrInvalidOptions, o.MaxNameWithoutShape)
	case o.NameColumnWidth <= 0:
		return fmt.Errorf("%w: name_column_width must be positive, got %d", ErrInvalidOptions, o.NameColumnWidth)
	case o.Top < 0:
		return fmt.Errorf("%w: top must not be negative, got %d", ErrInvalidOptions, o.Top)
	}
	return nil
}
