// Package config parses the .hanoi configuration file: filter rules and
// federated-child directories, section-delimited, # comments and blank
// lines ignored.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nghiat/Hanoi/internal/filter"
)

// FileName is the configuration file's name within a server's root.
const FileName = ".hanoi"

// Config is the parsed contents of a .hanoi file.
type Config struct {
	Filters        *filter.Set
	AdditionalDirs []string
}

const (
	sectionFilters        = "filters"
	sectionAdditionalDirs = "additional_dirs"
)

// Load reads <root>/.hanoi. A missing file is not an error — it yields an
// empty Config (no filters, no federated children).
func Load(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Filters: filter.NewSet(nil)}, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return parse(f, path)
}

func parse(f *os.File, path string) (*Config, error) {
	cfg := &Config{}
	var rules []filter.Rule
	var dirs []string
	section := ""

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.TrimSpace(line[1 : len(line)-1])
			switch name {
			case sectionFilters, sectionAdditionalDirs:
				section = name
			default:
				log.Warn("unknown .hanoi section, skipping", "path", path, "line", lineNo, "section", name)
				section = ""
			}
			continue
		}

		switch section {
		case sectionFilters:
			rules = append(rules, filter.ParseRule(line))
		case sectionAdditionalDirs:
			if !filepath.IsAbs(line) {
				log.Warn("additional_dirs entry is not absolute, skipping", "path", path, "line", lineNo, "value", line)
				continue
			}
			dirs = append(dirs, line)
		default:
			log.Warn("line outside any recognized section, skipping", "path", path, "line", lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg.Filters = filter.NewSet(rules)
	cfg.AdditionalDirs = dirs
	return cfg, nil
}
