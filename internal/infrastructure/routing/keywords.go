// Package routing loads the domain router keyword table from YAML.
package routing

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
	"github.com/kirillkom/tax-law-assistant/internal/core/usecase"
)

type keywordFile struct {
	Domains []usecase.DomainKeywords `yaml:"domains"`
}

// LoadFile reads a keyword table. An empty path yields the built-in table.
func LoadFile(path string) ([]usecase.DomainKeywords, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return usecase.DefaultDomainKeywords, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open router keywords: %w", err)
	}
	defer file.Close()

	table, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("router keywords %s: %w", path, err)
	}
	return table, nil
}

// Parse decodes and validates a keyword table. Entry order is preserved since
// it breaks ties between domains with equal hit counts.
func Parse(r io.Reader) ([]usecase.DomainKeywords, error) {
	var file keywordFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse router keywords", fmt.Errorf("file is empty"))
		}
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse router keywords", err)
	}
	if len(file.Domains) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse router keywords", fmt.Errorf("no domains defined"))
	}

	seen := make(map[domain.TaxDomain]struct{}, len(file.Domains))
	out := make([]usecase.DomainKeywords, 0, len(file.Domains))
	for i, entry := range file.Domains {
		name := domain.TaxDomain(strings.ToUpper(strings.TrimSpace(string(entry.Domain))))
		if name == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse router keywords", fmt.Errorf("entry %d has no domain", i))
		}
		if name == domain.DomainGeneral {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse router keywords", fmt.Errorf("%s is the fallback domain and takes no keywords", name))
		}
		if _, dup := seen[name]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse router keywords", fmt.Errorf("domain %s listed twice", name))
		}
		seen[name] = struct{}{}

		keywords := make([]string, 0, len(entry.Keywords))
		for _, kw := range entry.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse router keywords", fmt.Errorf("domain %s has no keywords", name))
		}
		out = append(out, usecase.DomainKeywords{Domain: name, Keywords: keywords})
	}
	return out, nil
}
