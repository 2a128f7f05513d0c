// Package logicrules serves per-domain reasoning rules stored as markdown
// files named <domain>_rules.md.
package logicrules

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/tax-law-assistant/internal/core/domain"
)

const DefaultCacheSize = 32

type entry struct {
	text string
	ok   bool
}

// Loader reads rule files lazily. Misses and read failures are cached too,
// so a domain without rules costs one stat per cache lifetime.
type Loader struct {
	dir   string
	cache *lru.Cache[domain.TaxDomain, entry]
}

func New(dir string, cacheSize int) (*Loader, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[domain.TaxDomain, entry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("init logic rules cache: %w", err)
	}
	return &Loader{dir: strings.TrimSpace(dir), cache: cache}, nil
}

func (l *Loader) RulesFor(taxDomain domain.TaxDomain) (string, bool) {
	if l == nil || l.dir == "" || taxDomain == "" {
		return "", false
	}
	if cached, ok := l.cache.Get(taxDomain); ok {
		return cached.text, cached.ok
	}

	loaded := l.read(taxDomain)
	l.cache.Add(taxDomain, loaded)
	return loaded.text, loaded.ok
}

// Purge drops cached rules so edited files are picked up.
func (l *Loader) Purge() {
	l.cache.Purge()
}

func (l *Loader) read(taxDomain domain.TaxDomain) entry {
	path := filepath.Join(l.dir, strings.ToLower(string(taxDomain))+"_rules.md")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("logic_rules_not_found", "domain", string(taxDomain))
		} else {
			slog.Warn("logic_rules_read_error", "domain", string(taxDomain), "error", err)
		}
		return entry{}
	}
	if !utf8.Valid(raw) {
		slog.Warn("logic_rules_read_error", "domain", string(taxDomain), "error", "invalid utf-8")
		return entry{}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return entry{}
	}
	slog.Info("logic_rules_loaded", "domain", string(taxDomain), "chars", utf8.RuneCountInString(text))
	return entry{text: text, ok: true}
}
