// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package site holds the site configuration: the root page of the page
// tree and the languages records can be translated into.
package site

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/olegiv/ocms-l10n/internal/model"
)

// ErrUnknownLanguage is returned for language ids the site does not define.
var ErrUnknownLanguage = errors.New("unknown language")

// Site is a parsed site configuration.
type Site struct {
	Identifier string           `yaml:"identifier"`
	RootPageID int64            `yaml:"root_page_id"`
	Languages  []model.Language `yaml:"languages"`

	tags map[int64]language.Tag
}

// Default returns a site with English as default and German as the only
// translation language.
func Default() *Site {
	s, err := New("main", 1, []model.Language{
		{ID: 0, Title: "English", ISO: "en"},
		{ID: 1, Title: "German", ISO: "de"},
	})
	if err != nil {
		panic(err)
	}
	return s
}

// New validates the languages and builds a site.
func New(identifier string, rootPageID int64, languages []model.Language) (*Site, error) {
	s := &Site{
		Identifier: identifier,
		RootPageID: rootPageID,
		Languages:  slices.Clone(languages),
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Site) init() error {
	s.tags = make(map[int64]language.Tag, len(s.Languages))
	hasDefault := false
	for _, l := range s.Languages {
		if l.ID < 0 {
			return fmt.Errorf("language %q: negative id %d", l.Title, l.ID)
		}
		if _, dup := s.tags[l.ID]; dup {
			return fmt.Errorf("language id %d declared twice", l.ID)
		}
		tag, err := language.Parse(l.ISO)
		if err != nil {
			return fmt.Errorf("language %d: parsing %q: %w", l.ID, l.ISO, err)
		}
		s.tags[l.ID] = tag
		if l.ID == model.DefaultLanguage {
			hasDefault = true
		}
	}
	if !hasDefault {
		return errors.New("site has no default language (id 0)")
	}
	slices.SortFunc(s.Languages, func(a, b model.Language) int { return cmp.Compare(a.ID, b.ID) })
	return nil
}

// Language returns the language with the given id.
func (s *Site) Language(id int64) (model.Language, error) {
	for _, l := range s.Languages {
		if l.ID == id {
			return l, nil
		}
	}
	return model.Language{}, fmt.Errorf("%w: %d", ErrUnknownLanguage, id)
}

// HasLanguage returns true if the site defines the language id.
func (s *Site) HasLanguage(id int64) bool {
	_, ok := s.tags[id]
	return ok
}

// Tag returns the BCP 47 tag of a language.
func (s *Site) Tag(id int64) (language.Tag, error) {
	tag, ok := s.tags[id]
	if !ok {
		return language.Und, fmt.Errorf("%w: %d", ErrUnknownLanguage, id)
	}
	return tag, nil
}

// LanguageByTag returns the language whose tag matches iso best.
func (s *Site) LanguageByTag(iso string) (model.Language, error) {
	want, err := language.Parse(iso)
	if err != nil {
		return model.Language{}, fmt.Errorf("%w: parsing %q: %v", ErrUnknownLanguage, iso, err)
	}

	supported := make([]language.Tag, len(s.Languages))
	for i, l := range s.Languages {
		supported[i] = s.tags[l.ID]
	}
	_, idx, conf := language.NewMatcher(supported).Match(want)
	if conf < language.High {
		return model.Language{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, iso)
	}
	return s.Languages[idx], nil
}

// TranslationLanguages returns all languages except the default one.
func (s *Site) TranslationLanguages() []model.Language {
	var out []model.Language
	for _, l := range s.Languages {
		if !l.IsDefault() {
			out = append(out, l)
		}
	}
	return out
}

// Load reads a site configuration from YAML.
func Load(r io.Reader) (*Site, error) {
	var s Site
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding site config: %w", err)
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a YAML site configuration file.
func LoadFile(path string) (*Site, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening site config: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}
