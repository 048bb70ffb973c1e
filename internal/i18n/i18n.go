// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

// Package i18n translates the command line messages of ddrip-deploy. The
// catalogues are YAML files embedded from locales/ and loaded with go-i18n.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	mu        sync.RWMutex
	localizer *goi18n.Localizer
	current   string
	available []string
)

// Init loads the embedded catalogues and selects lang. Unknown languages
// fall back to English.
func Init(lang string) {
	b := goi18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	var langs []string
	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			continue
		}
		mf, err := b.ParseMessageFileBytes(data, f.Name())
		if err != nil {
			continue
		}
		langs = append(langs, mf.Tag.String())
	}
	sort.Strings(langs)

	lang = strings.TrimSpace(lang)
	if lang == "" {
		lang = "en"
	}
	mu.Lock()
	defer mu.Unlock()
	available = langs
	current = lang
	localizer = goi18n.NewLocalizer(b, lang, "en")
}

// SetLang switches the active language.
func SetLang(lang string) { Init(lang) }

// GetLang returns the active language.
func GetLang() string {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Available returns the languages with an embedded catalogue.
func Available() []string {
	ensureInit()
	mu.RLock()
	defer mu.RUnlock()
	return append([]string(nil), available...)
}

// IsAvailable reports whether lang has a catalogue.
func IsAvailable(lang string) bool {
	for _, l := range Available() {
		if l == lang {
			return true
		}
	}
	return false
}

func ensureInit() {
	mu.RLock()
	ok := localizer != nil
	mu.RUnlock()
	if !ok {
		Init("en")
	}
}

// T translates messageID. Extra args are applied fmt-style to the
// translation. Unknown IDs are returned unchanged.
func T(messageID string, args ...any) string {
	ensureInit()
	mu.RLock()
	l := localizer
	mu.RUnlock()
	msg, err := l.Localize(&goi18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		msg = messageID
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}
