// Package messages holds the user-facing text surfaced through request states.
// Translations are embedded YAML files parsed into a go-i18n bundle; Spanish is
// the source language and the fallback for every lookup.
package messages

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Message identifiers. They match the keys of locales/*.yaml.
const (
	LoginSuccess       = "LoginSuccess"
	LoginFailed        = "LoginFailed"
	LoginBadRequest    = "LoginBadRequest"
	LoginNotFound      = "LoginNotFound"
	RegisterSuccess    = "RegisterSuccess"
	RegisterFailed     = "RegisterFailed"
	RegisterBadRequest = "RegisterBadRequest"
	RegisterNotFound   = "RegisterNotFound"
	ServiceFault       = "ServiceFault"
	ServiceStatus      = "ServiceStatus"
	TokenMissing       = "TokenMissing"
	TokenRejected      = "TokenRejected"
	EmailRequired      = "EmailRequired"
	ResetCodeSent      = "ResetCodeSent"
	ResetNoCode        = "ResetNoCode"
	ResetCodeExpired   = "ResetCodeExpired"
	ResetCodeMismatch  = "ResetCodeMismatch"
	ResetCodeVerified  = "ResetCodeVerified"
	ResetNotVerified   = "ResetNotVerified"
	ResetUnavailable   = "ResetUnavailable"
	PasswordTooShort   = "PasswordTooShort"
	PasswordChanged    = "PasswordChanged"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Catalog resolves message identifiers for one language.
// A Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	localizer *i18n.Localizer
}

// NewCatalog loads every embedded locale and binds a localizer for lang.
// Unknown or empty languages fall back to Spanish.
func NewCatalog(lang string) (*Catalog, error) {
	bundle := i18n.NewBundle(language.Spanish)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", f.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, f.Name()); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", f.Name(), err)
		}
	}

	return &Catalog{localizer: i18n.NewLocalizer(bundle, lang)}, nil
}

// Text returns the translation of id rendered with data.
// If the identifier is unknown the identifier itself is returned.
func (c *Catalog) Text(id string, data map[string]any) string {
	if c == nil || c.localizer == nil {
		return id
	}
	msg, err := c.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil && msg == "" {
		return id
	}
	return msg
}

// Plural is Text for messages with plural forms; count selects the form and
// is exposed to the template as .Count.
func (c *Catalog) Plural(id string, count int, data map[string]any) string {
	if c == nil || c.localizer == nil {
		return id
	}
	td := make(map[string]any, len(data)+1)
	for k, v := range data {
		td[k] = v
	}
	td["Count"] = count

	msg, err := c.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: td,
		PluralCount:  count,
	})
	if err != nil && msg == "" {
		return id
	}
	return msg
}
