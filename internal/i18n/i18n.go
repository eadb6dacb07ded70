// Package i18n is a small, explicitly constructed translation context:
// callers receive a *Translator and nothing is process global.
package i18n

import "strings"

// Resources maps locale -> key -> message. Messages may contain
// {placeholder} markers substituted from the vars passed to T.
type Resources map[string]map[string]string

// Translator resolves message keys for one locale, falling back to the
// fallback locale and then to the caller-supplied fallback string.
type Translator struct {
	locale   string
	fallback string
	messages Resources
}

// DefaultLocale is used as the fallback resolution locale; the stop
// dataset and its user community are French-Swiss.
const DefaultLocale = "fr"

// New returns a Translator for the given locale over the given
// resources. An unknown locale still resolves through DefaultLocale.
func New(locale string, resources Resources) *Translator {
	if locale == "" {
		locale = DefaultLocale
	}
	return &Translator{
		locale:   locale,
		fallback: DefaultLocale,
		messages: resources,
	}
}

// T resolves key in the translator's locale, then in the fallback
// locale, then returns fallback. Occurrences of {name} for each vars
// entry are replaced in the resolved message.
func (t *Translator) T(key, fallback string, vars map[string]string) string {
	msg, ok := t.lookup(t.locale, key)
	if !ok {
		msg, ok = t.lookup(t.fallback, key)
	}
	if !ok {
		msg = fallback
	}
	for name, value := range vars {
		msg = strings.ReplaceAll(msg, "{"+name+"}", value)
	}
	return msg
}

func (t *Translator) lookup(locale, key string) (string, bool) {
	if t.messages == nil {
		return "", false
	}
	bundle, ok := t.messages[locale]
	if !ok {
		return "", false
	}
	msg, ok := bundle[key]
	return msg, ok
}

// Locale returns the locale the translator resolves first.
func (t *Translator) Locale() string {
	return t.locale
}

// DefaultResources carries the built-in messages for the stop layer UI
// strings.
func DefaultResources() Resources {
	return Resources{
		"fr": {
			"stops.layer_name":          "Arrêts de transports publics",
			"stops.prompt.question":     "Des lieux similaires existent près de «{name}». Que faire ?",
			"stops.prompt.merge":        "Fusionner",
			"stops.prompt.merge_coords": "Fusionner et mettre à jour les coordonnées",
			"stops.prompt.save_new":     "Enregistrer le nouveau",
			"stops.prompt.cancel":       "Annuler",
		},
		"en": {
			"stops.layer_name":          "Public transport stops",
			"stops.prompt.question":     "Similar places exist near \"{name}\". What should happen?",
			"stops.prompt.merge":        "Merge",
			"stops.prompt.merge_coords": "Merge and update coordinates",
			"stops.prompt.save_new":     "Save as new",
			"stops.prompt.cancel":       "Cancel",
		},
	}
}
