// Package nameformat derives display names, short names and aliases for
// Swiss transit stops. The source dataset is French-Swiss, so all
// generated noun phrases follow French conventions.
package nameformat

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"stoplayer.opentransportdata.swiss/internal/models"
)

// innerTypes maps a transport-mode code to the French noun used inside
// the generated venue name.
var innerTypes = map[string]string{
	"TRAIN":     "gare",
	"BOAT":      "port",
	"CHAIRLIFT": "remontée mécanique",
}

const defaultInnerType = "arrêt"

const chairliftSuffix = "(télésiège)"

// FormattedName is the naming bundle derived from one stop record.
type FormattedName struct {
	Name      string
	ShortName string
	Aliases   []string
}

// VenueInnerType maps a pipe-delimited transport-mode field to a
// comma-joined list of French nouns, e.g. "TRAIN|BUS" -> "gare, arrêt".
func VenueInnerType(meansOfTransport string) string {
	tokens := strings.Split(meansOfTransport, "|")
	parts := make([]string, 0, len(tokens))
	for _, token := range tokens {
		inner, ok := innerTypes[strings.TrimSpace(token)]
		if !ok {
			inner = defaultInnerType
		}
		parts = append(parts, inner)
	}
	return strings.Join(parts, ", ")
}

// CleanStopName strips dataset noise from a raw stop name: the literal
// "(télésiège)" suffix, and a redundant leading municipality. The
// municipality is only removed when doing so leaves a clean remainder;
// a municipality embedded in a larger station name ("Zürich HB") or a
// hyphenated compound ("Neuchâtel-Serrières") is kept as-is.
func CleanStopName(raw, municipality string) string {
	name := raw
	if suffix := len(name) - len(chairliftSuffix); suffix >= 0 &&
		strings.EqualFold(name[suffix:], chairliftSuffix) {
		name = name[:suffix]
	}
	name = strings.TrimSpace(name)

	parts := strings.Split(name, ",")
	if len(parts) == 2 && strings.TrimSpace(parts[0]) == municipality {
		name = parts[1]
	} else if municipality != "" {
		if idx := strings.Index(name, municipality); idx >= 0 {
			rest := name[idx+len(municipality):]
			stripped := name[:idx] + rest
			if strings.TrimSpace(stripped) != "" &&
				!strings.HasPrefix(rest, "-") && !strings.HasPrefix(rest, " ") {
				name = stripped
			}
		}
	}

	return capitalize(strings.TrimSpace(name))
}

// NormalizeOrganization rewrites a handful of well-known operator codes
// to the naming the map community expects. Anything unknown passes
// through unchanged.
func NormalizeOrganization(abbreviation, fullName string) (string, string) {
	switch strings.ToLower(abbreviation) {
	case "sbb":
		return "CFF", "Chemins de fer fédéraux CFF"
	case "trn/tc", "trn/autovr", "trn/autrvt", "trn-tn", "trn-cmn", "trn-rvt":
		return "transN", "Transports Publics Neuchâtelois SA"
	case "pag":
		// CarPostal has no French abbreviation in use; the empty
		// abbreviation makes Format fall back to the full name.
		return "", "CarPostal SA"
	}
	return abbreviation, fullName
}

// Format derives the venue name, short name and aliases for a stop.
func Format(stop models.StopRecord) FormattedName {
	raw := stop.DesignationOfficial
	if raw == "" {
		raw = stop.Designation
	}
	if raw == "" {
		raw = "Bus Stop"
	}

	cleaned := CleanStopName(raw, stop.MunicipalityName)
	inner := VenueInnerType(stop.MeansOfTransport)
	abbreviation, fullName := NormalizeOrganization(stop.OperatorAbbreviation, stop.OperatorDescription)

	var aliases []string
	if strings.EqualFold(stop.OperatorAbbreviation, "sbb") {
		aliases = append(aliases,
			fmt.Sprintf("%s (%s %s)", cleaned, inner, stop.OperatorDescription),
			fmt.Sprintf("%s (%s %s)", cleaned, inner, stop.OperatorAbbreviation),
		)
	}

	name := fmt.Sprintf("%s (%s %s)", cleaned, inner, fullName)
	if abbreviation != "" {
		aliases = append(aliases, fmt.Sprintf("%s (%s %s)", cleaned, inner, fullName))
		name = fmt.Sprintf("%s (%s %s)", cleaned, inner, abbreviation)
	}

	return FormattedName{
		Name:      name,
		ShortName: cleaned,
		Aliases:   aliases,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
