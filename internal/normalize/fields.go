package normalize

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tenderwatch/internal/domain"
)

// fieldAliases maps each logical field to the raw keys tried in order.
// Mixed English/Spanish because several portals publish Spanish payloads.
var fieldAliases = map[string][]string{
	"external_id": {"id", "external_id", "externalId", "ocid", "notice_id", "tender_id", "reference", "codigo", "numero"},
	"title":       {"title", "titulo", "nombre", "objeto", "name", "subject"},
	"description": {"description", "descripcion", "summary", "detalle", "objeto_contrato", "abstract"},
	"entity":      {"entity", "entidad", "buyer", "organismo", "agency", "contracting_authority", "department"},
	"amount":      {"amount", "monto", "valor", "value", "budget", "presupuesto", "estimated_value"},
	"currency":    {"currency", "moneda", "divisa", "currency_code"},
	"country":     {"country", "pais", "country_code"},
	"publication": {"publication_date", "published", "fecha_publicacion", "published_at", "date", "datePublished"},
	"deadline":    {"deadline", "closing_date", "fecha_cierre", "fecha_limite", "submission_deadline", "due_date"},
	"url":         {"url", "link", "enlace", "permalink", "href"},
}

// placeholders are literal values treated as absent after trimming.
var placeholders = map[string]struct{}{
	"":     {},
	"null": {},
	"none": {},
	"n/a":  {},
	"na":   {},
	"-":    {},
	"--":   {},
}

// stringField returns the first usable string value among the alias keys.
// Placeholder values are rejected.
func stringField(raw domain.RawRecord, aliases []string) string {
	for _, key := range aliases {
		v, ok := raw[key]
		if !ok {
			continue
		}
		s := strings.TrimSpace(toString(v))
		if _, bad := placeholders[strings.ToLower(s)]; bad {
			continue
		}
		return s
	}
	return ""
}

// toString renders scalar JSON values as strings. Non-scalars yield "".
func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// amountScrub strips everything that cannot be part of a number.
var amountScrub = regexp.MustCompile(`[^0-9.,\-]`)

// parseAmount extracts a numeric amount from numeric or string input.
// Strings are scrubbed of currency symbols and thousands separators first.
// Returns nil when no number can be derived.
func parseAmount(v any) *float64 {
	switch t := v.(type) {
	case float64:
		f := t
		return &f
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
		return nil
	case string:
		s := amountScrub.ReplaceAllString(t, "")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" || s == "-" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

// amountField returns the first parseable amount among the alias keys.
func amountField(raw domain.RawRecord, aliases []string) *float64 {
	for _, key := range aliases {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if f := parseAmount(v); f != nil {
			return f
		}
	}
	return nil
}

// dateLayouts are tried in order before falling back to RFC3339.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"January 2, 2006",
	"2 January 2006",
}

// parseDate tries the fixed layouts then RFC3339. Returns nil rather than
// an error when nothing matches.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	return nil
}

// dateField returns the first parseable date among the alias keys.
func dateField(raw domain.RawRecord, aliases []string) *time.Time {
	for _, key := range aliases {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if t := parseDate(toString(v)); t != nil {
			return t
		}
	}
	return nil
}
