package retrieval

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaVersion prefixes every cache key. Bump it when the cached Response
// shape, the key layout or the location data model changes so stale entries
// stop matching.
const SchemaVersion = "v2"

const (
	keySep         = "|"
	emptyPart      = "-"
	emptyObjectKey = "{}"
)

// KeyParts holds the request fields that determine a cached response.
// Province is the norm of the location the answer was composed from.
type KeyParts struct {
	SchemaVersion string
	Province      string
	City          string
	SQLTags       string
	Intent        string
	Filters       map[string]any
	UserCtx       map[string]any
	DocKey        string
}

// MakeKey builds the composite cache key
//
//	schema|province|city|sql_tags|intent|filters|user_ctx|doc_key
//
// Missing scalars become "-" and missing objects "{}". Objects are encoded
// with sorted keys, so two maps with the same content always produce the
// same key regardless of insertion order. The province leads so that all
// entries of one location share ProvincePrefix.
func MakeKey(p KeyParts) string {
	parts := []string{
		escapePart(schemaOf(p.SchemaVersion)),
		scalarPart(p.Province),
		scalarPart(p.City),
		scalarPart(p.SQLTags),
		scalarPart(p.Intent),
		objectPart(p.Filters),
		objectPart(p.UserCtx),
		scalarPart(p.DocKey),
	}
	return strings.Join(parts, keySep)
}

// ProvincePrefix is the key prefix shared by every entry composed for the
// location with the given norm.
func ProvincePrefix(norm string) string {
	return escapePart(SchemaVersion) + keySep + scalarPart(norm) + keySep
}

func schemaOf(v string) string {
	if v == "" {
		return SchemaVersion
	}
	return v
}

func scalarPart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return emptyPart
	}
	return escapePart(s)
}

// objectPart relies on encoding/json sorting map keys at every nesting level.
func objectPart(m map[string]any) string {
	if len(m) == 0 {
		return emptyObjectKey
	}
	data, err := json.Marshal(m)
	if err != nil {
		// fmt also prints maps in key order.
		return escapePart(fmt.Sprintf("%v", m))
	}
	return escapePart(string(data))
}

func escapePart(s string) string {
	if !strings.ContainsAny(s, `|\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, keySep, `\`+keySep)
}
