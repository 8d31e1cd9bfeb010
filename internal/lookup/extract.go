package lookup

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Strategy locates a record inside a decoded JSON document. VWorld's
// land-registry responses have been seen in several shapes, so callers try
// a list of strategies and keep the first hit. None of the shapes is a
// documented contract.
type Strategy func(doc any) (map[string]any, bool)

// Path returns a Strategy that walks object keys. Whenever an array is met,
// including at the end of the walk, its first element is used.
func Path(keys ...string) Strategy {
	return func(doc any) (map[string]any, bool) {
		v, ok := walk(doc, keys)
		if !ok {
			return nil, false
		}
		m, ok := v.(map[string]any)
		return m, ok
	}
}

// First returns the record found by the first strategy that succeeds.
func First(doc any, strategies ...Strategy) (map[string]any, bool) {
	for _, s := range strategies {
		if rec, ok := s(doc); ok {
			return rec, true
		}
	}
	return nil, false
}

// landRecordStrategies are the observed locations of a ladfrlList record.
var landRecordStrategies = []Strategy{
	Path("ladfrlVOList", "ladfrlVOList"),
	Path("ladfrlList"),
	Path("response", "body", "items", "item"),
	Path("items"),
}

// featurePropertiesStrategies locate the properties of the first GetFeature result.
var featurePropertiesStrategies = []Strategy{
	Path("response", "result", "featureCollection", "features", "properties"),
	Path("features", "properties"),
}

// walk follows keys through nested objects, stepping into the first element
// of any array on the way.
func walk(doc any, keys []string) (any, bool) {
	cur := doc
	for _, k := range keys {
		var ok bool
		if cur, ok = firstElem(cur); !ok {
			return nil, false
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[k]; !ok || cur == nil {
			return nil, false
		}
	}
	return firstElem(cur)
}

func firstElem(v any) (any, bool) {
	arr, ok := v.([]any)
	if !ok {
		return v, true
	}
	if len(arr) == 0 {
		return nil, false
	}
	return arr[0], arr[0] != nil
}

// field returns the first non-empty value among keys, rendered as a string.
func field(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := scalar(rec[k]); s != "" {
			return s
		}
	}
	return ""
}

// str returns the scalar at path in doc, or "".
func str(doc any, keys ...string) string {
	v, ok := walk(doc, keys)
	if !ok {
		return ""
	}
	return scalar(v)
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
