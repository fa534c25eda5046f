package chart

import (
	"strings"

	"github.com/tidwall/gjson"
)

// field is one column of a flattened record. Records keep the key order of
// the source document so "first key" rules are stable.
type field struct {
	key   string
	value gjson.Result
}

type record struct {
	fields []field
	object bool
}

func (r record) get(key string) (gjson.Result, bool) {
	for _, f := range r.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return gjson.Result{}, false
}

func (r record) has(key string) bool {
	_, ok := r.get(key)
	return ok
}

func (r *record) add(key string, value gjson.Result) {
	if r.has(key) {
		return
	}
	r.fields = append(r.fields, field{key: key, value: value})
}

// values converts the record to a plain map for the chart payload.
func (r record) values() map[string]any {
	out := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		out[f.key] = f.value.Value()
	}
	return out
}

func isScalar(v gjson.Result) bool {
	return !v.IsObject() && !v.IsArray()
}

// flatten copies scalar top-level fields and hoists the scalar fields of
// nested objects one level up. Deeper structures and arrays are dropped.
// Elements that are not objects are kept as non-object records so the
// qualification step can reject the list.
func flatten(list gjson.Result) []record {
	var out []record
	list.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			out = append(out, record{})
			return true
		}
		rec := record{object: true}
		var nested []gjson.Result
		item.ForEach(func(key, value gjson.Result) bool {
			switch {
			case value.IsObject():
				nested = append(nested, value)
			case isScalar(value):
				rec.add(key.String(), value)
			}
			return true
		})
		for _, obj := range nested {
			obj.ForEach(func(key, value gjson.Result) bool {
				if isScalar(value) {
					rec.add(key.String(), value)
				}
				return true
			})
		}
		out = append(out, rec)
		return true
	})
	return out
}

// candidateLists gathers the arrays of records a single JSON payload may
// hold: the payload itself when it is an array, or its array-valued
// top-level fields when it is an object.
func candidateLists(payload gjson.Result) []gjson.Result {
	switch {
	case payload.IsArray():
		return []gjson.Result{payload}
	case payload.IsObject():
		return arrayFields(payload)
	}
	return nil
}

// structuredLists extends candidateLists for structured content items such
// as {"type":"resource","resource":{"rows":[...]}}: arrays held by an
// object-valued field are candidates too. Only one level is searched.
func structuredLists(payload gjson.Result) []gjson.Result {
	lists := candidateLists(payload)
	if !payload.IsObject() {
		return lists
	}
	payload.ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() {
			lists = append(lists, arrayFields(value)...)
		}
		return true
	})
	return lists
}

func arrayFields(obj gjson.Result) []gjson.Result {
	var lists []gjson.Result
	obj.ForEach(func(_, value gjson.Result) bool {
		if value.IsArray() {
			lists = append(lists, value)
		}
		return true
	})
	return lists
}

// parseText parses text content as JSON. Anything that is not a JSON
// document yields ok=false.
func parseText(text string) (gjson.Result, bool) {
	text = strings.TrimSpace(text)
	if text == "" || (text[0] != '[' && text[0] != '{') {
		return gjson.Result{}, false
	}
	if !gjson.Valid(text) {
		return gjson.Result{}, false
	}
	return gjson.Parse(text), true
}
