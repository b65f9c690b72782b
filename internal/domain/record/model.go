package record

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const defaultName = "User"

// Record is a user document owned by the record store. It is never mutated here.
type Record struct {
	ID         string       `json:"id,omitempty"`
	AccessKey  string       `json:"access_key"`
	Name       string       `json:"name,omitempty"`
	ImageLinks []ImageEntry `json:"image_links,omitempty"`
}

// DisplayName returns the record name, or "User" when the store has none.
func (r *Record) DisplayName() string {
	if r == nil || r.Name == "" {
		return defaultName
	}
	return r.Name
}

// HasImages reports whether the record carries any image entries at all.
func (r *Record) HasImages() bool {
	return r != nil && len(r.ImageLinks) > 0
}

// Links returns the image sequence of r; nil records have none.
func (r *Record) Links() []ImageEntry {
	if r == nil {
		return nil
	}
	return r.ImageLinks
}

// EntryKind describes the shape an image_links element was stored in.
type EntryKind int

const (
	// EntryUnknown is kept for change detection but never delivered.
	EntryUnknown EntryKind = iota
	// EntryBare is a plain URL string, deliverable every day.
	EntryBare
	// EntryDated is a {url, date} object, deliverable on that date only.
	EntryDated
)

// ImageEntry is one element of a record's image_links sequence.
type ImageEntry struct {
	Kind EntryKind
	URL  string
	// Date is YYYY-MM-DD for dated entries.
	Date string
	// raw holds a canonical encoding of unknown entries and of dated objects
	// carrying fields besides url and date, so those compare by full content.
	raw string
}

// Bare builds an undated entry.
func Bare(url string) ImageEntry {
	return ImageEntry{Kind: EntryBare, URL: url}
}

// Dated builds an entry deliverable only on date.
func Dated(url, date string) ImageEntry {
	return ImageEntry{Kind: EntryDated, URL: url, Date: date}
}

// Equal compares two entries by full value.
func (e ImageEntry) Equal(o ImageEntry) bool {
	return e.Kind == o.Kind && e.URL == o.URL && e.Date == o.Date && e.raw == o.raw
}

// DeliverableOn reports whether the entry belongs to the image set of day (YYYY-MM-DD).
func (e ImageEntry) DeliverableOn(day string) bool {
	switch e.Kind {
	case EntryBare:
		return true
	case EntryDated:
		return e.Date == day
	default:
		return false
	}
}

func (e ImageEntry) String() string {
	switch e.Kind {
	case EntryBare:
		return e.URL
	case EntryDated:
		return fmt.Sprintf("%s@%s", e.URL, e.Date)
	default:
		return "<unknown>"
	}
}

// EqualLinks is an order-sensitive, full-value comparison of two image sequences.
func EqualLinks(a, b []ImageEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// UnmarshalJSON accepts either a URL string or a {"url", "date"} object.
func (e *ImageEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*e = ImageEntry{}

	if bytes.Equal(data, []byte("null")) {
		e.raw = "null"
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Kind = EntryBare
		e.URL = s
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		e.Kind = EntryUnknown
		e.raw = compactJSON(data)
		return nil
	}

	var url, date string
	urlErr := decodeJSONField(obj, "url", &url)
	dateErr := decodeJSONField(obj, "date", &date)
	if urlErr != nil || dateErr != nil || url == "" {
		e.Kind = EntryUnknown
		e.raw = compactJSON(data)
		return nil
	}
	e.Kind = EntryDated
	e.URL = url
	e.Date = date
	if len(obj) > 2 {
		e.raw = canonicalJSON(data)
	}
	return nil
}

// canonicalJSON re-encodes data with object keys sorted.
func canonicalJSON(data []byte) string {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return compactJSON(data)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return compactJSON(data)
	}
	return string(out)
}

func decodeJSONField(obj map[string]json.RawMessage, name string, dst *string) error {
	v, ok := obj[name]
	if !ok {
		return fmt.Errorf("missing %s", name)
	}
	return json.Unmarshal(v, dst)
}

func compactJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return string(data)
	}
	return buf.String()
}

// UnmarshalBSONValue accepts either a string or an embedded {url, date} document.
func (e *ImageEntry) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	*e = ImageEntry{}
	val := bson.RawValue{Type: t, Value: data}

	if s, ok := val.StringValueOK(); ok {
		e.Kind = EntryBare
		e.URL = s
		return nil
	}

	unknown := func() error {
		e.Kind = EntryUnknown
		e.raw = fmt.Sprintf("%02x:%x", byte(t), data)
		return nil
	}

	doc, ok := val.DocumentOK()
	if !ok {
		return unknown()
	}
	urlVal, err := doc.LookupErr("url")
	if err != nil {
		return unknown()
	}
	dateVal, err := doc.LookupErr("date")
	if err != nil {
		return unknown()
	}
	url, okURL := urlVal.StringValueOK()
	date, okDate := dateVal.StringValueOK()
	if !okURL || !okDate || url == "" {
		return unknown()
	}
	e.Kind = EntryDated
	e.URL = url
	e.Date = date
	if elems, err := doc.Elements(); err == nil && len(elems) > 2 {
		e.raw = canonicalBSON(doc)
	}
	return nil
}

// canonicalBSON encodes doc as JSON with keys sorted at every level, so
// documents that differ only in field order compare equal.
func canonicalBSON(doc bson.Raw) string {
	var m bson.M
	if err := bson.Unmarshal(doc, &m); err == nil {
		if out, err := json.Marshal(normalizeBSON(m)); err == nil {
			return string(out)
		}
	}
	return fmt.Sprintf("%02x:%x", byte(bsontype.EmbeddedDocument), []byte(doc))
}

func normalizeBSON(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeBSON(val)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, el := range t {
			out[el.Key] = normalizeBSON(el.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeBSON(val)
		}
		return out
	default:
		return v
	}
}
