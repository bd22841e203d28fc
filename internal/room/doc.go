package room

import (
	"strconv"
	"strings"
)

// Doc is a snapshot of a room document.
type Doc map[string]string

// Has reports whether the field is set.
func (d Doc) Has(f string) bool {
	_, ok := d[f]
	return ok
}

// Str returns the raw field value ("" when absent).
func (d Doc) Str(f string) string { return d[f] }

// Int decodes an integer field; missing or malformed values read as 0.
func (d Doc) Int(f string) int64 {
	n, err := strconv.ParseInt(d[f], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Bool decodes a boolean field; anything but "true" reads as false.
func (d Doc) Bool(f string) bool { return d[f] == "true" }

// List decodes a list field.
func (d Doc) List(f string) []string {
	v := d[f]
	if v == "" {
		return nil
	}
	return strings.Split(v, listSep)
}

// Clone returns an independent copy.
func (d Doc) Clone() Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func formatInt(n int64) string { return strconv.FormatInt(n, 10) }
