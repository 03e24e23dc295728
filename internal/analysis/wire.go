package analysis

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// The wire types below never fail on a value of the wrong JSON type: they
// leave themselves unset and the caller substitutes a default.

// number accepts a JSON number or a numeric string ("0.8", "80%").
type number struct {
	v   float64
	set bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil && !isNull(b) {
		n.v, n.set = f, true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	pct := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if pct {
		f /= 100
	}
	n.v, n.set = f, true
	return nil
}

func (n number) or(def float64) float64 {
	if !n.set {
		return def
	}
	return n.v
}

func (n number) ptr() *float64 {
	if !n.set {
		return nil
	}
	v := n.v
	return &v
}

// unit returns the value clamped to [0, 1], or 0 when unset.
func (n number) unit() float64 {
	return clampUnit(n.or(0))
}

// text accepts a JSON string, number or bool.
type text struct {
	v   string
	set bool
}

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || isNull(b) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			t.v, t.set = strings.TrimSpace(s), true
		}
	case '{', '[':
	default:
		t.v, t.set = string(b), true
	}
	return nil
}

func (t text) or(def string) string {
	if !t.set || t.v == "" {
		return def
	}
	return t.v
}

// textList accepts an array of scalars or a single scalar.
type textList []string

func (l *textList) UnmarshalJSON(b []byte) error {
	var items []text
	if err := json.Unmarshal(b, &items); err != nil {
		var one text
		_ = json.Unmarshal(b, &one)
		if one.set && one.v != "" {
			*l = textList{one.v}
		}
		return nil
	}
	for _, it := range items {
		if it.set && it.v != "" {
			*l = append(*l, it.v)
		}
	}
	return nil
}

// list decodes an array element by element, dropping elements that do not
// decode. A value that is not an array leaves the list unset.
type list[T any] struct {
	items []T
	set   bool
}

func (l *list[T]) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil || isNull(b) {
		return nil
	}
	l.set = true
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err == nil {
			l.items = append(l.items, v)
		}
	}
	return nil
}

// optional decodes a single object, leaving itself unset on any mismatch.
type optional[T any] struct {
	v   T
	set bool
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	o.v, o.set = v, true
	return nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
