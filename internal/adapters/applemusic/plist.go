package applemusic

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// dict is a plist dictionary that keeps key order.
type dict struct {
	keys   []string
	values []any
}

func (d *dict) get(key string) (any, bool) {
	for i, k := range d.keys {
		if k == key {
			return d.values[i], true
		}
	}
	return nil, false
}

// decodePlist reads the document and returns the value inside <plist>.
func decodePlist(r io.Reader) (any, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("no plist element")
			}
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "plist" {
			return nil, fmt.Errorf("unexpected root element <%s>", start.Name.Local)
		}
		return decodeFirstChild(dec)
	}
}

func decodeFirstChild(dec *xml.Decoder) (any, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return decodeValue(dec, t)
		case xml.EndElement:
			return nil, fmt.Errorf("empty <%s>", t.Name.Local)
		}
	}
}

func decodeValue(dec *xml.Decoder, start xml.StartElement) (any, error) {
	switch start.Name.Local {
	case "dict":
		return decodeDict(dec)
	case "array":
		return decodeArray(dec)
	case "true":
		return true, dec.Skip()
	case "false":
		return false, dec.Skip()
	case "integer":
		text, err := charData(dec)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("integer %q: %w", text, err)
		}
		return n, nil
	case "real":
		text, err := charData(dec)
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("real %q: %w", text, err)
		}
		return f, nil
	default:
		// string, date, data and anything unknown are kept as text.
		return charData(dec)
	}
}

func decodeDict(dec *xml.Decoder) (*dict, error) {
	d := &dict{}
	var key string
	haveKey := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "key" {
				if key, err = charData(dec); err != nil {
					return nil, err
				}
				haveKey = true
				continue
			}
			v, err := decodeValue(dec, t)
			if err != nil {
				return nil, err
			}
			if !haveKey {
				return nil, fmt.Errorf("dict value <%s> without key", t.Name.Local)
			}
			d.keys = append(d.keys, key)
			d.values = append(d.values, v)
			haveKey = false
		case xml.EndElement:
			return d, nil
		}
	}
}

func decodeArray(dec *xml.Decoder) ([]any, error) {
	var out []any
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			v, err := decodeValue(dec, t)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		case xml.EndElement:
			return out, nil
		}
	}
}

// charData reads text up to the end of the current element.
func charData(dec *xml.Decoder) (string, error) {
	var b strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if err := dec.Skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			return b.String(), nil
		}
	}
}
