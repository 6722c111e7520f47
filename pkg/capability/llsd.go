package capability

import (
	"bytes"
	"encoding/xml"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// llsdValue is a decoded LLSD node: one of map, array, integer, real,
// string, boolean, or uuid. This is a minimal token-based decoder/encoder
// over encoding/xml covering only the node kinds the appearance capability
// actually uses.
type llsdValue struct {
	kind  string // "map", "array", "integer", "real", "string", "boolean", "uuid", "undef"
	str   string
	i     int64
	f     float64
	b     bool
	id    uuid.UUID
	m     map[string]llsdValue
	arr   []llsdValue
}

func llsdInteger(v int) llsdValue { return llsdValue{kind: "integer", i: int64(v)} }

func llsdMap(m map[string]llsdValue) llsdValue { return llsdValue{kind: "map", m: m} }

// encodeLLSD wraps v in an <llsd> root and renders it as LLSD-XML.
func encodeLLSD(v llsdValue) ([]byte, error) {
	var buf []byte
	buf = append(buf, []byte(xml.Header)...)
	buf = append(buf, "<llsd>"...)
	buf = appendLLSDNode(buf, v)
	buf = append(buf, "</llsd>"...)
	return buf, nil
}

func appendLLSDNode(buf []byte, v llsdValue) []byte {
	switch v.kind {
	case "map":
		buf = append(buf, "<map>"...)
		for k, child := range v.m {
			buf = append(buf, "<key>"...)
			buf = append(buf, escapeXMLText(k)...)
			buf = append(buf, "</key>"...)
			buf = appendLLSDNode(buf, child)
		}
		buf = append(buf, "</map>"...)
	case "array":
		buf = append(buf, "<array>"...)
		for _, child := range v.arr {
			buf = appendLLSDNode(buf, child)
		}
		buf = append(buf, "</array>"...)
	case "integer":
		buf = append(buf, "<integer>"...)
		buf = append(buf, strconv.FormatInt(v.i, 10)...)
		buf = append(buf, "</integer>"...)
	case "real":
		buf = append(buf, "<real>"...)
		buf = append(buf, strconv.FormatFloat(v.f, 'g', -1, 64)...)
		buf = append(buf, "</real>"...)
	case "string":
		buf = append(buf, "<string>"...)
		buf = append(buf, escapeXMLText(v.str)...)
		buf = append(buf, "</string>"...)
	case "boolean":
		if v.b {
			buf = append(buf, "<boolean>1</boolean>"...)
		} else {
			buf = append(buf, "<boolean>0</boolean>"...)
		}
	case "uuid":
		buf = append(buf, "<uuid>"...)
		buf = append(buf, v.id.String()...)
		buf = append(buf, "</uuid>"...)
	default:
		buf = append(buf, "<undef/>"...)
	}
	return buf
}

func escapeXMLText(s string) string {
	var out []byte
	_ = xml.EscapeText(&byteSliceWriter{&out}, []byte(s))
	return string(out)
}

type byteSliceWriter struct{ buf *[]byte }

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

// decodeLLSD parses an <llsd>...</llsd> document into a generic llsdValue
// tree via a token-based walk (arrays/maps nest; scalars are leaves).
func decodeLLSD(data []byte) (llsdValue, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return llsdValue{}, errors.Wrap(err, "capability: malformed LLSD-XML")
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != "llsd" {
				continue
			}
			return decodeLLSDNode(dec)
		}
	}
}

// decodeLLSDNode reads one complete LLSD node (the element just opened by
// the caller's last xml.StartElement read is NOT yet consumed here — this
// reads the next start element and decodes it).
func decodeLLSDNode(dec *xml.Decoder) (llsdValue, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return llsdValue{}, errors.Wrap(err, "capability: truncated LLSD-XML")
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		return decodeLLSDElement(dec, se)
	}
}

func decodeLLSDElement(dec *xml.Decoder, se xml.StartElement) (llsdValue, error) {
	switch se.Name.Local {
	case "map":
		m := make(map[string]llsdValue)
		var key string
		for {
			tok, err := dec.Token()
			if err != nil {
				return llsdValue{}, errors.Wrap(err, "capability: truncated LLSD map")
			}
			switch t := tok.(type) {
			case xml.StartElement:
				if t.Name.Local == "key" {
					text, err := readCharData(dec)
					if err != nil {
						return llsdValue{}, err
					}
					key = text
					continue
				}
				child, err := decodeLLSDElement(dec, t)
				if err != nil {
					return llsdValue{}, err
				}
				m[key] = child
			case xml.EndElement:
				if t.Name.Local == "map" {
					return llsdValue{kind: "map", m: m}, nil
				}
			}
		}
	case "array":
		var arr []llsdValue
		for {
			tok, err := dec.Token()
			if err != nil {
				return llsdValue{}, errors.Wrap(err, "capability: truncated LLSD array")
			}
			switch t := tok.(type) {
			case xml.StartElement:
				child, err := decodeLLSDElement(dec, t)
				if err != nil {
					return llsdValue{}, err
				}
				arr = append(arr, child)
			case xml.EndElement:
				if t.Name.Local == "array" {
					return llsdValue{kind: "array", arr: arr}, nil
				}
			}
		}
	case "integer":
		text, err := readCharData(dec)
		if err != nil {
			return llsdValue{}, err
		}
		n, _ := strconv.ParseInt(text, 10, 64)
		return llsdValue{kind: "integer", i: n}, nil
	case "real":
		text, err := readCharData(dec)
		if err != nil {
			return llsdValue{}, err
		}
		f, _ := strconv.ParseFloat(text, 64)
		return llsdValue{kind: "real", f: f}, nil
	case "string":
		text, err := readCharData(dec)
		if err != nil {
			return llsdValue{}, err
		}
		return llsdValue{kind: "string", str: text}, nil
	case "boolean":
		text, err := readCharData(dec)
		if err != nil {
			return llsdValue{}, err
		}
		return llsdValue{kind: "boolean", b: text == "1" || text == "true"}, nil
	case "uuid":
		text, err := readCharData(dec)
		if err != nil {
			return llsdValue{}, err
		}
		id, _ := uuid.Parse(text)
		return llsdValue{kind: "uuid", id: id}, nil
	case "undef":
		if err := skipElement(dec); err != nil {
			return llsdValue{}, err
		}
		return llsdValue{kind: "undef"}, nil
	default:
		if err := skipElement(dec); err != nil {
			return llsdValue{}, err
		}
		return llsdValue{kind: "undef"}, nil
	}
}

func readCharData(dec *xml.Decoder) (string, error) {
	var text string
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", errors.Wrap(err, "capability: truncated LLSD scalar")
		}
		switch t := tok.(type) {
		case xml.CharData:
			text += string(t)
		case xml.EndElement:
			return text, nil
		}
	}
}

func skipElement(dec *xml.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}
