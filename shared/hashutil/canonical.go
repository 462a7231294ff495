package hashutil

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Canonical renders obj as canonical JSON. Object keys are sorted
// lexicographically at every nesting level, numbers are printed in canonical
// decimal form and no insignificant whitespace is emitted. Two objects with
// the same logical content always canonicalize to the same bytes, which is
// the property every digest in the system depends on.
func Canonical(obj interface{}) ([]byte, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal object")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var val interface{}
	if err := dec.Decode(&val); err != nil {
		return nil, errors.Wrap(err, "could not decode intermediate form")
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, val); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, val interface{}) error {
	switch v := val.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		enc, err := json.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "could not encode string")
		}
		buf.Write(enc)
	case json.Number:
		s, err := canonicalNumber(v)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			enc, err := json.Marshal(k)
			if err != nil {
				return errors.Wrap(err, "could not encode object key")
			}
			buf.Write(enc)
			buf.WriteByte(':')
			if err := writeCanonical(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return errors.Errorf("unsupported value of type %T", val)
	}
	return nil
}

// canonicalNumber normalizes a JSON number literal. Integral values print
// without exponent or decimal point, everything else prints in shortest
// round-trip form. Negative zero collapses to 0.
func canonicalNumber(num json.Number) (string, error) {
	s := string(num)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		// Digits beyond int64 range fall through to the float path.
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", errors.Wrapf(err, "invalid number literal %q", s)
	}
	if f == 0 {
		return "0", nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}
