package kv

import (
	"encoding/json"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// encode marshals a record to json and snappy-compresses it.
func encode(msg interface{}) ([]byte, error) {
	if msg == nil {
		return nil, errors.New("cannot encode nil message")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal record")
	}
	return snappy.Encode(nil, raw), nil
}

// decode unmarshals a snappy-compressed json record into dst.
func decode(enc []byte, dst interface{}) error {
	raw, err := snappy.Decode(nil, enc)
	if err != nil {
		return errors.Wrap(err, "could not snappy decode record")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Wrap(err, "could not unmarshal record")
	}
	return nil
}
