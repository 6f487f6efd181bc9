package operation

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack"
)

// Values are msgpack documents compressed with snappy.

func encodeEntity(entity interface{}) ([]byte, error) {
	raw, err := msgpack.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("could not marshal %T: %w", entity, err)
	}
	return snappy.Encode(nil, raw), nil
}

func decodeValue(value []byte, entity interface{}) error {
	raw, err := snappy.Decode(nil, value)
	if err != nil {
		return fmt.Errorf("could not decompress value: %w", err)
	}
	err = msgpack.Unmarshal(raw, entity)
	if err != nil {
		return fmt.Errorf("could not unmarshal %T: %w", entity, err)
	}
	return nil
}
