package codec

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// TablesVersion is the current version of the tables blob.
const TablesVersion = 1

const fieldTables protowire.Number = 2

// EncodeTables serializes a table preference, keeping its order.
func EncodeTables(tables []int) []byte {
	b := protowire.AppendTag(nil, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, TablesVersion)
	var packed []byte
	for _, t := range tables {
		packed = protowire.AppendVarint(packed, uint64(t))
	}
	b = protowire.AppendTag(b, fieldTables, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

// DecodeTables parses a blob written by EncodeTables.
func DecodeTables(b []byte) ([]int, error) {
	version := 0
	tables := []int{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, corrupt(protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			if v > math.MaxInt {
				return nil, fmt.Errorf("%w: tables version overflows int", ErrCorrupt)
			}
			version = int(v)
			b = b[n:]
		case num == fieldTables && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, corrupt(protowire.ParseError(m))
				}
				if v == 0 || v > math.MaxInt {
					return nil, fmt.Errorf("%w: table %d out of range", ErrCorrupt, v)
				}
				tables = append(tables, int(v))
				packed = packed[m:]
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if version < 1 {
		return nil, fmt.Errorf("%w: missing tables version", ErrCorrupt)
	}
	if version > TablesVersion {
		return nil, fmt.Errorf("%w: tables version %d", ErrUnsupportedVersion, version)
	}
	return tables, nil
}
