package iavl

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jrhy/iavl/merkle"
)

// Field numbers of the persisted node format. Fields are always written in
// this order so that equal nodes serialize to equal bytes.
const (
	fieldHeight    protowire.Number = 1
	fieldSize      protowire.Number = 2
	fieldKey       protowire.Number = 3
	fieldValue     protowire.Number = 4
	fieldLeftHash  protowire.Number = 5
	fieldRightHash protowire.Number = 6
)

func appendBytesField(buf []byte, num protowire.Number, b []byte) []byte {
	buf = protowire.AppendTag(buf, num, protowire.BytesType)
	return protowire.AppendBytes(buf, b)
}

func appendVarintField(buf []byte, num protowire.Number, v uint64) []byte {
	buf = protowire.AppendTag(buf, num, protowire.VarintType)
	return protowire.AppendVarint(buf, v)
}

// marshalNode serializes a node whose children, if any, are already hashed.
func marshalNode(n *node) []byte {
	buf := make([]byte, 0, 16+len(n.key)+len(n.value)+2*merkle.Size)
	buf = appendVarintField(buf, fieldHeight, uint64(n.height))
	buf = appendVarintField(buf, fieldSize, n.size)
	buf = appendBytesField(buf, fieldKey, n.key)
	if n.isLeaf() {
		return appendBytesField(buf, fieldValue, n.value)
	}
	buf = appendBytesField(buf, fieldLeftHash, n.leftHash)
	return appendBytesField(buf, fieldRightHash, n.rightHash)
}

func unmarshalNode(buf []byte) (*node, error) {
	n := &node{}
	var sawValue bool
	for len(buf) > 0 {
		num, typ, l := protowire.ConsumeTag(buf)
		if l < 0 {
			return nil, errors.Wrap(protowire.ParseError(l), "tag")
		}
		buf = buf[l:]
		switch typ {
		case protowire.VarintType:
			v, l := protowire.ConsumeVarint(buf)
			if l < 0 {
				return nil, errors.Wrapf(protowire.ParseError(l), "field %d", num)
			}
			buf = buf[l:]
			switch num {
			case fieldHeight:
				if v > 255 {
					return nil, errors.Errorf("height %d out of range", v)
				}
				n.height = uint8(v)
			case fieldSize:
				n.size = v
			default:
				return nil, errors.Errorf("unexpected varint field %d", num)
			}
		case protowire.BytesType:
			v, l := protowire.ConsumeBytes(buf)
			if l < 0 {
				return nil, errors.Wrapf(protowire.ParseError(l), "field %d", num)
			}
			buf = buf[l:]
			v = append([]byte{}, v...)
			switch num {
			case fieldKey:
				n.key = v
			case fieldValue:
				n.value = v
				sawValue = true
			case fieldLeftHash:
				n.leftHash = v
			case fieldRightHash:
				n.rightHash = v
			default:
				return nil, errors.Errorf("unexpected bytes field %d", num)
			}
		default:
			return nil, errors.Errorf("unexpected wire type %d for field %d", typ, num)
		}
	}
	if n.isLeaf() {
		if !sawValue || n.size != 1 {
			return nil, errors.New("malformed leaf")
		}
		return n, nil
	}
	if len(n.leftHash) != merkle.Size || len(n.rightHash) != merkle.Size {
		return nil, errors.New("inner node without both child hashes")
	}
	if n.size < 2 {
		return nil, errors.Errorf("inner node of size %d", n.size)
	}
	return n, nil
}
