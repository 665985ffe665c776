package section

import (
	"github.com/wing32s/dbase3/endian"
	"github.com/wing32s/dbase3/errs"
)

// ndxGroupsOffset is the byte offset where the first key group begins: a
// 16-bit key count occupies offsets 1-2, leaving a reserved byte at offset
// 3 before the group table starts at offset 4.
const ndxGroupsOffset = 4

// NdxGroup is one (child, record number, key) triple stored in a node.
type NdxGroup struct {
	Child  uint32
	Recno  uint32
	Key    []byte
}

// NdxNode is one 512-byte block of a .NDX B-tree: a leaf iff every Child
// (and LastChild) is zero.
type NdxNode struct {
	NumKeys   int
	Groups    []NdxGroup
	LastChild uint32
}

// IsLeaf reports whether every child pointer in the node, including
// LastChild, is zero.
func (n NdxNode) IsLeaf() bool {
	if n.LastChild != 0 {
		return false
	}
	for _, g := range n.Groups {
		if g.Child != 0 {
			return false
		}
	}

	return true
}

// ParseNdxNode parses one node using the layout triple (key_len, keys_max,
// group_len) from the owning index's header. A node that claims more keys
// than keys_max is clamped to keys_max rather than rejected outright.
func ParseNdxNode(data []byte, keyLen, keysMax, groupLen int) (NdxNode, error) {
	if len(data) < NdxBlockSize {
		return NdxNode{}, errs.ErrCorruptIndex
	}

	engine := endian.GetLittleEndianEngine()

	numKeys := int(engine.Uint16(data[1:3]))
	if numKeys < 0 {
		numKeys = 0
	}
	if numKeys > keysMax {
		numKeys = keysMax
	}

	groups := make([]NdxGroup, 0, numKeys)
	offset := ndxGroupsOffset
	for i := 0; i < numKeys; i++ {
		end := offset + groupLen
		if end > len(data) {
			break
		}
		group := data[offset:end]
		key := make([]byte, keyLen)
		copy(key, group[8:8+keyLen])
		groups = append(groups, NdxGroup{
			Child: engine.Uint32(group[0:4]),
			Recno: engine.Uint32(group[4:8]),
			Key:   key,
		})
		offset = end
	}

	var lastChild uint32
	if offset+4 <= len(data) {
		lastChild = engine.Uint32(data[offset : offset+4])
	}

	return NdxNode{
		NumKeys:   len(groups),
		Groups:    groups,
		LastChild: lastChild,
	}, nil
}

// Bytes serializes the node into a zero-padded 512-byte block using the
// given key length and group length.
func (n NdxNode) Bytes(keyLen, groupLen int) []byte {
	b := make([]byte, NdxBlockSize)
	engine := endian.GetLittleEndianEngine()

	engine.PutUint16(b[1:3], uint16(len(n.Groups)))

	offset := ndxGroupsOffset
	for _, g := range n.Groups {
		engine.PutUint32(b[offset:offset+4], g.Child)
		engine.PutUint32(b[offset+4:offset+8], g.Recno)
		key := g.Key
		if len(key) > keyLen {
			key = key[:keyLen]
		}
		copy(b[offset+8:offset+8+len(key)], key)
		offset += groupLen
	}

	if offset+4 <= len(b) {
		engine.PutUint32(b[offset:offset+4], n.LastChild)
	}

	return b
}
