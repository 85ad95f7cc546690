package badger

import (
	"encoding/binary"
)

// Database Key Namespace Design
// ==============================
//
// Data Type             Prefix   Key Format                    Value Type
// ============================================================================
// Inode Records         "i:"     i:<id as 8 bytes BE>          Inode (CBOR)
// Directory Entries     "c:"     c:<parent as 8 bytes BE>:<name>  child id (8 bytes BE)
// Superblock            "sb"     sb                            SuperBlock (CBOR)
//
// Big-endian ids keep all entries of one directory contiguous and sorted by
// name, so listing a directory is a single prefix scan.

const (
	prefixInode = "i:"
	prefixChild = "c:"
	keySB       = "sb"
)

func keyInode(id uint64) []byte {
	key := make([]byte, len(prefixInode)+8)
	copy(key, prefixInode)
	binary.BigEndian.PutUint64(key[len(prefixInode):], id)
	return key
}

// keyChildPrefix returns "c:<parent>:", the scan prefix for one directory.
func keyChildPrefix(parentID uint64) []byte {
	key := make([]byte, len(prefixChild)+8+1)
	copy(key, prefixChild)
	binary.BigEndian.PutUint64(key[len(prefixChild):], parentID)
	key[len(key)-1] = ':'
	return key
}

func keyChild(parentID uint64, name string) []byte {
	return append(keyChildPrefix(parentID), name...)
}

func keySuperBlock() []byte {
	return []byte(keySB)
}

func encodeID(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func decodeID(val []byte) uint64 {
	return binary.BigEndian.Uint64(val)
}
