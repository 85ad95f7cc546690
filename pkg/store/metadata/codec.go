package metadata

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding so the same record always
// produces identical bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("metadata: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("metadata: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeInode serializes an inode record.
func EncodeInode(inode *Inode) ([]byte, error) {
	data, err := encMode.Marshal(inode)
	if err != nil {
		return nil, fmt.Errorf("failed to encode inode %d: %w", inode.ID, err)
	}
	return data, nil
}

// DecodeInode deserializes an inode record.
func DecodeInode(data []byte) (*Inode, error) {
	var inode Inode
	if err := decMode.Unmarshal(data, &inode); err != nil {
		return nil, fmt.Errorf("failed to decode inode: %w", err)
	}
	return &inode, nil
}

// EncodeSuperBlock serializes the superblock.
func EncodeSuperBlock(sb *SuperBlock) ([]byte, error) {
	data, err := encMode.Marshal(sb)
	if err != nil {
		return nil, fmt.Errorf("failed to encode superblock: %w", err)
	}
	return data, nil
}

// DecodeSuperBlock deserializes the superblock.
func DecodeSuperBlock(data []byte) (*SuperBlock, error) {
	var sb SuperBlock
	if err := decMode.Unmarshal(data, &sb); err != nil {
		return nil, fmt.Errorf("failed to decode superblock: %w", err)
	}
	return &sb, nil
}
