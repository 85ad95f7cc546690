package metadata

// InodeType classifies an inode record.
type InodeType uint8

const (
	// TypeRegular is a regular file with a content object.
	TypeRegular InodeType = 1

	// TypeDirectory is a directory. It never has content.
	TypeDirectory InodeType = 2
)

func (t InodeType) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Inode is the persisted record of a file or directory.
//
// Times are unix seconds. Size is authoritative for regular files; the
// content object may be shorter (sparse tail reads back as zeros) but is
// never read past Size.
type Inode struct {
	ID        uint64    `cbor:"1,keyasint"`
	ParentID  uint64    `cbor:"2,keyasint"`
	Name      string    `cbor:"3,keyasint"`
	Type      InodeType `cbor:"4,keyasint"`
	Size      uint64    `cbor:"5,keyasint"`
	Atime     int64     `cbor:"6,keyasint"`
	Mtime     int64     `cbor:"7,keyasint"`
	ContentID string    `cbor:"8,keyasint,omitempty"`
}

// IsDirectory reports whether the inode is a directory.
func (i *Inode) IsDirectory() bool {
	return i.Type == TypeDirectory
}

// Clone returns a copy of the record.
func (i *Inode) Clone() *Inode {
	c := *i
	return &c
}

// SuperBlock is the volume-level record.
type SuperBlock struct {
	// Serial identifies the volume. Generated once at format time.
	Serial string `cbor:"1,keyasint"`

	// NextID is the next inode id to hand out. Ids are never reused.
	NextID uint64 `cbor:"2,keyasint"`

	// Dirty is set while the volume is mounted and cleared by a clean
	// unmount. Finding it set at mount time means the last session crashed.
	Dirty bool `cbor:"3,keyasint"`

	// UsedBytes is the sum of all regular file sizes.
	UsedBytes uint64 `cbor:"4,keyasint"`

	// Files is the number of live inodes, the root included.
	Files uint64 `cbor:"5,keyasint"`
}

// Clone returns a copy of the superblock.
func (sb *SuperBlock) Clone() *SuperBlock {
	c := *sb
	return &c
}

// DirEntry is one name inside a directory.
type DirEntry struct {
	Name string
	ID   uint64
}
