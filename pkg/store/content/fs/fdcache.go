package fs

import (
	"container/list"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/marmos91/dittofuse/pkg/store/content"
)

// openFunc opens the backing file of a content object.
type openFunc func(id content.ContentID, create bool) (*os.File, error)

// fdCache keeps the most recently used content files open.
//
// Every object has a lock serializing its positional I/O with Delete. An
// object's descriptor is never evicted while its lock is held, so the cache
// may briefly exceed its capacity when every resident object is busy.
type fdCache struct {
	capacity int
	open     openFunc

	mu    sync.Mutex
	files map[content.ContentID]*list.Element
	order *list.List // front is most recently used
	locks map[content.ContentID]*objectLock
}

type cachedFile struct {
	id   content.ContentID
	file *os.File
}

// objectLock is dropped from the table once nobody holds or waits on it.
type objectLock struct {
	sync.Mutex
	users int
}

func newFDCache(capacity int, open openFunc) *fdCache {
	if capacity < 1 {
		capacity = 256
	}
	return &fdCache{
		capacity: capacity,
		open:     open,
		files:    make(map[content.ContentID]*list.Element),
		order:    list.New(),
		locks:    make(map[content.ContentID]*objectLock),
	}
}

// lock takes the lock of id and returns its release function.
func (c *fdCache) lock(id content.ContentID) func() {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &objectLock{}
		c.locks[id] = l
	}
	l.users++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		if l.users--; l.users == 0 {
			delete(c.locks, id)
		}
		c.mu.Unlock()
	}
}

// file returns the open descriptor of id, opening it on a miss. The caller
// holds the lock of id.
func (c *fdCache) file(id content.ContentID, create bool) (*os.File, error) {
	c.mu.Lock()
	if elem, ok := c.files[id]; ok {
		c.order.MoveToFront(elem)
		f := elem.Value.(*cachedFile).file
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()

	f, err := c.open(id, create)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[id] = c.order.PushFront(&cachedFile{id: id, file: f})
	return f, c.shrink()
}

// shrink closes idle descriptors from the cold end until the cache fits.
func (c *fdCache) shrink() error {
	var errs []error
	elem := c.order.Back()
	for c.order.Len() > c.capacity && elem != nil {
		prev := elem.Prev()
		entry := elem.Value.(*cachedFile)
		if _, busy := c.locks[entry.id]; !busy {
			c.order.Remove(elem)
			delete(c.files, entry.id)
			if err := entry.file.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close evicted %s: %w", entry.file.Name(), err))
			}
		}
		elem = prev
	}
	return errors.Join(errs...)
}

// drop closes the descriptor of id if it is cached. The caller holds the
// lock of id.
func (c *fdCache) drop(id content.ContentID) error {
	c.mu.Lock()
	elem, ok := c.files[id]
	if ok {
		c.order.Remove(elem)
		delete(c.files, id)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return elem.Value.(*cachedFile).file.Close()
}

// syncAll fsyncs every cached descriptor.
func (c *fdCache) syncAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		f := elem.Value.(*cachedFile).file
		if err := f.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", f.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// closeAll closes every cached descriptor and empties the cache.
func (c *fdCache) closeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, elem := range c.files {
		if err := elem.Value.(*cachedFile).file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.files = make(map[content.ContentID]*list.Element)
	c.order.Init()
	return errors.Join(errs...)
}

// stats reports the number of open descriptors and the capacity.
func (c *fdCache) stats() (open, capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len(), c.capacity
}
