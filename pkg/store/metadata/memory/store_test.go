package memory

import (
	"testing"

	"github.com/marmos91/dittofuse/pkg/store/metadata"
	storetest "github.com/marmos91/dittofuse/pkg/store/metadata/testing"
)

func TestMemoryMetadataStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Store {
			return NewMemoryMetadataStore()
		},
	}
	suite.Run(t)
}
