package memory

import (
	"fmt"

	"github.com/mrodz/mql-grouping-engine/pkg/domain/entities"
	"github.com/mrodz/mql-grouping-engine/pkg/domain/repositories"
)

// ItemRepository provides in-memory item storage. The first item registered under
// a key is its representative; later duplicates only contribute their codes to the
// cross-listing links.
type ItemRepository struct {
	items    []*entities.Item
	itemsMap map[entities.ItemKey]int
	// parent is a disjoint-set forest over course codes. Every root is the
	// smallest code of its set.
	parent map[string]string
}

// NewItemRepository creates a new in-memory item repository
func NewItemRepository(expectedItems int) *ItemRepository {
	return &ItemRepository{
		items:    make([]*entities.Item, 0, expectedItems),
		itemsMap: make(map[entities.ItemKey]int, expectedItems),
		parent:   make(map[string]string, expectedItems),
	}
}

// Verify interface compliance
var _ repositories.ItemRepository = (*ItemRepository)(nil)

// Register adds an item unless its key is already present
func (r *ItemRepository) Register(item *entities.Item) (*entities.Item, bool) {
	if item.Course != nil {
		for _, code := range item.Course.Codes {
			r.union(item.Course.Codes[0], code)
		}
	}
	if index, exists := r.itemsMap[item.Key]; exists {
		return r.items[index], false
	}
	r.itemsMap[item.Key] = len(r.items)
	r.items = append(r.items, item)
	return item, true
}

// GetItem returns the representative item for a key
func (r *ItemRepository) GetItem(key entities.ItemKey) (*entities.Item, error) {
	index, exists := r.itemsMap[key]
	if !exists {
		return nil, fmt.Errorf("item not found: %s: %w", key, repositories.ErrNotFound)
	}
	return r.items[index], nil
}

// Has reports whether a key is registered
func (r *ItemRepository) Has(key entities.ItemKey) bool {
	_, exists := r.itemsMap[key]
	return exists
}

// GetAllItems returns all items in registration order
func (r *ItemRepository) GetAllItems() []*entities.Item {
	items := make([]*entities.Item, len(r.items))
	copy(items, r.items)
	return items
}

// Len returns the number of distinct items
func (r *ItemRepository) Len() int {
	return len(r.items)
}

// BaseIdentity returns the smallest code linked to a registered course
func (r *ItemRepository) BaseIdentity(key entities.ItemKey) (entities.BaseIdentity, bool) {
	if key.Kind != entities.CourseItem || !r.Has(key) {
		return "", false
	}
	return entities.BaseIdentity(r.find(key.ID)), true
}

func (r *ItemRepository) find(code string) string {
	root := code
	for {
		next, ok := r.parent[root]
		if !ok || next == root {
			break
		}
		root = next
	}
	for code != root {
		next := r.parent[code]
		r.parent[code] = root
		code = next
	}
	return root
}

func (r *ItemRepository) union(a, b string) {
	rootA, rootB := r.find(a), r.find(b)
	if rootA == rootB {
		return
	}
	if rootB < rootA {
		rootA, rootB = rootB, rootA
	}
	r.parent[rootB] = rootA
}
