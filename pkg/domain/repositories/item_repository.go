package repositories

import "github.com/mrodz/mql-grouping-engine/pkg/domain/entities"

// ItemRepository is the catalog of normalized items for one allocation run.
// Items keep the order in which they were first registered.
type ItemRepository interface {
	// Register stores item unless its key is already known. It returns the stored
	// representative and whether item was newly added.
	Register(item *entities.Item) (*entities.Item, bool)
	GetItem(key entities.ItemKey) (*entities.Item, error)
	Has(key entities.ItemKey) bool
	GetAllItems() []*entities.Item
	Len() int
	// BaseIdentity returns the base identity of a registered course: the smallest
	// code reachable from it through codes shared by any registered offering,
	// duplicates included. Placements and unknown keys have none.
	BaseIdentity(key entities.ItemKey) (entities.BaseIdentity, bool)
}
