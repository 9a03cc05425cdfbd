// Package collection holds the ordered server list of one selector together
// with its selection. At most one item is selected at any time and UUIDs are
// unique.
//
// A Collection is not safe for concurrent use.
package collection

import (
	"iter"

	"syphon-bridge/pkg/syphon"
)

// Item is a server plus its selection flag.
type Item struct {
	syphon.Description
	Selected bool
}

// SelectBy chooses the target of Select. Build one with ByIndex, ByUUID,
// ByDescription or None.
type SelectBy interface {
	resolve(c *Collection) (int, bool)
}

type byIndex int

func (b byIndex) resolve(c *Collection) (int, bool) {
	i := int(b)
	return i, i >= 0 && i < len(c.items)
}

type byUUID string

func (b byUUID) resolve(c *Collection) (int, bool) {
	i := c.indexOf(string(b))
	return i, i >= 0
}

type none struct{}

func (none) resolve(*Collection) (int, bool) { return -1, true }

func ByIndex(i int) SelectBy { return byIndex(i) }

func ByUUID(uuid string) SelectBy { return byUUID(uuid) }

// ByDescription selects the item with d's UUID.
func ByDescription(d syphon.Description) SelectBy { return byUUID(d.UUID) }

// None clears the selection.
func None() SelectBy { return none{} }

type Collection struct {
	items []Item
}

// New builds a collection of servers with the item at index selected. Pass -1
// for no selection.
func New(servers []syphon.Description, selected int) *Collection {
	c := &Collection{items: make([]Item, 0, len(servers))}
	for i, s := range servers {
		c.Add(s, i == selected)
	}
	return c
}

// Add appends d unless its UUID is already present. Selecting the new item
// unselects any other.
func (c *Collection) Add(d syphon.Description, selected bool) (Item, bool) {
	if c.indexOf(d.UUID) >= 0 {
		return Item{}, false
	}
	if selected {
		c.Unselect()
	}
	item := Item{Description: d, Selected: selected}
	c.items = append(c.items, item)
	return item, true
}

// Remove drops the item with d's UUID and returns that UUID. It never picks a
// new selection.
func (c *Collection) Remove(d syphon.Description) (string, bool) {
	i := c.indexOf(d.UUID)
	if i < 0 {
		return "", false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return d.UUID, true
}

// Update copies d's names onto the item with the same UUID, keeping its
// position and selection.
func (c *Collection) Update(d syphon.Description) (Item, bool) {
	i := c.indexOf(d.UUID)
	if i < 0 {
		return Item{}, false
	}
	c.items[i].AppName = d.AppName
	c.items[i].Name = d.Name
	return c.items[i], true
}

// Select moves the selection to the target of by. An unknown target leaves
// the selection as it was. None clears it and reports no item.
func (c *Collection) Select(by SelectBy) (Item, bool) {
	if by == nil {
		return Item{}, false
	}
	i, ok := by.resolve(c)
	if !ok {
		return Item{}, false
	}
	c.Unselect()
	if i < 0 {
		return Item{}, false
	}
	c.items[i].Selected = true
	return c.items[i], true
}

// Unselect clears the selection. With an index, only that item is cleared.
func (c *Collection) Unselect(index ...int) {
	if len(index) == 0 {
		for i := range c.items {
			c.items[i].Selected = false
		}
		return
	}
	for _, i := range index {
		if i >= 0 && i < len(c.items) {
			c.items[i].Selected = false
		}
	}
}

func (c *Collection) Selected() (Item, bool) {
	if i := c.SelectedIndex(); i >= 0 {
		return c.items[i], true
	}
	return Item{}, false
}

// SelectedIndex returns the index of the selected item or -1.
func (c *Collection) SelectedIndex() int {
	for i, item := range c.items {
		if item.Selected {
			return i
		}
	}
	return -1
}

func (c *Collection) Clear() { c.items = c.items[:0] }

func (c *Collection) Len() int { return len(c.items) }

// Items returns a copy of the items in order.
func (c *Collection) Items() []Item {
	return append([]Item(nil), c.items...)
}

// At returns the item at index i.
func (c *Collection) At(i int) (Item, bool) {
	if i < 0 || i >= len(c.items) {
		return Item{}, false
	}
	return c.items[i], true
}

func (c *Collection) WithUUID(uuid string) (Item, bool) {
	if i := c.indexOf(uuid); i >= 0 {
		return c.items[i], true
	}
	return Item{}, false
}

func (c *Collection) Has(uuid string) bool { return c.indexOf(uuid) >= 0 }

// IndexOf returns the position of uuid or -1.
func (c *Collection) IndexOf(uuid string) int { return c.indexOf(uuid) }

// Find returns the first item for which fn reports true.
func (c *Collection) Find(fn func(i int, item Item) bool) (Item, bool) {
	for i, item := range c.items {
		if fn(i, item) {
			return item, true
		}
	}
	return Item{}, false
}

// All iterates the items as they were when iteration started. Changes made
// to the collection during iteration are not seen by the loop.
func (c *Collection) All() iter.Seq2[int, Item] {
	return func(yield func(int, Item) bool) {
		for i, item := range c.Items() {
			if !yield(i, item) {
				return
			}
		}
	}
}

func (c *Collection) indexOf(uuid string) int {
	for i, item := range c.items {
		if item.UUID == uuid {
			return i
		}
	}
	return -1
}
