package cache

import "container/list"

// Item is a single cache entry. Data is stored as-is; items restored from
// a persistent store carry whatever the codec decoded (see Decode).
type Item struct {
	Key  string `json:"key" msgpack:"key"`
	Data any    `json:"data" msgpack:"data"`
}

// itemStore maps keys to items and remembers put order, most recent last.
// It is not safe for concurrent use; the owning Layer serialises access.
type itemStore struct {
	index map[string]*list.Element
	order *list.List
}

func newItemStore() *itemStore {
	return &itemStore{
		index: make(map[string]*list.Element),
		order: list.New(),
	}
}

func (s *itemStore) get(key string) (Item, bool) {
	el, ok := s.index[key]
	if !ok {
		return Item{}, false
	}
	return el.Value.(Item), true
}

// put upserts item and moves it to the back of the order.
func (s *itemStore) put(item Item) Item {
	if el, ok := s.index[item.Key]; ok {
		el.Value = item
		s.order.MoveToBack(el)
		return item
	}
	s.index[item.Key] = s.order.PushBack(item)
	return item
}

func (s *itemStore) remove(key string) bool {
	el, ok := s.index[key]
	if !ok {
		return false
	}
	delete(s.index, key)
	s.order.Remove(el)
	return true
}

func (s *itemStore) len() int {
	return len(s.index)
}

func (s *itemStore) snapshot() []Item {
	out := make([]Item, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(Item))
	}
	return out
}

func (s *itemStore) keys() []string {
	out := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(Item).Key)
	}
	return out
}
