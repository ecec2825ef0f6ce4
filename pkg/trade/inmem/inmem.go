package inmem

import (
	"sort"
	"sync"
	"time"

	"github.com/igolaizola/pocketbot/pkg/trade"
)

type Store struct {
	trades sync.Map
}

func (s *Store) List(from time.Time, to time.Time) ([]*trade.Trade, error) {
	var trades []*trade.Trade
	s.trades.Range(func(key interface{}, value interface{}) bool {
		t := value.(trade.Trade)
		if t.Time.Before(from) || t.Time.After(to) {
			return true
		}
		trades = append(trades, &t)
		return true
	})
	sort.Slice(trades, func(i, j int) bool {
		return trades[i].Key() < trades[j].Key()
	})
	return trades, nil
}

func (s *Store) Update(t *trade.Trade) error {
	s.trades.Store(t.Key(), *t)
	return nil
}

func (s *Store) Delete(t *trade.Trade) error {
	s.trades.Delete(t.Key())
	return nil
}
