package bolt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/igolaizola/pocketbot/pkg/trade"
)

var bucket = []byte("trades")

func New(path string) (*Store, error) {
	// The file is created if it doesn't exist.
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: couldn't open bolt db %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
			return err
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: couldn't create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

type Store struct {
	db *bolt.DB
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(from time.Time, to time.Time) ([]*trade.Trade, error) {
	var trades []*trade.Trade
	if err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()

		// Keys start with the fire time, the "/~" suffix of the upper bound
		// makes trades fired exactly at `to` inclusive
		min := []byte(trade.KeyTime(from))
		max := []byte(trade.KeyTime(to) + "/~")

		for k, v := c.Seek(min); k != nil && bytes.Compare(k, max) <= 0; k, v = c.Next() {
			var t trade.Trade
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("couldn't decode %s: %w", k, err)
			}
			if t.Time.Before(from) || t.Time.After(to) {
				continue
			}
			trades = append(trades, &t)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("bolt: couldn't query: %w", err)
	}
	return trades, nil
}

func (s *Store) Update(t *trade.Trade) error {
	key := []byte(t.Key())
	if err := s.db.Update(func(tx *bolt.Tx) error {
		byt, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("couldn't encode: %w", err)
		}
		return tx.Bucket(bucket).Put(key, byt)
	}); err != nil {
		return fmt.Errorf("bolt: couldn't put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(t *trade.Trade) error {
	key := []byte(t.Key())
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete(key)
	}); err != nil {
		return fmt.Errorf("bolt: couldn't delete %s: %w", key, err)
	}
	return nil
}
