package semantic

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/WessleyAI/docrag/engine/domain"
	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

// badgerRecord is the on-disk form of a record. Collections share one
// database and are told apart by the indexed Collection field.
type badgerRecord struct {
	Key        string
	Collection string `badgerhold:"index"`
	domain.Record
}

// Badger is a Store persisted in an embedded badger database. Search scans
// every record of the collection.
type Badger struct {
	store      *badgerhold.Store
	collection string
}

// OpenBadger opens (creating if needed) the database under dir.
func OpenBadger(dir, collection string) (*Badger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.StoreError("open", err)
	}
	opts := badgerhold.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = nil
	store, err := badgerhold.Open(opts)
	if err != nil {
		return nil, domain.StoreError("open", fmt.Errorf("badger %s: %w", dir, err))
	}
	return &Badger{store: store, collection: collection}, nil
}

func (b *Badger) key(id string) string { return b.collection + "/" + id }

func (b *Badger) inCollection() *badgerhold.Query {
	return badgerhold.Where("Collection").Eq(b.collection)
}

// storedDim returns the dimension of an existing record, or 0 when empty.
func (b *Badger) storedDim() (int, error) {
	var one []badgerRecord
	if err := b.store.Find(&one, b.inCollection().Limit(1)); err != nil {
		return 0, err
	}
	if len(one) == 0 {
		return 0, nil
	}
	return len(one[0].Embedding), nil
}

// Add writes all records in one transaction.
func (b *Badger) Add(ctx context.Context, chunks []domain.Chunk, embeddings [][]float32) error {
	if err := ctx.Err(); err != nil {
		return domain.StoreError("add", err)
	}
	records, dim, err := prepare(chunks, embeddings)
	if err != nil || len(records) == 0 {
		return err
	}
	have, err := b.storedDim()
	if err != nil {
		return domain.StoreError("add", err)
	}
	if have != 0 && have != dim {
		return domain.StoreError("add", mismatch(have, dim))
	}
	err = b.store.Badger().Update(func(tx *badger.Txn) error {
		for _, r := range records {
			k := b.key(r.ID)
			if err := b.store.TxUpsert(tx, k, &badgerRecord{Key: k, Collection: b.collection, Record: r}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.StoreError("add", err)
	}
	return nil
}

func (b *Badger) Search(ctx context.Context, query []float32, k int) (domain.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("search", err)
	}
	if k <= 0 {
		return domain.RetrievalResult{}, nil
	}
	var rows []badgerRecord
	if err := b.store.Find(&rows, b.inCollection()); err != nil {
		return nil, domain.StoreError("search", err)
	}
	if len(rows) == 0 {
		return domain.RetrievalResult{}, nil
	}
	records := make([]domain.Record, len(rows))
	for i, row := range rows {
		if len(row.Embedding) != len(query) {
			return nil, domain.StoreError("search", mismatch(len(row.Embedding), len(query)))
		}
		records[i] = row.Record
	}
	return rank(records, query, k), nil
}

func (b *Badger) Count(context.Context) (int, error) {
	n, err := b.store.Count(&badgerRecord{}, b.inCollection())
	if err != nil {
		return 0, domain.StoreError("count", err)
	}
	return int(n), nil
}

// Reset deletes every record of the collection.
func (b *Badger) Reset(context.Context) error {
	err := b.store.DeleteMatching(&badgerRecord{}, b.inCollection())
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return domain.StoreError("reset", err)
	}
	return nil
}

func (b *Badger) Close() error {
	return b.store.Close()
}
