//go:build consul

package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	consulapi "github.com/hashicorp/consul/api"

	"pricecheck/pkg/model"
)

// ConsulBackend stores the document under a single KV key and writes with
// check-and-set on the last seen ModifyIndex.
type ConsulBackend struct {
	kv  *consulapi.KV
	key string

	mu    sync.Mutex
	index uint64
}

func NewConsulBackend(addr, key, _ string, log *slog.Logger) (Backend, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	if log != nil {
		log.Info("ledger stored in consul", "addr", cfg.Address, "key", key)
	}
	return &ConsulBackend{kv: cli.KV(), key: key}, nil
}

func (c *ConsulBackend) Load() (model.LedgerDocument, error) {
	pair, _, err := c.kv.Get(c.key, nil)
	if err != nil {
		return emptyDoc(), fmt.Errorf("consul get %s: %w", c.key, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if pair == nil {
		c.index = 0
		return emptyDoc(), nil
	}
	c.index = pair.ModifyIndex
	doc := emptyDoc()
	if err := json.Unmarshal(pair.Value, &doc); err != nil {
		return emptyDoc(), fmt.Errorf("decode %s: %w", c.key, err)
	}
	if doc.Sites == nil {
		doc.Sites = map[string]model.LedgerEntry{}
	}
	return doc, nil
}

func (c *ConsulBackend) Save(doc model.LedgerDocument) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ok, _, err := c.kv.CAS(&consulapi.KVPair{Key: c.key, Value: b, ModifyIndex: c.index}, nil)
	if err != nil {
		return fmt.Errorf("consul cas %s: %w", c.key, err)
	}
	if !ok {
		return ErrConflict
	}
	pair, _, err := c.kv.Get(c.key, nil)
	if err == nil && pair != nil {
		c.index = pair.ModifyIndex
	}
	return nil
}
