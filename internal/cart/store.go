package cart

import (
	"context"
	"fmt"
	"sync"
)

// Store はセッションIDをキーにカートを保持するストアのインターフェース。
// カートはログインセッションの寿命を超えて保持されない。
type Store interface {
	// Get は指定セッションのカートを返す。存在しない場合は空のカートを返す。
	Get(ctx context.Context, sessionID string) (*Cart, error)
	// Save は指定セッションのカートを保存する。
	Save(ctx context.Context, sessionID string, c *Cart) error
	// Delete は指定セッションのカートを削除する。存在しない場合もエラーにならない。
	Delete(ctx context.Context, sessionID string) error
}

// Updater は読み出し・変更・保存を不可分に実行できるStoreが実装する。
type Updater interface {
	Update(ctx context.Context, sessionID string, fn func(c *Cart) error) (*Cart, error)
}

// Update はカートを読み出してfnで変更し、保存する。
// fnがエラーを返した場合は保存しない。
// storeがUpdaterを実装していればそちらに委譲する。
func Update(ctx context.Context, store Store, sessionID string, fn func(c *Cart) error) (*Cart, error) {
	if u, ok := store.(Updater); ok {
		return u.Update(ctx, sessionID, fn)
	}

	c, err := store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := store.Save(ctx, sessionID, c); err != nil {
		return nil, fmt.Errorf("failed to save cart: %w", err)
	}
	return c, nil
}

// MemoryStore はプロセス内メモリにカートを保持するStore実装。
// プロセスの再起動でカートは失われる。
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]*Cart)}
}

// Get は保持しているカートのコピーを返す。
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[sessionID]
	if !ok {
		return &Cart{}, nil
	}
	return c.Snapshot(), nil
}

// Save はカートのコピーを保持する。
func (s *MemoryStore) Save(ctx context.Context, sessionID string, c *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[sessionID] = c.Snapshot()
	return nil
}

// Update はロックを保持したままカートを変更する。
func (s *MemoryStore) Update(ctx context.Context, sessionID string, fn func(c *Cart) error) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &Cart{}
	if existing, ok := s.carts[sessionID]; ok {
		c = existing.Snapshot()
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	s.carts[sessionID] = c
	return c.Snapshot(), nil
}

// Delete はカートを破棄する。
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, sessionID)
	return nil
}

// compile-time interface check
var (
	_ Store   = (*MemoryStore)(nil)
	_ Updater = (*MemoryStore)(nil)
)
