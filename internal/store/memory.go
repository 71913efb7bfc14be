package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	ierrors "github.com/abgdnv/inventory/internal/errors"
)

// MemoryStore implements Store using in-memory maps.
// Transactions are serialized and roll back by restoring a snapshot.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data memData
}

type memData struct {
	products map[int64]Product
	sales    map[int64]Sale
	// items is keyed by sale id, then product id.
	items         map[int64]map[int64]int32
	nextProductID int64
	nextSaleID    int64
}

func (d memData) clone() memData {
	items := make(map[int64]map[int64]int32, len(d.items))
	for saleID, byProduct := range d.items {
		items[saleID] = maps.Clone(byProduct)
	}
	return memData{
		products:      maps.Clone(d.products),
		sales:         maps.Clone(d.sales),
		items:         items,
		nextProductID: d.nextProductID,
		nextSaleID:    d.nextSaleID,
	}
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: memData{
			products:      make(map[int64]Product),
			sales:         make(map[int64]Sale),
			items:         make(map[int64]map[int64]int32),
			nextProductID: 1,
			nextSaleID:    1,
		},
	}
}

func (s *MemoryStore) Products() ProductStore { return &memProducts{s: s} }
func (s *MemoryStore) Sales() SaleStore       { return &memSales{s: s} }

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ierrors.ErrTransactionBegin, err)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, memTx{s: s}); err != nil {
		s.mu.Lock()
		// identities are never handed out twice, even after a rollback
		snapshot.nextProductID = s.data.nextProductID
		snapshot.nextSaleID = s.data.nextSaleID
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) read(fn func(d *memData)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

// write applies fn under the data lock. Outside a transaction it also waits for
// running transactions so a rollback cannot discard the write.
func (s *MemoryStore) write(inTx bool, fn func(d *memData) error) error {
	if !inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

type memTx struct {
	s *MemoryStore
}

func (t memTx) Products() ProductStore { return &memProducts{s: t.s, inTx: true} }
func (t memTx) Sales() SaleStore       { return &memSales{s: t.s, inTx: true} }

type memProducts struct {
	s    *MemoryStore
	inTx bool
}

func (p *memProducts) FindAll(context.Context) ([]Product, error) {
	var list []Product
	p.s.read(func(d *memData) {
		list = slices.SortedFunc(maps.Values(d.products), byProductID)
	})
	return list, nil
}

func (p *memProducts) FindByID(_ context.Context, id int64) (*Product, error) {
	var (
		product Product
		ok      bool
	)
	p.s.read(func(d *memData) {
		product, ok = d.products[id]
	})
	if !ok {
		return nil, ierrors.ErrProductNotFound
	}
	return &product, nil
}

func (p *memProducts) FindByName(_ context.Context, name string) (*Product, error) {
	var (
		product Product
		ok      bool
	)
	p.s.read(func(d *memData) {
		product, ok = d.productByName(name)
	})
	if !ok {
		return nil, ierrors.ErrProductNotFound
	}
	return &product, nil
}

func (p *memProducts) FindByIDsForUpdate(_ context.Context, ids []int64) ([]Product, error) {
	list := make([]Product, 0, len(ids))
	p.s.read(func(d *memData) {
		seen := make(map[int64]bool, len(ids))
		for _, id := range ids {
			if product, ok := d.products[id]; ok && !seen[id] {
				seen[id] = true
				list = append(list, product)
			}
		}
	})
	slices.SortFunc(list, byProductID)
	return list, nil
}

func (p *memProducts) Create(_ context.Context, name string, quantity int32) (*Product, error) {
	var product Product
	err := p.s.write(p.inTx, func(d *memData) error {
		if _, taken := d.productByName(name); taken {
			return ierrors.ErrProductAlreadyExists
		}
		product = Product{ID: d.nextProductID, Name: name, Quantity: quantity}
		d.nextProductID++
		d.products[product.ID] = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (p *memProducts) Update(_ context.Context, id int64, name string, quantity int32) (int64, error) {
	var rows int64
	err := p.s.write(p.inTx, func(d *memData) error {
		if _, ok := d.products[id]; !ok {
			return nil
		}
		if other, taken := d.productByName(name); taken && other.ID != id {
			return ierrors.ErrProductAlreadyExists
		}
		d.products[id] = Product{ID: id, Name: name, Quantity: quantity}
		rows = 1
		return nil
	})
	return rows, err
}

func (p *memProducts) DeleteByID(_ context.Context, id int64) (DeleteResult, error) {
	var result DeleteResult
	err := p.s.write(p.inTx, func(d *memData) error {
		if _, ok := d.products[id]; !ok {
			return nil
		}
		delete(d.products, id)
		for _, byProduct := range d.items {
			delete(byProduct, id)
		}
		result.RowsAffected = 1
		return nil
	})
	return result, err
}

func (p *memProducts) AdjustStock(_ context.Context, id int64, delta int32) error {
	return p.s.write(p.inTx, func(d *memData) error {
		product, ok := d.products[id]
		if !ok {
			return ierrors.ErrProductNotFound
		}
		quantity := int64(product.Quantity) + int64(delta)
		if quantity > math.MaxInt32 || quantity < math.MinInt32 {
			return fmt.Errorf("product %d: %w", id, ierrors.ErrQuantityOutOfRange)
		}
		product.Quantity = int32(quantity)
		d.products[id] = product
		return nil
	})
}

func (p *memProducts) DecrementStock(_ context.Context, id int64, quantity int32) (bool, error) {
	var done bool
	err := p.s.write(p.inTx, func(d *memData) error {
		product, ok := d.products[id]
		if !ok || product.Quantity < quantity {
			return nil
		}
		product.Quantity -= quantity
		d.products[id] = product
		done = true
		return nil
	})
	return done, err
}

type memSales struct {
	s    *MemoryStore
	inTx bool
}

func (m *memSales) FindAll(context.Context) ([]SaleLine, error) {
	lines := []SaleLine{}
	m.s.read(func(d *memData) {
		for _, saleID := range slices.Sorted(maps.Keys(d.items)) {
			lines = append(lines, d.saleLines(saleID)...)
		}
	})
	return lines, nil
}

func (m *memSales) FindByID(_ context.Context, id int64) ([]SaleLine, error) {
	lines := []SaleLine{}
	m.s.read(func(d *memData) {
		lines = append(lines, d.saleLines(id)...)
	})
	return lines, nil
}

func (m *memSales) Create(context.Context) (*Sale, error) {
	var sale Sale
	err := m.s.write(m.inTx, func(d *memData) error {
		sale = Sale{ID: d.nextSaleID, Date: time.Now().UTC()}
		d.nextSaleID++
		d.sales[sale.ID] = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (m *memSales) BindItems(_ context.Context, saleID int64, items []SaleItem) error {
	return m.s.write(m.inTx, func(d *memData) error {
		if _, ok := d.sales[saleID]; !ok {
			return fmt.Errorf("binding items to unknown sale %d: %w", saleID, ierrors.ErrInternal)
		}
		bound := maps.Clone(d.items[saleID])
		if bound == nil {
			bound = make(map[int64]int32, len(items))
		}
		for _, item := range items {
			if _, ok := d.products[item.ProductID]; !ok {
				return fmt.Errorf("binding unknown product %d to sale %d: %w", item.ProductID, saleID, ierrors.ErrInternal)
			}
			if _, dup := bound[item.ProductID]; dup {
				return fmt.Errorf("product %d bound twice to sale %d: %w", item.ProductID, saleID, ierrors.ErrInternal)
			}
			bound[item.ProductID] = item.Quantity
		}
		d.items[saleID] = bound
		return nil
	})
}

func (m *memSales) LockItems(_ context.Context, saleID int64) ([]SaleItem, error) {
	var items []SaleItem
	m.s.read(func(d *memData) {
		items = d.saleItems(saleID)
	})
	return items, nil
}

func (m *memSales) UpdateItemQuantity(_ context.Context, saleID, productID int64, quantity int32) (int64, error) {
	var rows int64
	err := m.s.write(m.inTx, func(d *memData) error {
		if _, ok := d.items[saleID][productID]; !ok {
			return nil
		}
		d.items[saleID][productID] = quantity
		rows = 1
		return nil
	})
	return rows, err
}

func (m *memSales) DeleteItems(_ context.Context, saleID int64) ([]SaleItem, error) {
	var items []SaleItem
	err := m.s.write(m.inTx, func(d *memData) error {
		items = d.saleItems(saleID)
		delete(d.items, saleID)
		return nil
	})
	return items, err
}

func (m *memSales) Delete(_ context.Context, saleID int64) (int64, error) {
	var rows int64
	err := m.s.write(m.inTx, func(d *memData) error {
		if _, ok := d.sales[saleID]; !ok {
			return nil
		}
		delete(d.sales, saleID)
		delete(d.items, saleID)
		rows = 1
		return nil
	})
	return rows, err
}

func (d *memData) productByName(name string) (Product, bool) {
	for _, product := range d.products {
		if product.Name == name {
			return product, true
		}
	}
	return Product{}, false
}

func (d *memData) saleItems(saleID int64) []SaleItem {
	byProduct := d.items[saleID]
	items := make([]SaleItem, 0, len(byProduct))
	for _, productID := range slices.Sorted(maps.Keys(byProduct)) {
		items = append(items, SaleItem{SaleID: saleID, ProductID: productID, Quantity: byProduct[productID]})
	}
	return items
}

func (d *memData) saleLines(saleID int64) []SaleLine {
	sale, ok := d.sales[saleID]
	if !ok {
		return nil
	}
	items := d.saleItems(saleID)
	lines := make([]SaleLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, SaleLine{SaleID: saleID, Date: sale.Date, ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func byProductID(a, b Product) int {
	return cmp.Compare(a.ID, b.ID)
}
