package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/munderdifflin/paperledger/internal/platform/db"
)

// Store persists the shared ledger in PostgreSQL. Stock levels and the
// cash balance are derived from the transactions table, never stored.
type Store struct {
	db   dbtx
	pool *pgxpool.Pool
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// TxStore exposes the operations available inside a ledger transaction.
type TxStore interface {
	GetItem(ctx context.Context, name string) (Item, error)
	StockLevel(ctx context.Context, name string, asOf time.Time) (int, error)
	CashBalance(ctx context.Context, asOf time.Time) (float64, error)
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction. All mutations go
// through here so the derived stock and cash invariants hold.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Store{db: tx, pool: s.pool})
	})
}

const stockExpr = `COALESCE(SUM(CASE
		WHEN transaction_type = 'stock_order' THEN units
		WHEN transaction_type = 'sale' THEN -units
		ELSE 0
	END), 0)`

// GetItem fetches a catalog item by exact name.
func (s *Store) GetItem(ctx context.Context, name string) (Item, error) {
	var item Item
	err := s.db.QueryRow(ctx,
		`SELECT item_name, category, unit_price::float8, min_stock_level FROM inventory WHERE item_name = $1`,
		name,
	).Scan(&item.Name, &item.Category, &item.UnitPrice, &item.MinStockLevel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("ledger: get item: %w", err)
	}
	return item, nil
}

// ListItems returns the full catalog.
func (s *Store) ListItems(ctx context.Context) ([]Item, error) {
	return s.queryItems(ctx,
		`SELECT item_name, category, unit_price::float8, min_stock_level FROM inventory ORDER BY item_name`)
}

// ListItemsByCategory filters the catalog by category.
func (s *Store) ListItemsByCategory(ctx context.Context, category string) ([]Item, error) {
	return s.queryItems(ctx,
		`SELECT item_name, category, unit_price::float8, min_stock_level FROM inventory WHERE category = $1 ORDER BY item_name`,
		category)
}

// SearchItems performs a case-insensitive substring match on item names.
func (s *Store) SearchItems(ctx context.Context, term string) ([]Item, error) {
	return s.queryItems(ctx,
		`SELECT item_name, category, unit_price::float8, min_stock_level FROM inventory WHERE item_name ILIKE '%' || $1 || '%' ORDER BY item_name`,
		term)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...interface{}) ([]Item, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.Name, &item.Category, &item.UnitPrice, &item.MinStockLevel); err != nil {
			return nil, fmt.Errorf("ledger: scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// StockLevel derives an item's stock as of a date. Unknown items fail
// with ErrItemNotFound rather than reporting zero.
func (s *Store) StockLevel(ctx context.Context, name string, asOf time.Time) (int, error) {
	if _, err := s.GetItem(ctx, name); err != nil {
		return 0, err
	}
	var stock int
	err := s.db.QueryRow(ctx,
		`SELECT `+stockExpr+` FROM transactions WHERE item_name = $1 AND transaction_date <= $2`,
		name, asOf,
	).Scan(&stock)
	if err != nil {
		return 0, fmt.Errorf("ledger: stock level: %w", err)
	}
	return stock, nil
}

// StockSnapshot maps every item with positive derived stock to its level.
func (s *Store) StockSnapshot(ctx context.Context, asOf time.Time) (map[string]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT item_name, `+stockExpr+` AS stock
		 FROM transactions
		 WHERE item_name IS NOT NULL AND transaction_date <= $1
		 GROUP BY item_name
		 HAVING `+stockExpr+` > 0`,
		asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: stock snapshot: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[string]int)
	for rows.Next() {
		var name string
		var stock int
		if err := rows.Scan(&name, &stock); err != nil {
			return nil, fmt.Errorf("ledger: scan snapshot: %w", err)
		}
		snapshot[name] = stock
	}
	return snapshot, rows.Err()
}

// CashBalance derives the cash position as of a date: sale revenue minus
// stock-order spend.
func (s *Store) CashBalance(ctx context.Context, asOf time.Time) (float64, error) {
	var balance float64
	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(CASE
			WHEN transaction_type = 'sale' THEN price
			WHEN transaction_type = 'stock_order' THEN -price
			ELSE 0
		END), 0)::float8
		FROM transactions WHERE transaction_date <= $1`,
		asOf,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("ledger: cash balance: %w", err)
	}
	return balance, nil
}

// InsertTransaction appends one movement. The log is append-only:
// transactions are never updated or deleted.
func (s *Store) InsertTransaction(ctx context.Context, tx Transaction) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO transactions (item_name, transaction_type, units, price, transaction_date)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		tx.ItemName, string(tx.Type), tx.Units, tx.Price, tx.OccurredAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ledger: insert transaction: %w", err)
	}
	return id, nil
}

// ListTransactions returns movements matching the filter, newest first.
func (s *Store) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	query := `SELECT id, item_name, transaction_type, units, price::float8, transaction_date FROM transactions`
	var conds []string
	var args []interface{}
	if filter.ItemName != "" {
		args = append(args, filter.ItemName)
		conds = append(conds, fmt.Sprintf("item_name = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("transaction_type = $%d", len(args)))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		conds = append(conds, fmt.Sprintf("transaction_date <= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY transaction_date DESC, id DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: list transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var tx Transaction
		var txType string
		if err := rows.Scan(&tx.ID, &tx.ItemName, &txType, &tx.Units, &tx.Price, &tx.OccurredAt); err != nil {
			return nil, fmt.Errorf("ledger: scan transaction: %w", err)
		}
		tx.Type = TransactionType(txType)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// SearchQuoteHistory matches past quotes whose request text or explanation
// contains every search term, newest first.
func (s *Store) SearchQuoteHistory(ctx context.Context, terms []string, limit int) ([]QuoteHistoryEntry, error) {
	var conds []string
	var args []interface{}
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		args = append(args, "%"+strings.ToLower(term)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(LOWER(qr.response) LIKE $%d OR LOWER(q.quote_explanation) LIKE $%d)", n, n))
	}
	where := "1=1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}
	if limit <= 0 {
		limit = 5
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT
			qr.response,
			q.total_amount::float8,
			q.quote_explanation,
			q.job_type,
			q.order_size,
			q.event_type,
			q.order_date
		FROM quotes q
		JOIN quote_requests qr ON q.request_id = qr.id
		WHERE %s
		ORDER BY q.order_date DESC
		LIMIT $%d`, where, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: search quote history: %w", err)
	}
	defer rows.Close()

	var entries []QuoteHistoryEntry
	for rows.Next() {
		var e QuoteHistoryEntry
		if err := rows.Scan(&e.OriginalRequest, &e.TotalAmount, &e.Explanation, &e.JobType, &e.OrderSize, &e.EventType, &e.OrderDate); err != nil {
			return nil, fmt.Errorf("ledger: scan quote history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ItemsBelowMinimum lists catalog items whose derived stock as of the date
// has fallen below their minimum threshold.
func (s *Store) ItemsBelowMinimum(ctx context.Context, asOf time.Time) ([]LowStockItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT i.item_name, i.category, i.unit_price::float8, i.min_stock_level, COALESCE(t.stock, 0)
		 FROM inventory i
		 LEFT JOIN (
			SELECT item_name, `+stockExpr+` AS stock
			FROM transactions
			WHERE transaction_date <= $1
			GROUP BY item_name
		 ) t ON t.item_name = i.item_name
		 WHERE COALESCE(t.stock, 0) < i.min_stock_level
		 ORDER BY i.item_name`,
		asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: items below minimum: %w", err)
	}
	defer rows.Close()

	var items []LowStockItem
	for rows.Next() {
		var it LowStockItem
		if err := rows.Scan(&it.Name, &it.Category, &it.UnitPrice, &it.MinStockLevel, &it.Stock); err != nil {
			return nil, fmt.Errorf("ledger: scan low stock item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// TopSellers aggregates the best-selling items by revenue as of a date.
func (s *Store) TopSellers(ctx context.Context, asOf time.Time, limit int) ([]ItemSales, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(ctx,
		`SELECT item_name, SUM(units), SUM(price)::float8
		 FROM transactions
		 WHERE transaction_type = 'sale' AND transaction_date <= $1
		 GROUP BY item_name
		 ORDER BY SUM(price) DESC
		 LIMIT $2`,
		asOf, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: top sellers: %w", err)
	}
	defer rows.Close()

	var sales []ItemSales
	for rows.Next() {
		var s ItemSales
		if err := rows.Scan(&s.ItemName, &s.TotalUnits, &s.TotalRevenue); err != nil {
			return nil, fmt.Errorf("ledger: scan item sales: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}
