package storage

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"github.com/rl1809/lending-ledger/internal/core/domain"
)

const (
	tableBooks  = "books"
	colID       = "id"
	colTitle    = "title"
	colQuantity = "quantity"
	colVersion  = "version"
)

func (r *sqlRepo) booksSelect() *goqu.SelectDataset {
	return r.store.builder.From(tableBooks).Select(colID, colTitle, colQuantity, colVersion)
}

func (r *sqlRepo) ListAvailable(ctx context.Context) ([]domain.Book, error) {
	query, _, err := r.booksSelect().
		Where(goqu.C(colQuantity).Gt(0)).
		Order(goqu.C(colID).Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build available books query: %w", err)
	}

	books := []domain.Book{}
	if err := sqlx.SelectContext(ctx, r.q, &books, query); err != nil {
		return nil, fmt.Errorf("query available books: %w", err)
	}
	return books, nil
}

func (r *sqlRepo) GetByID(ctx context.Context, id int64) (domain.Book, error) {
	ds := r.booksSelect().Where(goqu.C(colID).Eq(id))
	if r.locking {
		ds = ds.ForUpdate(exp.Wait)
	}

	book, err := r.getBook(ctx, ds)
	if isNoRows(err) {
		return domain.Book{}, fmt.Errorf("%w: id %d", domain.ErrBookNotFound, id)
	}
	return book, err
}

func (r *sqlRepo) GetByTitle(ctx context.Context, title string) (domain.Book, error) {
	ds := r.booksSelect().
		Where(goqu.C(colTitle).Eq(title)).
		Order(goqu.C(colID).Asc()).
		Limit(1)

	book, err := r.getBook(ctx, ds)
	if isNoRows(err) {
		return domain.Book{}, fmt.Errorf("%w: title %q", domain.ErrBookNotFound, title)
	}
	return book, err
}

func (r *sqlRepo) getBook(ctx context.Context, ds *goqu.SelectDataset) (domain.Book, error) {
	query, _, err := ds.ToSQL()
	if err != nil {
		return domain.Book{}, fmt.Errorf("build book query: %w", err)
	}

	var book domain.Book
	if err := sqlx.GetContext(ctx, r.q, &book, query); err != nil {
		if isNoRows(err) {
			return domain.Book{}, err
		}
		return domain.Book{}, fmt.Errorf("query book: %w", err)
	}
	return book, nil
}

// AdjustQuantity guards the non-negative quantity in the UPDATE itself, so the check
// holds even without a preceding locking read. The version bump makes every matched
// row a changed row, which is what MySQL counts in RowsAffected.
func (r *sqlRepo) AdjustQuantity(ctx context.Context, id int64, delta int) (domain.Book, error) {
	query, _, err := r.store.builder.Update(tableBooks).
		Set(goqu.Record{
			colQuantity: goqu.L("? + ?", goqu.C(colQuantity), delta),
			colVersion:  goqu.L("? + 1", goqu.C(colVersion)),
		}).
		Where(
			goqu.C(colID).Eq(id),
			goqu.C(colQuantity).Gte(-delta),
		).
		ToSQL()
	if err != nil {
		return domain.Book{}, fmt.Errorf("build quantity update: %w", err)
	}

	result, err := r.q.ExecContext(ctx, query)
	if err != nil {
		return domain.Book{}, fmt.Errorf("update quantity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Book{}, fmt.Errorf("rows affected: %w", err)
	}

	book, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	if rows == 0 {
		return domain.Book{}, fmt.Errorf("%w: quantity of book %d would drop to %d",
			domain.ErrInvariantViolation, id, book.Quantity+delta)
	}
	return book, nil
}

// AddBook inserts a catalog row. Used for seeding and fixtures only.
func (s *SQLStore) AddBook(ctx context.Context, title string, quantity int) (domain.Book, error) {
	if quantity < 0 {
		return domain.Book{}, fmt.Errorf("%w: quantity %d is negative", domain.ErrInvariantViolation, quantity)
	}

	ds := s.builder.Insert(tableBooks).Rows(goqu.Record{colTitle: title, colQuantity: quantity})
	id, err := s.insertReturningID(ctx, s.db, ds)
	if err != nil {
		return domain.Book{}, fmt.Errorf("insert book: %w", err)
	}
	return domain.Book{ID: id, Title: title, Quantity: quantity}, nil
}

// insertReturningID uses RETURNING on postgres and LastInsertId on mysql.
func (s *SQLStore) insertReturningID(ctx context.Context, q sqlx.ExtContext, ds *goqu.InsertDataset) (int64, error) {
	if s.dialect == dialectPostgres {
		query, _, err := ds.Returning(colID).ToSQL()
		if err != nil {
			return 0, err
		}

		var id int64
		if err := q.QueryRowxContext(ctx, query).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	query, _, err := ds.ToSQL()
	if err != nil {
		return 0, err
	}

	result, err := q.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
