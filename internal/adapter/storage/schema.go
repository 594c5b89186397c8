package storage

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

var schemaStatements = map[string][]string{
	dialectMySQL: {
		`CREATE TABLE IF NOT EXISTS books (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			quantity INT NOT NULL CHECK (quantity >= 0),
			version BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS borrowed (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			borrower VARCHAR(255) NOT NULL,
			book_id BIGINT NOT NULL,
			borrow_date VARCHAR(10) NOT NULL,
			due_date VARCHAR(10) NOT NULL,
			fine DECIMAL(12,2) NOT NULL DEFAULT 0,
			FOREIGN KEY (book_id) REFERENCES books(id)
		)`,
	},
	dialectPostgres: {
		`CREATE TABLE IF NOT EXISTS books (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			quantity INT NOT NULL CHECK (quantity >= 0),
			version BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS borrowed (
			id BIGSERIAL PRIMARY KEY,
			borrower VARCHAR(255) NOT NULL,
			book_id BIGINT NOT NULL REFERENCES books(id),
			borrow_date VARCHAR(10) NOT NULL,
			due_date VARCHAR(10) NOT NULL,
			fine NUMERIC(12,2) NOT NULL DEFAULT 0
		)`,
	},
}

// EnsureSchema creates the books and borrowed tables when they are missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements[s.dialect] {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Seed loads DefaultCatalog when the books table is empty.
func (s *SQLStore) Seed(ctx context.Context) error {
	query, _, err := s.builder.From(tableBooks).Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := s.db.GetContext(ctx, &count, query); err != nil {
		return fmt.Errorf("count books: %w", err)
	}
	if count > 0 {
		return nil
	}

	rows := make([]any, 0, len(DefaultCatalog))
	for _, b := range DefaultCatalog {
		rows = append(rows, goqu.Record{colTitle: b.Title, colQuantity: b.Quantity})
	}

	query, _, err = s.builder.Insert(tableBooks).Rows(rows...).ToSQL()
	if err != nil {
		return fmt.Errorf("build seed insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("seed books: %w", err)
	}
	return nil
}
