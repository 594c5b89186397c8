package storage

import "github.com/rl1809/lending-ledger/internal/core/domain"

// DefaultCatalog bootstraps an empty store.
var DefaultCatalog = []domain.Book{
	{Title: "Learn Python", Quantity: 4},
	{Title: "Database Systems", Quantity: 3},
	{Title: "Data Structures", Quantity: 3},
	{Title: "Web Development", Quantity: 2},
	{Title: "AI Basics", Quantity: 2},
}
