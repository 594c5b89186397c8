package domain

type Book struct {
	ID       int64  `db:"id" json:"id"`
	Title    string `db:"title" json:"title"`
	Quantity int    `db:"quantity" json:"quantity"`
	// Version increases with every quantity change and orders availability snapshots.
	Version  int64  `db:"version" json:"-"`
}

// Available reports whether at least one copy can be lent out.
func (b Book) Available() bool {
	return b.Quantity > 0
}
