package service

import "context"

// TxRepositories provides transaction-bound collection repositories.
type TxRepositories interface {
	Catalog() CatalogRepository
	Chunks() ChunkRepository
}

// TxRunner executes a function within a transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
