package storage

import "github.com/dmphub-lab/dmphub/internal/schema"

var (
	_ schema.Repository = (*FileSystemRepository)(nil)
	_ schema.Repository = (*MemoryRepository)(nil)
)
