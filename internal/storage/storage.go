// Package storage connects to the object storage holding uploads, results and fonts
package storage

import (
	"context"
	"log"
	"time"

	"github.com/UnendingLoop/Watermarker/internal/storage/miniostorage"
)

// NewObjectStorage keeps retrying until MinIO answers or ctx is done.
func NewObjectStorage(ctx context.Context, opts miniostorage.Options, delay time.Duration) (*miniostorage.MinioStorage, error) {
	for {
		log.Println("Connecting to object storage...")
		client, err := miniostorage.NewMinioClient(opts)
		if err == nil {
			log.Println("Successfully connected to object storage!")
			return client, nil
		}
		log.Printf("Failed to init connection to object storage: %v\nNext retry in %v...", err, delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
