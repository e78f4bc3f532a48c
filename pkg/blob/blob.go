package blob

import "context"

// Object is a handle to one stored document.
type Object struct {
	Bucket      string
	Key         string
	ContentType string
	// URL is an optional fetchable location for the object. Extraction paths
	// that go through an external service (PDF OCR) need one; stores that
	// cannot provide it leave the field empty.
	URL string
	// Size in bytes where the store knows it, -1 otherwise.
	Size int64
}

// Store lists and reads documents from a bucket. Implementations are owned by
// the hosting infrastructure; the ingestion pipeline only depends on this
// contract.
type Store interface {
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	Read(ctx context.Context, obj Object) ([]byte, error)
}
