package transfer

import "context"

// Uploader ...
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (string, error)
}

// TransferClient performs the individual network calls of a resumable
// upload. Implemented by network.Client; tests provide fakes.
type TransferClient interface {
	// CreateUpload negotiates a new upload session and returns its URL.
	CreateUpload(ctx context.Context, size int64, filename string) (string, error)
	// Offset returns the number of bytes the server has accepted so far.
	Offset(ctx context.Context, uploadURL string) (int64, error)
	// SendChunk transmits data at the given offset and returns the server's
	// new accepted offset.
	SendChunk(ctx context.Context, uploadURL string, offset int64, data []byte) (int64, error)
}
