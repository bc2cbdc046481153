// Package transfer implements a resumable file upload client speaking a
// subset of the tus protocol: session creation, offset discovery, chunked
// transfer with bounded retry and linear backoff, and progress reporting.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"
	"github.com/google/uuid"

	"github.com/packship/packship/transfer/network"
)

// ChunkSizeBytes is the size of a single chunk transmission.
const ChunkSizeBytes = 1024 * 1024

// UploadInput is the information one upload invocation needs.
type UploadInput struct {
	// Data is the full file content to upload.
	Data []byte
	// Filename is transmitted to the server as upload metadata.
	Filename string
	// OnProgress is called with 0% before session creation and after every
	// accepted chunk. Optional.
	OnProgress func(Progress)
	// OnSuccess is called exactly once with the session URL when the upload
	// completes. Optional.
	OnSuccess func(sessionURL string)
	// OnError is called exactly once when the upload terminally fails.
	// Optional.
	OnError func(err error)
}

// session is the immutable description of one negotiated upload.
type session struct {
	id        string
	url       string
	totalSize int64
	filename  string
}

// cursor tracks transfer state within a session. uploadedBytes only moves
// forward as the server accepts chunks; retryCount resets to zero on any
// successful transmission.
type cursor struct {
	uploadedBytes int64
	retryCount    int
}

type uploader struct {
	client TransferClient
	logger log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewUploader creates an uploader that transfers to the given endpoint.
// `client` can be nil, unless you want to provide a custom TransferClient
// implementation.
func NewUploader(endpoint string, logger log.Logger, client TransferClient) *uploader {
	var clientImpl TransferClient = client
	if client == nil {
		clientImpl = network.NewClient(endpoint, nil, logger)
	}
	return &uploader{
		client: clientImpl,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Upload drives one file transfer to completion. Exactly one of
// input.OnSuccess and input.OnError is invoked before Upload returns; the
// returned values mirror the callback outcome.
func (u *uploader) Upload(ctx context.Context, input UploadInput) (string, error) {
	uploadID := uuid.NewString()
	totalSize := int64(len(input.Data))

	u.logger.Infof("Uploading %s (%s) [upload %s]",
		input.Filename, units.HumanSizeWithPrecision(float64(totalSize), 3), uploadID)
	reportProgress(input.OnProgress, 0, totalSize)

	sessionURL, err := u.client.CreateUpload(ctx, totalSize, input.Filename)
	if err != nil {
		return u.fail(uploadID, input, fmt.Errorf("create upload session: %w", err))
	}
	u.logger.Debugf("Upload %s session: %s", uploadID, sessionURL)

	sess := session{id: uploadID, url: sessionURL, totalSize: totalSize, filename: input.Filename}
	if err := u.transfer(ctx, sess, input); err != nil {
		return u.fail(uploadID, input, err)
	}

	u.logger.Donef("Upload %s finished: %s", uploadID, sess.url)
	if input.OnSuccess != nil {
		input.OnSuccess(sess.url)
	}
	return sess.url, nil
}

// transfer loops probe-then-send until the whole file is accepted or the
// retry budget runs out. Chunks are sent strictly in order, one at a time.
func (u *uploader) transfer(ctx context.Context, sess session, input UploadInput) error {
	var cur cursor

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("upload cancelled: %w", err)
		}

		// Best-effort probe: a failure keeps the previous cursor value.
		offset, err := u.client.Offset(ctx, sess.url)
		if err != nil {
			u.logger.Warnf("Upload %s: offset probe failed, keeping local offset %d: %s", sess.id, cur.uploadedBytes, err)
		} else {
			if offset < cur.uploadedBytes {
				u.logger.Warnf("Upload %s: server offset %d is behind local offset %d, rewinding", sess.id, offset, cur.uploadedBytes)
			}
			cur.uploadedBytes = offset
		}

		if cur.uploadedBytes >= sess.totalSize {
			return nil
		}

		length := sess.totalSize - cur.uploadedBytes
		if length > ChunkSizeBytes {
			length = ChunkSizeBytes
		}
		chunk := input.Data[cur.uploadedBytes : cur.uploadedBytes+length]

		newOffset, err := u.client.SendChunk(ctx, sess.url, cur.uploadedBytes, chunk)
		if err == nil {
			cur.uploadedBytes = newOffset
			cur.retryCount = 0
			reportProgress(input.OnProgress, cur.uploadedBytes, sess.totalSize)
			continue
		}

		cur.retryCount++
		decision := nextRetry(cur.retryCount)
		if decision.exhausted {
			return fmt.Errorf("upload abandoned after %d retries: %w", maxChunkRetries, err)
		}

		u.logger.Warnf("Upload %s: chunk at offset %d failed (attempt %d/%d), retrying in %s: %s",
			sess.id, cur.uploadedBytes, cur.retryCount, maxChunkRetries, decision.backoff, err)
		if err := u.sleep(ctx, decision.backoff); err != nil {
			return fmt.Errorf("upload cancelled: %w", err)
		}
	}
}

func (u *uploader) fail(uploadID string, input UploadInput, err error) (string, error) {
	u.logger.Errorf("Upload %s failed: %s", uploadID, err)
	if input.OnError != nil {
		input.OnError(err)
	}
	return "", err
}

// sleepContext waits out a backoff duration unless the context is cancelled
// first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
