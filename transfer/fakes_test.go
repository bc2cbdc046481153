package transfer

import (
	"context"
	"fmt"

	"github.com/bitrise-io/go-utils/v2/log"
)

type sentChunk struct {
	offset int64
	length int
}

// fakeTransferClient scripts the server side of an upload: sendErrs is
// consumed one entry per SendChunk call (a nil entry means success), and
// probeOffsets is consumed one entry per Offset call before falling back to
// the offset implied by accepted chunks.
type fakeTransferClient struct {
	sessionURL   string
	createErr    error
	probeErr     error
	probeOffsets []int64
	sendErrs     []error
	serverOffset int64

	createCalls int
	probeCalls  int
	sends       []sentChunk
}

func (f *fakeTransferClient) CreateUpload(ctx context.Context, size int64, filename string) (string, error) {
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.sessionURL, nil
}

func (f *fakeTransferClient) Offset(ctx context.Context, uploadURL string) (int64, error) {
	f.probeCalls++
	if f.probeErr != nil {
		return 0, f.probeErr
	}
	if len(f.probeOffsets) > 0 {
		offset := f.probeOffsets[0]
		f.probeOffsets = f.probeOffsets[1:]
		return offset, nil
	}
	return f.serverOffset, nil
}

func (f *fakeTransferClient) SendChunk(ctx context.Context, uploadURL string, offset int64, data []byte) (int64, error) {
	f.sends = append(f.sends, sentChunk{offset: offset, length: len(data)})
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	f.serverOffset = offset + int64(len(data))
	return f.serverOffset, nil
}

// recordingLogger captures formatted log lines while delegating to a real
// logger.
type recordingLogger struct {
	log.Logger
	lines []string
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{Logger: log.NewLogger()}
}

func (l *recordingLogger) record(format string, v ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func (l *recordingLogger) Infof(format string, v ...interface{}) {
	l.record(format, v...)
	l.Logger.Infof(format, v...)
}

func (l *recordingLogger) Warnf(format string, v ...interface{}) {
	l.record(format, v...)
	l.Logger.Warnf(format, v...)
}

func (l *recordingLogger) Errorf(format string, v ...interface{}) {
	l.record(format, v...)
	l.Logger.Errorf(format, v...)
}
