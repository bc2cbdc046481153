package transfer

import (
	"fmt"

	"github.com/docker/go-units"
)

// Progress describes how much of an upload the server has accepted.
type Progress struct {
	UploadedBytes int64
	TotalBytes    int64
}

// Fraction returns the uploaded share in the [0, 1] range. A zero-length
// upload has nothing to measure and reports 0.
func (p Progress) Fraction() float64 {
	if p.TotalBytes == 0 {
		return 0
	}
	return float64(p.UploadedBytes) / float64(p.TotalBytes)
}

func (p Progress) String() string {
	return fmt.Sprintf("%s of %s (%.0f%%)",
		units.HumanSizeWithPrecision(float64(p.UploadedBytes), 3),
		units.HumanSizeWithPrecision(float64(p.TotalBytes), 3),
		p.Fraction()*100)
}

func reportProgress(cb func(Progress), uploaded, total int64) {
	if cb == nil {
		return
	}
	cb(Progress{UploadedBytes: uploaded, TotalBytes: total})
}
