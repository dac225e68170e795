package media

import "errors"

var (
	// ErrNoFile indicates Upload was called without a local path.
	ErrNoFile = errors.New("no local file to upload")
	// ErrUploadFailed indicates the object store rejected or timed out an upload.
	ErrUploadFailed = errors.New("media upload failed")
	// ErrProbeUnavailable indicates the metadata prober is not configured.
	ErrProbeUnavailable = errors.New("media prober unavailable")
)
