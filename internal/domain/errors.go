package domain

import "errors"

// Domain errors.
var (
	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoJobs is returned when there are no jobs to process.
	ErrNoJobs = errors.New("no jobs available")

	// ErrUnsupportedURL is returned when a URL does not point at a supported platform.
	ErrUnsupportedURL = errors.New("unsupported video URL")

	// ErrNoLink is returned when a chat message contains no supported video link.
	ErrNoLink = errors.New("no supported video link in message")

	// ErrDownloadFailed is returned when the extraction backend cannot produce a file.
	ErrDownloadFailed = errors.New("video download failed")

	// ErrCompressionFailed is returned when the transcoder exits with a nonzero status.
	ErrCompressionFailed = errors.New("video compression failed")

	// ErrOverBudget is returned when a produced file is larger than the size budget.
	ErrOverBudget = errors.New("file exceeds size budget")

	// ErrTooLarge is the failure reported when every fallback still exceeded the budget.
	ErrTooLarge = errors.New("video too large")

	// ErrArtifactGone is returned when a job's artifact was already consumed or expired.
	ErrArtifactGone = errors.New("artifact no longer available")

	// ErrJobNotFinished is returned when the artifact of a still-running job is requested.
	ErrJobNotFinished = errors.New("job has not finished")
)

// AcquisitionError wraps an error with the URL and pipeline step it came from.
type AcquisitionError struct {
	URL string
	Op  string
	Err error
}

func (e *AcquisitionError) Error() string {
	if e.URL != "" {
		return e.Op + " [" + e.URL + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// NewAcquisitionError creates a new AcquisitionError.
func NewAcquisitionError(url, op string, err error) *AcquisitionError {
	return &AcquisitionError{
		URL: url,
		Op:  op,
		Err: err,
	}
}
