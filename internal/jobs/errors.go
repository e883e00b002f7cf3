package jobs

import "errors"

var (
	ErrAnalysisAlreadyRunning = errors.New("analysis already running for site")
	ErrAnalysisInProgress     = errors.New("analysis in progress")
	ErrJobNotFound            = errors.New("analysis job not found")
	ErrSiteNotFound           = errors.New("site not found")
)
