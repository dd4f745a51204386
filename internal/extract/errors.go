package extract

import (
	"errors"
	"fmt"
)

// Extraction stages reported in ExtractionError.Stage.
const (
	StageValidate = "validate"
	StagePage     = "page"
	StageSummary  = "summary"
)

// ErrEmptyLocation is returned for references without a URL.
var ErrEmptyLocation = errors.New("reference has no location")

// ErrUnreadablePage is returned when a fetched body is not usable HTML, such
// as a PDF or a JSON error payload.
var ErrUnreadablePage = errors.New("page is not readable html")

// ExtractionError reports that an article could not be turned into a
// document. No partial document accompanies it.
type ExtractionError struct {
	Location    string
	Publication string
	Stage       string
	Err         error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %q (%s) at %s stage: %v", e.Location, e.Publication, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
