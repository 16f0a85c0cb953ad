// Package status holds the adapter's externally visible status code, its
// display sub-classification and the derived documentation link.
package status

import (
	"fmt"
	"strings"

	"github.com/jointfeed/openvr-adapter/internal/elevation"
)

// Codes exposed to the host.
const (
	CodeOK    = 0
	CodeError = 1
	// Reserved for driver-specific failures.
	CodeDriverFailure = -1
	CodeDriverMissing = -10
)

// Detail sub-classifies a status for display only.
type Detail int

const (
	DetailNone Detail = iota
	DetailNotInitialized
	DetailConnecting
	DetailSelfElevated
	DetailRuntimeElevated
	DetailInitFailed
	DetailTimeout
	DetailShutdown
)

var detailNames = map[Detail]string{
	DetailNone:            "Success",
	DetailNotInitialized:  "NotInitialized",
	DetailConnecting:      "Connecting",
	DetailSelfElevated:    "SelfElevated",
	DetailRuntimeElevated: "RuntimeElevated",
	DetailInitFailed:      "InitFailed",
	DetailTimeout:         "Timeout",
	DetailShutdown:        "Shutdown",
}

func (d Detail) String() string {
	if s, ok := detailNames[d]; ok {
		return s
	}
	return fmt.Sprintf("Detail(%d)", int(d))
}

// Status is one code plus its detail.
type Status struct {
	Code   int
	Detail Detail
}

// OK is the connected status.
var OK = Status{Code: CodeOK, Detail: DetailNone}

// Error builds a status with code 1.
func Error(d Detail) Status {
	return Status{Code: CodeError, Detail: d}
}

// FromMismatch maps an elevation mismatch to its status.
func FromMismatch(m elevation.Mismatch) Status {
	switch m {
	case elevation.SelfElevated:
		return Error(DetailSelfElevated)
	case elevation.RuntimeElevated:
		return Error(DetailRuntimeElevated)
	default:
		return OK
	}
}

// IsOK reports whether the status is success.
func (s Status) IsOK() bool {
	return s.Code == CodeOK
}

// LocalizationKey is the host string path for the status message.
func (s Status) LocalizationKey() string {
	if s.IsOK() {
		return "/Plugins/OpenVR/Statuses/Success"
	}
	return "/Plugins/OpenVR/Statuses/" + s.Detail.String()
}

func (s Status) String() string {
	return fmt.Sprintf("%d (%s)", s.Code, s.Detail)
}

// DocsAnchor maps a status code to its section on the error-codes page.
func DocsAnchor(code int) int {
	switch code {
	case CodeDriverMissing:
		return 2
	case CodeDriverFailure:
		return 3
	default:
		return 6
	}
}

// DocsURI builds base/<lang>/error-codes/#<n>.
func DocsURI(base, lang string, code int) string {
	if lang == "" {
		lang = "en"
	}
	return fmt.Sprintf("%s/%s/error-codes/#%d", strings.TrimRight(base, "/"), lang, DocsAnchor(code))
}
