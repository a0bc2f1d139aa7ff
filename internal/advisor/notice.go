package advisor

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/spigell/jobfit/internal/ai"
	"github.com/spigell/jobfit/internal/extract"
	"github.com/spigell/jobfit/internal/gate"
	"github.com/spigell/jobfit/internal/joblisting"
	"github.com/spigell/jobfit/internal/session"
)

const (
	msgTimeout = "The request took too long and timed out. Please try again later."
	msgNetwork = "Network issue detected. Please check your connection."
	msgGeneric = "Something went wrong while processing your request."
)

// Describe turns an error returned by the advisor into the one-line notice
// shown to the user. A nil error yields a success notice.
func Describe(err error) session.Notice {
	if err == nil {
		return session.Notice{Level: session.LevelSuccess, Text: "Done!"}
	}

	var (
		parseErr *extract.ParseError
		fetchErr *joblisting.Error
		aiErr    *ai.Error
	)

	switch {
	case errors.Is(err, gate.ErrRejected):
		return warning("The advisor is already processing a request. Please wait until it finishes.")
	case errors.Is(err, ErrEmptyInput):
		return warning("Please type something first.")
	case errors.Is(err, ErrMissingCV):
		return warning("Please upload your CV first.")
	case errors.Is(err, ErrMissingJob):
		return warning("Please load a job description first.")
	case errors.Is(err, ErrUploadTooLarge):
		return failure("The file is too large to process.")
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return failure("Unsupported file type. Please upload one of: " + supportedFormats() + ".")
	case errors.As(err, &parseErr):
		return failure(fmt.Sprintf("Could not read the CV as %s. Is the file damaged?", strings.ToUpper(string(parseErr.Format))))
	case errors.As(err, &fetchErr):
		switch fetchErr.Kind {
		case joblisting.KindTimeout:
			return failure(msgTimeout)
		case joblisting.KindInvalidURL:
			return failure("That does not look like a valid http(s) link.")
		default:
			return failure(msgNetwork)
		}
	case errors.As(err, &aiErr):
		if aiErr.Timeout() {
			return failure(msgTimeout)
		}
		var netErr net.Error
		if errors.As(aiErr, &netErr) {
			return failure(msgNetwork)
		}
		return failure(msgGeneric)
	default:
		return failure(msgGeneric)
	}
}

func warning(text string) session.Notice {
	return session.Notice{Level: session.LevelWarning, Text: text}
}

func failure(text string) session.Notice {
	return session.Notice{Level: session.LevelError, Text: text}
}

func supportedFormats() string {
	formats := extract.Formats()
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, strings.ToUpper(string(f)))
	}
	return strings.Join(names, ", ")
}
