package eval

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

func usageError(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fault.New(msg, fmsg.WithDesc(msg, msg), ftag.With(ftag.InvalidArgument))
}

func wrapUsage(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fault.Wrap(err, fmsg.WithDesc(msg, msg), ftag.With(ftag.InvalidArgument))
}

// issue returns the user-facing description of err.
func issue(err error) string {
	if s := fmsg.GetIssue(err); s != "" {
		return s
	}
	return err.Error()
}
