package cmd

import (
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
)

// terminal accents shared by the CLI commands
var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()

	greenCheck = color.GreenString("✓")
	redCross   = color.RedString("✗")
)

// BeQuietError signals that the failure was already reported to the user;
// Execute must not log it again.
type BeQuietError struct{}

func (BeQuietError) Error() string {
	return "an error occurred"
}

// logError reports a command failure (with its correlation id when the
// server sent one) and returns a BeQuietError for the cobra chain.
func logError(err error, correlationID, msg string) error {
	if correlationID != "" {
		log.Error().Msgf("%s %s (correlation ID: %s)", redCross, msg, correlationID)
	} else {
		log.Error().Msgf("%s %s", redCross, msg)
	}
	log.Error().Msgf("error: %v", err)
	return BeQuietError{}
}

func logSuccess(format string, args ...any) {
	log.Info().Msgf(greenCheck+" "+format, args...)
}

func applyTableFormat(t table.Writer) {
	s := table.StyleRounded
	s.Format.Header = text.FormatDefault
	t.SetStyle(s)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
