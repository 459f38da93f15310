package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pellucidb/pellucid/internal/serr"
)

// FormatError formats an error for CLI display in Cargo/rustc style.
// If the error is a *serr.Error, it extracts the code, context map, and
// cause chain. Otherwise it formats as a generic error.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var perr *serr.Error
	if errors.As(err, &perr) {
		return formatPellucidError(perr)
	}

	return formatGenericError(err)
}

// formatPellucidError formats a *serr.Error in Cargo style:
//
//	error[E2001]: cannot delete type 'default::User'
//	  --> schema/users.yaml:12:3
//	   |
//	   | object: type 'default::User'
//	note: referenced by link 'author' of type 'default::Post'
func formatPellucidError(err *serr.Error) string {
	var b strings.Builder

	code := string(err.GetCode())
	ctx := err.GetContext()

	// First line: error[E1001]: message
	b.WriteString(Error("error"))
	b.WriteString("[")
	b.WriteString(Code(code))
	b.WriteString("]: ")
	b.WriteString(err.GetMessage())
	b.WriteString("\n")

	// File location if available (DDL parse errors attach it)
	if loc, ok := ctx["location"].(string); ok && loc != "" {
		b.WriteString("  ")
		b.WriteString(stylePipe.Render("-->"))
		b.WriteString(" ")
		b.WriteString(FilePath(loc))
		b.WriteString("\n")
	}

	// Remaining context details, sorted for stable output.
	excludeKeys := map[string]bool{
		"location": true,
		"detail":   true,
	}

	var keys []string
	for k := range ctx {
		if !excludeKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if len(keys) > 0 {
		b.WriteString("   ")
		b.WriteString(Pipe())
		b.WriteString("\n")
		for _, k := range keys {
			b.WriteString("   ")
			b.WriteString(Pipe())
			b.WriteString(" ")
			b.WriteString(fmt.Sprintf("%s: %v", Dim(k), ctx[k]))
			b.WriteString("\n")
		}
	}

	// The detail line enumerates blocking referrers or dependent
	// expressions; render each entry as its own note.
	if detail := err.Details(); detail != "" {
		for _, line := range strings.Split(detail, "\n") {
			b.WriteString(Note("note"))
			b.WriteString(": ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if cause := errors.Unwrap(err); cause != nil {
		b.WriteString(Note("cause"))
		b.WriteString(": ")
		b.WriteString(cause.Error())
		b.WriteString("\n")
	}

	return b.String()
}

// formatGenericError formats a non-serr error.
func formatGenericError(err error) string {
	var b strings.Builder
	b.WriteString(Error("error"))
	b.WriteString(": ")
	b.WriteString(err.Error())
	b.WriteString("\n")
	return b.String()
}

// FormatWarning formats a warning message in Cargo style.
func FormatWarning(msg string) string {
	var b strings.Builder
	b.WriteString(Warning("warning"))
	b.WriteString(": ")
	b.WriteString(msg)
	b.WriteString("\n")
	return b.String()
}

// FormatNote formats a note message.
func FormatNote(msg string) string {
	var b strings.Builder
	b.WriteString(Note("note"))
	b.WriteString(": ")
	b.WriteString(msg)
	b.WriteString("\n")
	return b.String()
}

// FormatHelp formats a help message.
func FormatHelp(msg string) string {
	var b strings.Builder
	b.WriteString(Help("help"))
	b.WriteString(": ")
	b.WriteString(msg)
	b.WriteString("\n")
	return b.String()
}

// FormatSuccess formats a success message.
func FormatSuccess(msg string) string {
	var b strings.Builder
	b.WriteString(Success("success"))
	b.WriteString(": ")
	b.WriteString(msg)
	b.WriteString("\n")
	return b.String()
}
