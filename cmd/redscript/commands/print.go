package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/unkn0wn-root/redscript"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
	userColor = color.New(color.FgYellow, color.Bold)
)

func printError(w io.Writer, err error) {
	var ue *redscript.UserError
	var pe *redscript.PrimeError
	switch {
	case errors.As(err, &ue):
		userColor.Fprint(w, "script error: ")
		fmt.Fprintln(w, ue.Err)
	case errors.As(err, &pe):
		errColor.Fprintf(w, "prime failed on %d instance(s)\n", len(pe.Failures))
		for _, f := range pe.Failures {
			fmt.Fprintf(w, "  - %v\n", f)
		}
	default:
		errColor.Fprint(w, "error: ")
		fmt.Fprintln(w, err)
	}
}

// formatReply renders a script reply the way redis-cli does, roughly.
func formatReply(w io.Writer, v any, indent string) {
	switch r := v.(type) {
	case nil:
		fmt.Fprintln(w, indent+"(nil)")
	case int64:
		fmt.Fprintf(w, "%s(integer) %d\n", indent, r)
	case string:
		fmt.Fprintf(w, "%s%q\n", indent, r)
	case []interface{}:
		if len(r) == 0 {
			fmt.Fprintln(w, indent+"(empty array)")
			return
		}
		for i, item := range r {
			fmt.Fprintf(w, "%s%d)\n", indent, i+1)
			formatReply(w, item, indent+"   ")
		}
	default:
		fmt.Fprintf(w, "%s%v\n", indent, r)
	}
}
