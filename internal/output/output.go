package output

import (
	"encoding/json"
	"fmt"
	"os"
)

// JSONMode is set from the root --json flag before any command runs.
var JSONMode bool

// envelope wraps every JSON-mode response so callers can branch on ok.
type envelope struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Print renders data as JSON when JSONMode is set, otherwise runs textFn.
func Print(data interface{}, textFn func()) {
	if !JSONMode {
		textFn()
		return
	}
	out, err := json.MarshalIndent(envelope{OK: true, Data: data}, "", "  ")
	if err != nil {
		PrintError(err)
		return
	}
	fmt.Println(string(out))
}

// PrintError reports err on the active output mode and exits non-zero.
func PrintError(err error) {
	if JSONMode {
		out, _ := json.MarshalIndent(envelope{Error: err.Error()}, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
