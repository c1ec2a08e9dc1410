package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// output writes data as indented JSON or as the given text lines.
func output(w io.Writer, opts *RootOptions, data any, lines ...string) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
