package main

import (
	"io"
	"text/tabwriter"

	"github.com/docker/go-units"
)

func newTabwriter(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
}

func makeExample(examples ...string) string {
	var buf string
	for _, example := range examples {
		buf += "  " + example + "\n"
	}
	return buf
}

// humanSize formats a byte count in binary units, e.g. 2.098KiB.
func humanSize(n int64) string {
	return units.BytesSize(float64(n))
}
