/*
Package cmd provides CLI functionality shared by the quotakv binaries.
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", color.HiRedString("Error:"), err.Error())
}
