// Command aslanfmt reads an ASLAN document from a file or stdin, parses
// it, and prints the resulting tree as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cast"

	"github.com/jayfoss/go-aslan/aslan"
)

func main() {
	input := flag.String("input", "", "path to an ASLAN document (defaults to stdin)")
	prefix := flag.String("prefix", "aslan", "delimiter prefix")
	defaultField := flag.String("default-field", "_default", "name of the implicit root field")
	strictStart := flag.String("strict-start", "false", "require [aslang] before content is recognized")
	strictEnd := flag.String("strict-end", "false", "require [aslans] to finalize a document")
	multiDoc := flag.String("multi", "false", "emit every Go/Stop-framed document as a JSON array")
	indent := flag.String("indent", "  ", "JSON indentation for output")
	flag.Parse()

	var source []byte
	var err error
	if *input == "" {
		source, err = io.ReadAll(os.Stdin)
	} else {
		source, err = os.ReadFile(*input)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(1)
	}

	opts := []aslan.Option{
		aslan.WithPrefix(*prefix),
		aslan.WithDefaultFieldName(*defaultField),
		aslan.WithStrictStart(cast.ToBool(*strictStart)),
		aslan.WithStrictEnd(cast.ToBool(*strictEnd)),
	}

	var out []byte
	if cast.ToBool(*multiDoc) {
		results, perr := aslan.ParseMulti(string(source), opts...)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "parse: %v\n", perr)
			os.Exit(1)
		}
		out, err = json.MarshalIndent(results, "", *indent)
	} else {
		result, perr := aslan.Parse(string(source), opts...)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "parse: %v\n", perr)
			os.Exit(1)
		}
		out, err = json.MarshalIndent(result, "", *indent)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal result: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(out))
}
