// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/sigkern/pkg/abi/linux"
)

// Signals implements subcommands.Command for the "signals" command.
type Signals struct {
	output string
}

// SignalDoc describes one signal.
type SignalDoc struct {
	Number  int    `json:"number"`
	Name    string `json:"name"`
	Default string `json:"default"`
}

// Name implements subcommands.Command.Name.
func (*Signals) Name() string {
	return "signals"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Signals) Synopsis() string {
	return "Print signal names and default actions."
}

// Usage implements subcommands.Command.Usage.
func (*Signals) Usage() string {
	return `signals [options] - Print signal names and default actions.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Signals) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.output, "o", "table", "Output format (table, json).")
}

// Execute implements subcommands.Command.Execute.
func (s *Signals) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	var err error
	switch s.output {
	case "table":
		err = writeSignalTable(os.Stdout, signalDocs())
	case "json":
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "  ")
		err = e.Encode(signalDocs())
	default:
		Fatalf("Unsupported output format %q", s.output)
	}
	if err != nil {
		Fatalf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

func signalDocs() []SignalDoc {
	docs := make([]SignalDoc, 0, linux.SignalMaximum)
	for sig := linux.Signal(1); sig <= linux.SignalMaximum; sig++ {
		docs = append(docs, SignalDoc{
			Number:  int(sig),
			Name:    sig.String(),
			Default: linux.DefaultAction(sig).String(),
		})
	}
	return docs
}

func writeSignalTable(w io.Writer, docs []SignalDoc) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NUM\tNAME\tDEFAULT\n")
	for _, d := range docs {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", d.Number, d.Name, d.Default)
	}
	return tw.Flush()
}
