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
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/sigkern/pkg/sentry/kernel"
)

// Syscalls implements subcommands.Command for the "syscalls" command.
type Syscalls struct {
	output string
	os     string
	arch   string
}

// CompatibilityInfo maps OS name to architecture name to the syscalls of
// that table.
type CompatibilityInfo map[string]map[string]ArchInfo

// ArchInfo is compatibility doc for an architecture.
type ArchInfo struct {
	// Syscalls maps syscall number for the architecture to the doc.
	Syscalls map[uintptr]SyscallDoc `json:"syscalls"`
}

// SyscallDoc represents a single item of syscall documentation.
type SyscallDoc struct {
	Name string `json:"name"`
	num  uintptr

	Support string   `json:"support"`
	Note    string   `json:"note,omitempty"`
	URLs    []string `json:"urls,omitempty"`
}

// sorted returns the syscalls of a in number order.
func (a ArchInfo) sorted() []SyscallDoc {
	docs := make([]SyscallDoc, 0, len(a.Syscalls))
	for _, sc := range a.Syscalls {
		docs = append(docs, sc)
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].num < docs[j].num
	})
	return docs
}

type outputFunc func(io.Writer, CompatibilityInfo) error

// all selects every OS or architecture.
const all = "all"

// A map of output type names to output functions.
var outputMap = map[string]outputFunc{
	"table": outputTable,
	"json":  outputJSON,
	"csv":   outputCSV,
}

// Name implements subcommands.Command.Name.
func (*Syscalls) Name() string {
	return "syscalls"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Syscalls) Synopsis() string {
	return "Print compatibility information for syscalls."
}

// Usage implements subcommands.Command.Usage.
func (*Syscalls) Usage() string {
	return `syscalls [options] - Print compatibility information for syscalls.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Syscalls) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.output, "o", "table", "Output format (table, csv, json).")
	f.StringVar(&s.os, "os", all, "The OS (e.g. linux)")
	f.StringVar(&s.arch, "arch", all, "The CPU architecture (e.g. riscv64).")
}

// Execute implements subcommands.Command.Execute.
func (s *Syscalls) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	out, ok := outputMap[s.output]
	if !ok {
		Fatalf("Unsupported output format %q", s.output)
	}

	info, err := compatibilityInfo(kernel.SyscallTables(), s.os, s.arch)
	if err != nil {
		Fatalf("%v", err)
	}
	if err := out(os.Stdout, info); err != nil {
		Fatalf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// compatibilityInfo returns compatibility info for the tables matching the
// given OS and architecture names, either of which may be "all".
func compatibilityInfo(tables []*kernel.SyscallTable, osName, archName string) (CompatibilityInfo, error) {
	info := make(CompatibilityInfo)
	for _, t := range tables {
		o, a := t.OS.String(), t.Arch.String()
		if (osName != all && osName != o) || (archName != all && archName != a) {
			continue
		}
		if info[o] == nil {
			info[o] = make(map[string]ArchInfo)
		}
		info[o][a] = archInfo(t)
	}
	if len(info) == 0 {
		return nil, fmt.Errorf("syscall table for %s/%s not found", osName, archName)
	}
	return info, nil
}

// archInfo returns compatibility info for a single table.
func archInfo(t *kernel.SyscallTable) ArchInfo {
	info := ArchInfo{Syscalls: make(map[uintptr]SyscallDoc, len(t.Table))}
	for num, sc := range t.Table {
		info.Syscalls[num] = SyscallDoc{
			Name:    sc.Name,
			num:     num,
			Support: sc.SupportLevel.String(),
			Note:    sc.Note,
			URLs:    sc.URLs,
		}
	}
	return info
}

// forEachArch calls f for each table in info, in name order.
func forEachArch(info CompatibilityInfo, f func(osName, archName string, a ArchInfo) error) error {
	osNames := make([]string, 0, len(info))
	for o := range info {
		osNames = append(osNames, o)
	}
	sort.Strings(osNames)
	for _, o := range osNames {
		archNames := make([]string, 0, len(info[o]))
		for a := range info[o] {
			archNames = append(archNames, a)
		}
		sort.Strings(archNames)
		for _, a := range archNames {
			if err := f(o, a, info[o][a]); err != nil {
				return err
			}
		}
	}
	return nil
}

// outputTable outputs the syscall info in tabular format.
func outputTable(w io.Writer, info CompatibilityInfo) error {
	return forEachArch(info, func(osName, archName string, a ArchInfo) error {
		fmt.Fprintf(w, "%s/%s:\n\n", osName, archName)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintf(tw, "NUM\tNAME\tSUPPORT\tNOTE\n"); err != nil {
			return err
		}
		for _, sc := range a.sorted() {
			if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", sc.num, sc.Name, sc.Support, sc.Note); err != nil {
				return err
			}
			// Add issue urls to note.
			for _, url := range sc.URLs {
				if _, err := fmt.Fprintf(tw, "\t\t\tSee: %s\t\n", url); err != nil {
					return err
				}
			}
		}
		return tw.Flush()
	})
}

// outputJSON outputs the syscall info in JSON format.
func outputJSON(w io.Writer, info CompatibilityInfo) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(info)
}

// outputCSV outputs the syscall info in CSV format.
func outputCSV(w io.Writer, info CompatibilityInfo) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write([]string{"OS", "Arch", "Num", "Name", "Support", "Note"}); err != nil {
		return err
	}
	err := forEachArch(info, func(osName, archName string, a ArchInfo) error {
		for _, sc := range a.sorted() {
			note := sc.Note
			for _, url := range sc.URLs {
				note = fmt.Sprintf("%s\nSee: %s", note, url)
			}
			row := []string{osName, archName, strconv.FormatUint(uint64(sc.num), 10), sc.Name, sc.Support, note}
			if err := csvWriter.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
