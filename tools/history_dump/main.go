// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

// history_dump prints a history export written by
// "ddrip-deploy history export" as tab separated lines.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/digital-drip/ddrip-deploy/core/db"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: history_dump <export-file>")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	exp, err := db.ReadExport(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "# schema %d, exported %s, %d runs\n", exp.SchemaVersion, exp.ExportedAt.Format(time.RFC3339), len(exp.Runs))
	for _, r := range exp.Runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Stage, r.Task, r.Host, r.Status, r.Command)
	}
	return nil
}
