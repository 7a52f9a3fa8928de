package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/roster"
)

func (cli *commandLine) importRoster(path, batchName, role string) error {
	data, err := readFileFunc(path)
	if err != nil {
		return errors.Wrap(err, "reading roster")
	}
	text, err := roster.DecodeUpload(data)
	if err != nil {
		return errors.Wrap(err, "decoding roster")
	}

	rep, err := cli.reconciler.Reconcile(context.Background(), roster.BatchInput{
		FileText:  text,
		FileName:  filepath.Base(path),
		BatchName: batchName,
		Role:      normalizeRole(role),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cli.out, rep.Message)
	for _, usr := range rep.Created {
		fmt.Fprintf(cli.out, "  created: %s <%s>\n", usr.Name, usr.Email)
	}
	for _, out := range rep.AlreadyExists {
		fmt.Fprintf(cli.out, "  line %d: %s: %s\n", out.Line, out.Email, out.Message)
	}
	for _, out := range rep.Rejected {
		fmt.Fprintf(cli.out, "  line %d: %s: %s\n", out.Line, out.Email, out.Message)
	}
	for _, out := range rep.Failed {
		fmt.Fprintf(cli.out, "  line %d: %s: %s\n", out.Line, out.Email, out.Message)
	}
	return nil
}
