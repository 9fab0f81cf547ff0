package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keyxmakerx/turnclock/internal/backup"
	"github.com/keyxmakerx/turnclock/internal/plugins/calendar"
)

func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the calendar as a native JSON export",
		Long:  "Write the calendar as a native JSON export. Paths ending in .zst are zstd-compressed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, name, closeFn, err := engine()
			if err != nil {
				return err
			}
			defer closeFn()

			exp, err := svc.Export(cmd.Context(), name)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(exp, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding export: %w", err)
			}
			if output == "" || output == "-" {
				_, err = out.Write(append(data, '\n'))
				return err
			}
			if err := backup.Write(output, data); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "wrote %s (%d events)\n", output, len(exp.Events))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	var preview bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the calendar from a native or Simple Calendar export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := backup.Read(args[0])
			if err != nil {
				return err
			}
			exp, format, err := calendar.DetectAndParse(data)
			if err != nil {
				return err
			}
			if preview {
				return printJSON(exp)
			}

			svc, name, closeFn, err := engine()
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.Import(cmd.Context(), name, exp)
			if err != nil {
				return err
			}
			res.Format = format
			if jsonOutput {
				return printJSON(res)
			}
			fmt.Fprintf(out, "imported %s calendar %q into %s: %d events\n",
				format, res.CalendarName, name, res.EventCount)
			for _, issue := range res.Issues {
				fmt.Fprintf(out, "  line %d skipped: %s (%s)\n", issue.Line, issue.Text, issue.Reason)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&preview, "preview", false, "Print the converted export without saving it")
	return cmd
}
