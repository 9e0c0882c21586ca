package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/spf13/cobra"
)

func addFileCommands(rootCmd *cobra.Command, opts *globalOptions) {
	var (
		chunks int
		dir    string
		name   string
		output string
	)

	uploadCmd := &cobra.Command{
		Use:   "upload <local-file>",
		Short: "Upload a file split into chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			fileName := name
			if fileName == "" {
				fileName = filepath.Base(args[0])
			}
			resp, err := opts.client().upload(fileName, dir, chunks, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\ndata_id: %s\n", resp.Message, resp.FileID)
			return nil
		},
	}
	uploadCmd.Flags().IntVarP(&chunks, "chunks", "n", 1, "number of chunks")
	uploadCmd.Flags().StringVarP(&dir, "dir", "d", "/", "destination directory")
	uploadCmd.Flags().StringVar(&name, "name", "", "file name in chunkfs (default: local base name)")
	rootCmd.AddCommand(uploadCmd)

	getCmd := &cobra.Command{
		Use:   "get <file-name>",
		Short: "Download and reassemble a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.client().postFormRaw("/get_file", url.Values{
				"file_name":      {args[0]},
				"directory_path": {dir},
			})
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(data), output)
			return nil
		},
	}
	getCmd.Flags().StringVarP(&dir, "dir", "d", "/", "directory of the file")
	getCmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: stdout)")
	rootCmd.AddCommand(getCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show every directory with files and chunk placements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Directories []models.DirectoryInfo `json:"directories"`
			}
			if err := opts.client().get("/get_info", nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp.Directories)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the state of every datanode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var status map[string]models.WorkerState
			if err := opts.client().get("/datanode_status", nil, &status); err != nil {
				return err
			}
			addrs := make([]string, 0, len(status))
			for addr := range status {
				addrs = append(addrs, addr)
			}
			sort.Strings(addrs)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "DATANODE\tSTATUS")
			for _, addr := range addrs {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", addr, status[addr])
			}
			return w.Flush()
		},
	})

	reReplicateCmd := &cobra.Command{
		Use:   "re-replicate <file-name>",
		Short: "Restore replicas of a file lost to inactive datanodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Message string                `json:"message"`
				Report  models.RecoveryReport `json:"report"`
			}
			if err := opts.client().postForm("/re_replicate", url.Values{
				"file_name":      {args[0]},
				"directory_path": {dir},
			}, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return printJSON(cmd.OutOrStdout(), resp.Report)
		},
	}
	reReplicateCmd.Flags().StringVarP(&dir, "dir", "d", "/", "directory of the file")
	rootCmd.AddCommand(reReplicateCmd)
}
