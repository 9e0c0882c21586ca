package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/soltixdb/chunkfs/internal/models"
	"github.com/spf13/cobra"
)

func addNamespaceCommands(rootCmd *cobra.Command, opts *globalOptions) {
	var dir string

	rootCmd.AddCommand(&cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory and its missing parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.message(cmd, "/create_directory", url.Values{"directory_path": {args[0]}})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:     "ls [path]",
		Aliases: []string{"list"},
		Short:   "List the files and folders of a directory",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := models.RootPath
			if len(args) == 1 {
				p = args[0]
			}
			var list models.ListDirectoryResponse
			if err := opts.client().get("/list_directory", url.Values{"directory_path": {p}}, &list); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, f := range list.Folders {
				fmt.Fprintf(out, "%s/\n", f)
			}
			for _, f := range list.Files {
				fmt.Fprintln(out, f)
			}
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "tree",
		Short: "Print every directory with its entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Directories []models.Directory `json:"directories"`
			}
			if err := opts.client().get("/get_directory", nil, &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range resp.Directories {
				fmt.Fprintln(out, d.Path)
				for _, e := range d.Content {
					suffix := ""
					if e.Kind == models.EntryFolder {
						suffix = "/"
					}
					fmt.Fprintf(out, "  %s%s\n", e.Name, suffix)
				}
			}
			return nil
		},
	})

	transfer := func(use, short, path, nameKey string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <name> <from> <to>",
			Short: short,
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.message(cmd, path, url.Values{
					nameKey:            {args[0]},
					"original_path":    {args[1]},
					"destination_path": {args[2]},
				})
			},
		}
	}
	rootCmd.AddCommand(
		transfer("mv", "Move a file to another directory", "/move_file", "file_name"),
		transfer("cp", "Copy a file to another directory", "/copy_file", "file_name"),
		transfer("mvdir", "Move a folder with its subtree", "/move_folder", "folder_name"),
		transfer("cpdir", "Copy a folder with its subtree", "/copy_folder", "folder_name"),
	)

	rmCmd := &cobra.Command{
		Use:   "rm <file-name>",
		Short: "Delete a file and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.message(cmd, "/delete_file", url.Values{"file_name": {args[0]}, "directory_path": {dir}})
		},
	}
	rmCmd.Flags().StringVarP(&dir, "dir", "d", "/", "directory of the file")

	rmdirCmd := &cobra.Command{
		Use:   "rmdir <folder-name>",
		Short: "Delete a folder recursively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.message(cmd, "/delete_folder", url.Values{"folder_name": {args[0]}, "directory_path": {dir}})
		},
	}
	rmdirCmd.Flags().StringVarP(&dir, "dir", "d", "/", "parent directory of the folder")
	rootCmd.AddCommand(rmCmd, rmdirCmd)
}

// message posts a form and prints the message of the answer
func (o *globalOptions) message(cmd *cobra.Command, path string, values url.Values) error {
	var resp struct {
		Message string `json:"message"`
		FileID  string `json:"data_id"`
	}
	if err := o.client().postForm(path, values, &resp); err != nil {
		return err
	}
	out := strings.TrimSpace(resp.Message)
	if resp.FileID != "" {
		out += "\ndata_id: " + resp.FileID
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
