package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lsShowHidden bool

var lsCmd = &cobra.Command{
	Use:   "ls <machine> <path>",
	Short: "List a directory on the machine's filesystem",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := newClient().ListFiles(cmd.Context(), args[0], args[1], lsShowHidden)
		cobra.CheckErr(err)
		for _, e := range entries {
			fmt.Printf("%s %-8s %-8s %8s %s %s\n", e.Permissions, e.User, e.Group, e.Size, e.LastModified, e.Name)
		}
	},
}

var mkdirParents bool

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <machine> <path>",
	Short: "Create a directory on the machine's filesystem",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cobra.CheckErr(newClient().Mkdir(cmd.Context(), args[0], args[1], mkdirParents))
	},
}

func init() {
	lsCmd.Flags().BoolVarP(&lsShowHidden, "all", "a", false, "include hidden files")
	mkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "create intermediate directories")
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mkdirCmd)
}
