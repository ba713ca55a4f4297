package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <machine> <local-path> <remote-dir>",
	Short: "Upload a large file through the staging area and wait until it lands",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		cobra.CheckErr(newClient().UploadAndWait(cmd.Context(), args[0], args[1], args[2]))
		fmt.Println("upload complete")
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <machine> <remote-path> <local-path>",
	Short: "Download a large file through the staging area",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		cobra.CheckErr(newClient().DownloadAndWait(cmd.Context(), args[0], args[1], args[2]))
		fmt.Println("download complete")
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
}
