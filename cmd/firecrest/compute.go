package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firecrest-hpc/firecrest_sdk_go/pkg/firecrest"
)

var submitAccount string

var submitCmd = &cobra.Command{
	Use:   "submit <machine> <script>",
	Short: "Submit a batch script from the local filesystem and wait for the scheduler's answer",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		job, err := newClient().Submit(cmd.Context(), args[0], firecrest.SubmitOptions{
			ScriptLocalPath: args[1],
			Account:         submitAccount,
		})
		cobra.CheckErr(err)
		fmt.Printf("submitted job %d (%s)\n", job.JobID, job.Result)
	},
}

var pollCmd = &cobra.Command{
	Use:   "poll <machine> [job-id...]",
	Short: "Show active jobs in the machine's queue",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobs, err := newClient().PollActive(cmd.Context(), args[0], args[1:])
		cobra.CheckErr(err)
		for _, j := range jobs {
			fmt.Printf("%-10s %-10s %-20s %s\n", j.JobID, j.State, j.Name, j.NodeList)
		}
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <machine> <job-id>",
	Short: "Cancel a running job",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cobra.CheckErr(newClient().Cancel(cmd.Context(), args[0], args[1]))
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitAccount, "account", "", "charge the job to this project account")
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(cancelCmd)
}
