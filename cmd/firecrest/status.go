package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the deployment's microservices and their status",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		services, err := newClient().AllServices(cmd.Context())
		cobra.CheckErr(err)
		for _, s := range services {
			fmt.Printf("%-16s %-12s %s\n", s.Service, s.Status, s.Description)
		}
	},
}

var systemsCmd = &cobra.Command{
	Use:   "systems",
	Short: "List the systems reachable through the deployment",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		systems, err := newClient().AllSystems(cmd.Context())
		cobra.CheckErr(err)
		for _, s := range systems {
			fmt.Printf("%-16s %-12s %s\n", s.System, s.Status, s.Description)
		}
	},
}

var taskCmd = &cobra.Command{
	Use:   "task <task-id>",
	Short: "Show the current snapshot of a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		task, err := newClient().Task(cmd.Context(), args[0])
		cobra.CheckErr(err)
		fmt.Printf("task %s: status %s (%s)\n", task.ID, task.Status, task.Description)
		if len(task.Data) > 0 {
			fmt.Println(string(task.Data))
		}
	},
}

func init() {
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(systemsCmd)
	rootCmd.AddCommand(taskCmd)
}
