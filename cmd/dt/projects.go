package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/datatops/datatops/internal/keygen"
	"github.com/datatops/datatops/internal/registry"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Inspect and manage projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects with record counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := st.ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCREATED\tRECORDS")
		for _, p := range projects {
			records, err := st.ListRecords(cmd.Context(), p.Name, 0)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%d\n", p.Name, p.CreatedAt.Format("2006-01-02 15:04"), len(records))
		}
		return w.Flush()
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project and print its credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Direct backend access is already privileged; the HTTP creation
		// secret does not apply here.
		reg := registry.New(st, keygen.Generator{}, "")
		p, err := reg.Create(cmd.Context(), args[0], "")
		if err != nil {
			return err
		}

		fmt.Printf("Project %q created.\n\n", p.Name)
		fmt.Printf("  user key:  %s\n", p.UserKey)
		fmt.Printf("  admin key: %s\n", p.AdminKey)
		fmt.Println("\nStore these now. The admin key is never shown again.")
		return nil
	},
}

func init() {
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
}
