package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TWRT/taskboard/internal/config"
	"github.com/TWRT/taskboard/internal/models"
	"github.com/TWRT/taskboard/internal/repository"
	"github.com/TWRT/taskboard/internal/service"
	"github.com/TWRT/taskboard/internal/ui"
)

var (
	flagConfig string
	flagDB     string
	flagDriver string
	flagJSON   bool
)

func main() {
	ui.ConfigureColor(os.Stdout)

	rootCmd := &cobra.Command{
		Use:   "taskadmin",
		Short: "Edit the task board's SQLite store directly",
		Long: `taskadmin changes task rows without going through the board's lifecycle
rules. It is meant for setup and corrections; a running board picks the
changes up on its next poll.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ./taskboard.yaml or ~/.taskboard/taskboard.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDriver, "driver", "", "SQLite driver: sqlite (pure Go) or sqlite3 (cgo)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")

	rootCmd.AddCommand(addTaskCmd())
	rootCmd.AddCommand(updateTaskCmd())
	rootCmd.AddCommand(setDepsCmd())
	rootCmd.AddCommand(reassignCmd())
	rootCmd.AddCommand(setPriorityCmd())
	rootCmd.AddCommand(setStatusCmd())
	rootCmd.AddCommand(deleteTaskCmd())
	rootCmd.AddCommand(listProjectsCmd())
	rootCmd.AddCommand(listMilestonesCmd())
	rootCmd.AddCommand(listTasksCmd())
	rootCmd.AddCommand(showTaskCmd())
	rootCmd.AddCommand(importCSVCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.BoldRed("Error:"), err)
		os.Exit(1)
	}
}

// withAdmin opens the store, runs fn and closes the store again.
func withAdmin(fn func(ctx context.Context, admin *service.AdminService) error) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	dbPath, driver := cfg.DBPath, cfg.DBDriver
	if flagDB != "" {
		dbPath = flagDB
	}
	if flagDriver != "" {
		driver = flagDriver
	}

	db, err := repository.InitDB(driver, dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	return fn(context.Background(), service.NewAdminService(repository.NewTaskRepository(db), nil))
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTask(task *models.Task, verb string) error {
	if flagJSON {
		return printJSON(task)
	}
	fmt.Printf("%s %s %s\n", ui.Green("✓"), verb, ui.BoldMagenta(task.TaskID))
	return nil
}

func addTaskCmd() *cobra.Command {
	var in service.TaskInput
	cmd := &cobra.Command{
		Use:   "add-task",
		Short: "Create a task (a blank --id generates one)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				task, err := admin.AddTask(ctx, in)
				if err != nil {
					return err
				}
				return printTask(task, "Created")
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.TaskID, "id", "", "Task ID")
	f.StringVar(&in.Project, "project", "", "Project")
	f.StringVar(&in.Milestone, "milestone", "", "Milestone")
	f.StringVar(&in.Title, "task", "", "Task title")
	f.StringVar(&in.Owner, "owner", "", "Owner")
	f.StringVar(&in.DependsOn, "depends-on", "", "Dependencies, separated by |")
	f.StringVar(&in.EstimatedHours, "hours", "", "Estimated hours")
	f.StringVar(&in.Priority, "priority", "Medium", "High, Medium or Low")
	f.StringVar(&in.StartDate, "start", "", "Start date (YYYY-MM-DD)")
	f.StringVar(&in.DueDate, "due", "", "Due date (YYYY-MM-DD)")
	f.StringVar(&in.Status, "status", "", "Initial status (default Pending)")
	return cmd
}

func updateTaskCmd() *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "update-task TASK_ID --set FIELD=VALUE [--set ...]",
		Short: "Set one or more fields of a task",
		Long:  "Editable fields: " + strings.Join(service.EditableFields, ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			assignments := make(map[string]string, len(sets))
			for _, s := range sets {
				field, value, ok := strings.Cut(s, "=")
				if !ok {
					return fmt.Errorf("--set %q: expected FIELD=VALUE", s)
				}
				assignments[strings.TrimSpace(field)] = value
			}
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				task, err := admin.UpdateTask(ctx, args[0], assignments)
				if err != nil {
					return err
				}
				return printTask(task, "Updated")
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "FIELD=VALUE assignment (repeatable)")
	return cmd
}

func setDepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-deps TASK_ID [DEP_ID ...]",
		Short: "Replace a task's dependency list (no IDs clears it)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				task, err := admin.SetDeps(ctx, args[0], args[1:])
				if err != nil {
					return err
				}
				return printTask(task, "Dependencies set for")
			})
		},
	}
}

func singleValueCmd(use, short, verb string, apply func(*service.AdminService) func(context.Context, string, string) (*models.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				task, err := apply(admin)(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printTask(task, verb)
			})
		},
	}
}

func reassignCmd() *cobra.Command {
	return singleValueCmd("reassign TASK_ID OWNER", "Move a task to another owner", "Reassigned",
		func(a *service.AdminService) func(context.Context, string, string) (*models.Task, error) { return a.Reassign })
}

func setPriorityCmd() *cobra.Command {
	return singleValueCmd("set-priority TASK_ID High|Medium|Low", "Change a task's priority", "Priority set for",
		func(a *service.AdminService) func(context.Context, string, string) (*models.Task, error) { return a.SetPriority })
}

func setStatusCmd() *cobra.Command {
	return singleValueCmd("set-status TASK_ID STATUS", "Force a status, skipping lifecycle guards", "Status set for",
		func(a *service.AdminService) func(context.Context, string, string) (*models.Task, error) { return a.SetStatus })
}

func deleteTaskCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete-task TASK_ID",
		Short: "Delete a task row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				if err := admin.DeleteTask(ctx, args[0], force); err != nil {
					return err
				}
				fmt.Printf("%s Deleted %s\n", ui.Green("✓"), ui.BoldMagenta(args[0]))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Delete even if other tasks depend on it")
	return cmd
}

func listProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-projects",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				projects, err := admin.ListProjects(ctx)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(projects)
				}
				for _, p := range projects {
					fmt.Println(p)
				}
				return nil
			})
		},
	}
}

func listMilestonesCmd() *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "list-milestones",
		Short: "List milestones, optionally for one project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				refs, err := admin.ListMilestones(ctx, project)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(refs)
				}
				for _, r := range refs {
					fmt.Printf("%s %s %s\n", r.Project, ui.Dim("/"), r.Milestone)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Only this project")
	return cmd
}

func listTasksCmd() *cobra.Command {
	var filter repository.ListFilter
	var status string
	cmd := &cobra.Command{
		Use:   "list-tasks",
		Short: "List tasks with optional filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = models.Status(status)
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				tasks, err := admin.ListTasks(ctx, filter)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(tasks)
				}
				now := time.Now()
				for _, t := range tasks {
					fmt.Println(ui.TaskLine(t, now))
				}
				fmt.Printf("%s\n", ui.Dim(fmt.Sprintf("%d task(s)", len(tasks))))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.Project, "project", "", "Filter by project")
	f.StringVar(&filter.Milestone, "milestone", "", "Filter by milestone")
	f.StringVar(&filter.Owner, "owner", "", "Filter by owner")
	f.StringVar(&status, "status", "", "Filter by status")
	return cmd
}

func showTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-task TASK_ID",
		Short: "Show one task with its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				task, err := admin.ShowTask(ctx, args[0])
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(task)
				}
				ui.PrintTask(os.Stdout, task, time.Now())
				return nil
			})
		},
	}
}

func importCSVCmd() *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import-csv FILE",
		Short: "Bulk-load tasks from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				n, err := admin.ImportCSV(ctx, f, args[0], replace)
				if err != nil {
					return err
				}
				mode := "merged"
				if replace {
					mode = "replaced existing tasks"
				}
				fmt.Printf("%s Imported %s tasks (%s)\n", ui.Green("✓"), ui.Bold(n), mode)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Delete all existing tasks first")
	return cmd
}

func exportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every task as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				return admin.Export(ctx, w, format)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json or yaml")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that every dependency exists and the graph has no cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(func(ctx context.Context, admin *service.AdminService) error {
				report, err := admin.Validate(ctx)
				if err != nil {
					return err
				}
				if flagJSON {
					return printJSON(report)
				}
				fmt.Printf("%s %s tasks resolve cleanly\n", ui.Green("✓"), ui.Bold(report.Tasks))
				return nil
			})
		},
	}
}
