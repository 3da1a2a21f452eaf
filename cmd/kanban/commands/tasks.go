package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskmaster/kanban/internal/application/services"
	"github.com/taskmaster/kanban/internal/domain/entities"
	"github.com/taskmaster/kanban/internal/ports"
)

// NewTaskCommand creates the task management command
func NewTaskCommand() *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
		Long:  "Create, move, edit and delete tasks on the board",
	}

	taskCmd.AddCommand(
		newTaskAddCommand(),
		newTaskListCommand(),
		newTaskShowCommand(),
		newTaskMoveCommand(),
		newTaskEditCommand(),
		newTaskRemoveCommand(),
		newTaskDetachCommand(),
		newTaskDownloadCommand(),
	)
	return taskCmd
}

func newTaskAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new task",
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			description, _ := cmd.Flags().GetString("description")
			author, _ := cmd.Flags().GetString("author")
			priority, _ := cmd.Flags().GetString("priority")
			paths, _ := cmd.Flags().GetStringArray("file")

			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				p, err := entities.ParsePriority(priority)
				if err != nil {
					return err
				}
				files, err := stageFiles(ctx, paths)
				if err != nil {
					return err
				}

				task, err := rt.tasks.CreateTask(ctx, ports.CreateTaskRequest{
					Title:       title,
					Description: description,
					Author:      author,
					Priority:    p,
					Files:       files,
				})
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Task created: %s\n", task.ID)
				return nil
			})
		},
	}

	cmd.Flags().String("title", "", "Task title (required)")
	cmd.Flags().String("description", "", "Task description")
	cmd.Flags().String("author", "", "Task author (required)")
	cmd.Flags().String("priority", string(entities.PriorityMedium), "Priority (low, medium, high)")
	cmd.Flags().StringArray("file", nil, "Attach a file (repeatable)")
	return cmd
}

func newTaskListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := queryFromFlags(cmd)
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				printTasks(cmd.OutOrStdout(), services.FilterTasks(rt.tasks.ListTasks(ctx), q))
				return nil
			})
		},
	}
	addQueryFlags(cmd)
	return cmd
}

func newTaskShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task with its attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				task, err := rt.tasks.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				printTask(cmd.OutOrStdout(), task)
				return nil
			})
		},
	}
}

func newTaskMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a task to another column (new, ongoing, paused, finished)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := entities.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				task, err := rt.tasks.UpdateTaskStatus(ctx, args[0], status)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", task.ID, task.Status.Title())
				return nil
			})
		},
	}
}

func newTaskEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task; --file appends attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req ports.UpdateTaskRequest
			for _, name := range []string{"title", "description", "author"} {
				if cmd.Flags().Changed(name) {
					v, _ := cmd.Flags().GetString(name)
					switch name {
					case "title":
						req.Title = &v
					case "description":
						req.Description = &v
					case "author":
						req.Author = &v
					}
				}
			}
			if cmd.Flags().Changed("priority") {
				v, _ := cmd.Flags().GetString("priority")
				p, err := entities.ParsePriority(v)
				if err != nil {
					return err
				}
				req.Priority = &p
			}
			paths, _ := cmd.Flags().GetStringArray("file")

			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				files, err := stageFiles(ctx, paths)
				if err != nil {
					return err
				}
				req.Files = files

				task, err := rt.tasks.UpdateTask(ctx, args[0], req)
				if err != nil {
					return err
				}
				printTask(cmd.OutOrStdout(), task)
				return nil
			})
		},
	}

	cmd.Flags().String("title", "", "New title")
	cmd.Flags().String("description", "", "New description")
	cmd.Flags().String("author", "", "New author")
	cmd.Flags().String("priority", "", "New priority (low, medium, high)")
	cmd.Flags().StringArray("file", nil, "Attach a file (repeatable)")
	return cmd
}

func newTaskRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				if err := rt.tasks.DeleteTask(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task deleted: %s\n", args[0])
				return nil
			})
		},
	}
}

func newTaskDetachCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detach <id> <index>",
		Short: "Remove the attachment at index from a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				task, err := rt.tasks.RemoveAttachment(ctx, args[0], index)
				if err != nil {
					return err
				}
				printTask(cmd.OutOrStdout(), task)
				return nil
			})
		},
	}
}

func newTaskDownloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <id> <index>",
		Short: "Write an attachment's content to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("output")

			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				task, err := rt.tasks.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				if index < 0 || index >= len(task.Files) {
					return &entities.IndexError{Index: index, Len: len(task.Files)}
				}

				att := task.Files[index]
				_, content, err := services.DecodeDataURL(att.Data)
				if err != nil {
					return err
				}
				if out == "" {
					// stored records predating name validation may carry a path
					out = filepath.Base(att.Name)
				}
				if err := os.WriteFile(out, content, 0o644); err != nil {
					return fmt.Errorf("failed to write attachment: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", out, entities.FormatFileSize(int64(len(content))))
				return nil
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Output path (defaults to the attachment name)")
	return cmd
}

// NewBoardCommand prints the board columns
func NewBoardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the board grouped by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := queryFromFlags(cmd)
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				printBoard(cmd.OutOrStdout(), rt.tasks.Board(ctx, q))
				return nil
			})
		},
	}
	addQueryFlags(cmd)
	return cmd
}

// NewArchiveCommand creates the archive command with subcommands
func NewArchiveCommand() *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Archive old tasks and browse history",
	}

	archiveCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Move tasks created before the cutoff into the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				result, err := rt.archive.ArchiveOldTasks(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Archived %d task(s) created before %s\n",
					len(result.Archived), result.Cutoff.Format("2006-01-02"))
				return nil
			})
		},
	})

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List active and archived tasks by month",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := queryFromFlags(cmd)
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				view, err := rt.archive.ArchiveView(ctx, q)
				if err != nil {
					return err
				}
				printHistory(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
	addQueryFlags(listCmd)
	archiveCmd.AddCommand(listCmd)

	return archiveCmd
}

// NewAuthorsCommand lists authors, or one author's tasks by month
func NewAuthorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "authors [name]",
		Short: "List authors or show one author's tasks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			author := ""
			if len(args) == 1 {
				author = args[0]
			}
			return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				view, err := rt.archive.AuthorView(ctx, author)
				if err != nil {
					return err
				}
				if author == "" {
					for _, a := range view.Options.Authors {
						fmt.Fprintln(cmd.OutOrStdout(), a)
					}
					return nil
				}
				printHistory(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("search", "", "Case-insensitive text in title, description or author")
	cmd.Flags().String("month", "", `Creation month, "June 2026" or "2026-06"`)
	cmd.Flags().String("author", "", "Exact author name")
}

func queryFromFlags(cmd *cobra.Command) ports.TaskQuery {
	var q ports.TaskQuery
	q.Search, _ = cmd.Flags().GetString("search")
	q.Month, _ = cmd.Flags().GetString("month")
	q.Author, _ = cmd.Flags().GetString("author")
	if label, ok := services.MonthLabelForKey(q.Month); ok {
		q.Month = label
	}
	return q
}

func parseIndex(s string) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: attachment index must be a number, got %q", errUsage, s)
	}
	return index, nil
}

// stageFiles decodes local files as one attachment batch.
func stageFiles(ctx context.Context, paths []string) ([]entities.Attachment, error) {
	batch := services.NewBatch(ctx)
	for _, p := range paths {
		src, err := services.FileFromPath(p)
		if err != nil {
			return nil, err
		}
		batch.Add(src)
	}
	return batch.Wait(ctx)
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printTasks(w io.Writer, tasks []entities.Task) {
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tAUTHOR\tCREATED\tFILES\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			t.ID, t.Status, t.Priority, t.Author, t.CreatedAt.Format(time.DateOnly), len(t.Files), t.Title)
	}
	tw.Flush()
}

func printTask(w io.Writer, t *entities.Task) {
	fmt.Fprintln(w, t.Title)
	fmt.Fprintf(w, "  id:       %s\n", t.ID)
	fmt.Fprintf(w, "  status:   %s\n", t.Status.Title())
	fmt.Fprintf(w, "  priority: %s\n", t.Priority)
	fmt.Fprintf(w, "  author:   %s\n", t.Author)
	fmt.Fprintf(w, "  created:  %s\n", t.CreatedAt.Format(time.RFC3339))
	if t.Description != "" {
		fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(t.Description, "\n", "\n  "))
	}
	for i, f := range t.Files {
		fmt.Fprintf(w, "  [%d] %s (%s, %s)\n", i, f.Name, f.MimeType, f.HumanSize())
	}
}

func printBoard(w io.Writer, board ports.BoardView) {
	for _, col := range board.Columns {
		fmt.Fprintf(w, "%s (%d)\n", col.Title, col.Count)
		if col.Empty != nil {
			fmt.Fprintf(w, "    %s\n\n", col.Empty.Title)
			continue
		}
		tw := newTabWriter(w)
		for _, t := range col.Tasks {
			fmt.Fprintf(tw, "    %s\t%s\t%s\t%s\n", t.ID, t.Priority, t.Author, t.Title)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}
}

func printHistory(w io.Writer, view *ports.HistoryView) {
	if view.Total == 0 {
		fmt.Fprintln(w, "No tasks found")
		return
	}
	for _, g := range view.Groups {
		fmt.Fprintf(w, "%s (%d)\n", g.Label, len(g.Tasks))
		tw := newTabWriter(w)
		for _, t := range g.Tasks {
			fmt.Fprintf(tw, "    %s\t%s\t%s\t%s\n", t.ID, t.Status, t.Author, t.Title)
		}
		tw.Flush()
	}
}
