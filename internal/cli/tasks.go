package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/reelclient"
)

func (a *app) tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "Submit and inspect processing tasks",
	}
	cmd.AddCommand(
		a.tasksCreateCmd(),
		a.tasksListCmd(),
		a.tasksGetCmd(),
		a.tasksCancelCmd(),
		a.tasksTranscriptCmd(),
	)
	return cmd
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", reelclient.ErrInvalidTaskID, arg)
	}
	return id, nil
}

// renderTasks prints v (one task or a list) with a card-style table.
func (a *app) renderTasks(cmd *cobra.Command, v any, tasks []reelclient.Task) error {
	return render(cmd.OutOrStdout(), a.settings.Output, v, func(tw *tabwriter.Writer) {
		row(tw, "TASK", "STATUS", "URL", "ACTIONS")
		for _, t := range tasks {
			card := reelclient.CardFor(t)
			actions := make([]string, 0, len(card.Actions))
			for _, act := range card.Actions {
				actions = append(actions, string(act))
			}
			row(tw, card.Title, card.StatusLabel, card.URL, strings.Join(actions, ","))
		}
	})
}

// taskCommand wires a command taking one task id.
func (a *app) taskCommand(use, short string, call func(cmd *cobra.Command, c *reelclient.Client, id int64) (*reelclient.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: a.withClient(func(cmd *cobra.Command, c *reelclient.Client, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			task, err := call(cmd, c, id)
			if err != nil {
				return err
			}
			return a.renderTasks(cmd, task, []reelclient.Task{*task})
		}),
	}
}

func (a *app) tasksCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <url>",
		Short: "Submit a reel URL for processing",
		Args:  cobra.ExactArgs(1),
		RunE: a.withClient(func(cmd *cobra.Command, c *reelclient.Client, args []string) error {
			task, err := c.CreateTask(cmd.Context(), reelclient.TaskCreate{URL: args[0]})
			if err != nil {
				return err
			}
			return a.renderTasks(cmd, task, []reelclient.Task{*task})
		}),
	}
}

func (a *app) tasksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: a.withClient(func(cmd *cobra.Command, c *reelclient.Client, _ []string) error {
			tasks, err := c.ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			return a.renderTasks(cmd, tasks, tasks)
		}),
	}
}

func (a *app) tasksGetCmd() *cobra.Command {
	return a.taskCommand("get <id>", "Show one task",
		func(cmd *cobra.Command, c *reelclient.Client, id int64) (*reelclient.Task, error) {
			return c.GetTask(cmd.Context(), id)
		})
}

func (a *app) tasksCancelCmd() *cobra.Command {
	return a.taskCommand("cancel <id>", "Cancel a pending or processing task",
		func(cmd *cobra.Command, c *reelclient.Client, id int64) (*reelclient.Task, error) {
			return c.CancelTask(cmd.Context(), id)
		})
}

func (a *app) tasksTranscriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <id>",
		Short: "Print the transcript of a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: a.withClient(func(cmd *cobra.Command, c *reelclient.Client, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			tr, err := c.GetTranscript(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), a.settings.Output, tr, func(tw *tabwriter.Writer) {
				if lang := deref(tr.Language); lang != "" {
					row(tw, "language:", lang)
				}
				if topics := tr.TopicList(); len(topics) > 0 {
					row(tw, "topics:", strings.Join(topics, ", "))
				}
				fmt.Fprintln(tw)
				fmt.Fprintln(tw, tr.Text())
			})
		}),
	}
}
