package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hylla/kanban/internal/adapters/server"
	servercommon "github.com/hylla/kanban/internal/adapters/server/common"
	"github.com/hylla/kanban/internal/app"
	"github.com/hylla/kanban/internal/domain"
	"github.com/hylla/kanban/internal/tui"
	"github.com/spf13/cobra"
)

// startLayouts lists the accepted --start formats. Times without a zone are UTC.
var startLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04"}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "kanban",
		Short:         "Schedule tasks, epics and subtasks without overlaps",
		Version:       version,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          c.withService("tui", c.runTUI),
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config TOML")
	flags.StringVar(&c.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&c.appName, "app", c.appName, "application name for config/data path resolution")
	flags.BoolVar(&c.devMode, "dev", c.devMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&c.backend, "backend", "", "storage backend override: sqlite, csv, postgres or memory")

	root.AddCommand(
		newTUICommand(c),
		newServeCommand(c),
		newAddCommand(c),
		newShowCommand(c),
		newUpdateCommand(c),
		newDeleteCommand(c),
		newStatusCommand(c),
		newListCommand(c),
		newSubtasksCommand(c),
		newPrioritizedCommand(c),
		newClearCommand(c),
		newExportCommand(c),
		newImportCommand(c),
		newPathsCommand(c),
	)
	return root
}

func newTUICommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive board",
		Args:  cobra.NoArgs,
		RunE:  c.withService("tui", c.runTUI),
	}
}

func (c *cli) runTUI(_ context.Context, svc *app.Service) error {
	keys := c.cfg.Keys
	m := tui.NewModel(svc, tui.WithKeyConfig(tui.KeyConfig{
		AddItem:     keys.AddItem,
		DeleteItem:  keys.DeleteItem,
		CycleStatus: keys.CycleStatus,
		CopyItem:    keys.CopyItem,
		NextView:    keys.NextView,
	}))
	c.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

func newServeCommand(c *cli) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
		corsOrigin  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint (default from config)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (default from config)")
	cmd.Flags().StringVar(&corsOrigin, "cors-origin", "", "Access-Control-Allow-Origin value (default from config)")
	cmd.RunE = c.withService("serve", func(ctx context.Context, svc *app.Service) error {
		cfg := c.cfg.Server
		return serveCommandRunner(ctx, server.Config{
			HTTPBind:        firstNonEmpty(httpBind, cfg.HTTPBind),
			APIEndpoint:     firstNonEmpty(apiEndpoint, cfg.APIEndpoint),
			MCPEndpoint:     firstNonEmpty(mcpEndpoint, cfg.MCPEndpoint),
			CORSAllowOrigin: firstNonEmpty(corsOrigin, cfg.CORSAllowOrigin),
			ServerName:      c.appName,
			ServerVersion:   version,
		}, server.Dependencies{
			Items:  servercommon.NewAppServiceAdapter(svc),
			Logger: c.logger.Component("http"),
		})
	})
	return cmd
}

// itemFlags holds the field flags shared by add and update.
type itemFlags struct {
	kind        string
	name        string
	description string
	start       string
	duration    int64
	epic        int
	status      string
}

func (f *itemFlags) register(cmd *cobra.Command, withKind bool) {
	if withKind {
		cmd.Flags().StringVarP(&f.kind, "type", "t", "task", "item type: task, epic or subtask")
	}
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "item name")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "markdown description")
	cmd.Flags().StringVar(&f.start, "start", "", "start time (RFC3339 or \"2006-01-02 15:04\" UTC)")
	cmd.Flags().Int64Var(&f.duration, "duration", 0, "duration in minutes")
	cmd.Flags().IntVar(&f.epic, "epic", 0, "parent epic id (subtasks only)")
	cmd.Flags().StringVar(&f.status, "status", "", "status: NEW, IN_PROGRESS or DONE")
}

// apply overlays every flag the user set onto in.
func (f *itemFlags) apply(cmd *cobra.Command, in *domain.ItemInput) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		in.Name = f.name
	}
	if changed("description") {
		in.Description = f.description
	}
	if changed("start") {
		start, err := parseStart(f.start)
		if err != nil {
			return err
		}
		in.StartTime = start
	}
	if changed("duration") {
		d, err := domain.MinutesDuration(f.duration)
		if err != nil {
			return err
		}
		in.Duration = &d
	}
	if changed("epic") {
		in.EpicID = f.epic
	}
	if changed("status") {
		status, err := domain.ParseStatus(f.status)
		if err != nil {
			return err
		}
		in.Status = status
	}
	return nil
}

func newAddCommand(c *cli) *cobra.Command {
	var flags itemFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task, epic or subtask",
		Args:  cobra.NoArgs,
	}
	flags.register(cmd, true)
	_ = cmd.MarkFlagRequired("name")
	cmd.RunE = c.withService("add", func(ctx context.Context, svc *app.Service) error {
		kind, err := domain.ParseKind(flags.kind)
		if err != nil {
			return err
		}
		in := domain.ItemInput{Kind: kind, EpicID: domain.UnassignedID}
		if err := flags.apply(cmd, &in); err != nil {
			return err
		}
		item, err := domain.NewItem(in)
		if err != nil {
			return err
		}
		added, err := svc.AddItem(ctx, item)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(c.stdout, "added #%d %s %q\n", added.ID, added.Kind.Label(), added.Name)
		return err
	})
	return cmd
}

// showWidth is the wrap width for rendered item details.
const showWidth = 80

func newShowCommand(c *cli) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print raw markdown")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return c.withService("show", func(ctx context.Context, svc *app.Service) error {
			item, err := svc.GetItem(ctx, id)
			if err != nil {
				return err
			}
			out := tui.ItemMarkdown(item)
			if !plain {
				if out, err = tui.RenderItem(item, showWidth); err != nil {
					return err
				}
				out += "\n"
			}
			_, err = io.WriteString(c.stdout, out)
			return err
		})(cmd, args)
	}
	return cmd
}

func newUpdateCommand(c *cli) *cobra.Command {
	var flags itemFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace fields of one item; unset flags keep their values",
		Args:  cobra.ExactArgs(1),
	}
	flags.register(cmd, false)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return c.withService("update", func(ctx context.Context, svc *app.Service) error {
			existing, err := svc.PeekItem(ctx, id)
			if err != nil {
				return err
			}
			in := domain.ItemInput{
				ID:          &existing.ID,
				Kind:        existing.Kind,
				Name:        existing.Name,
				Description: existing.Description,
				Status:      existing.Status,
				StartTime:   existing.StartTime,
				Duration:    existing.Duration,
				EpicID:      existing.EpicID,
			}
			if err := flags.apply(cmd, &in); err != nil {
				return err
			}
			item, err := domain.NewItem(in)
			if err != nil {
				return err
			}
			updated, err := svc.UpdateItem(ctx, id, item)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.stdout, "updated #%d %s %q\n", updated.ID, updated.Status, updated.Name)
			return err
		})(cmd, args)
	}
	return cmd
}

func newDeleteCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete items; deleting an epic deletes its subtasks",
		Args:  cobra.MinimumNArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ids := make([]int, 0, len(args))
		for _, raw := range args {
			id, err := parseID(raw)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return c.withService("delete", func(ctx context.Context, svc *app.Service) error {
			var deleted []int
			for _, id := range ids {
				removed, err := svc.DeleteItem(ctx, id)
				if err != nil {
					return err
				}
				deleted = append(deleted, removed...)
			}
			_, err := fmt.Fprintf(c.stdout, "deleted %s\n", joinIDs(deleted))
			return err
		})(cmd, args)
	}
	return cmd
}

func newStatusCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id> <NEW|IN_PROGRESS|DONE>",
		Short: "Change the status of a task or subtask",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		status, err := domain.ParseStatus(args[1])
		if err != nil {
			return err
		}
		return c.withService("status", func(ctx context.Context, svc *app.Service) error {
			updated, err := svc.UpdateStatus(ctx, id, status)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.stdout, "#%d is %s\n", updated.ID, updated.Status)
			return err
		})(cmd, args)
	}
	return cmd
}

func newListCommand(c *cli) *cobra.Command {
	var kindFlag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, optionally of one type",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVarP(&kindFlag, "type", "t", "", "only list task, epic or subtask items")
	cmd.RunE = c.withService("list", func(ctx context.Context, svc *app.Service) error {
		list := svc.ListItems
		if strings.TrimSpace(kindFlag) != "" {
			kind, err := domain.ParseKind(kindFlag)
			if err != nil {
				return err
			}
			switch kind {
			case domain.KindEpic:
				list = svc.ListEpics
			case domain.KindSubTask:
				list = svc.ListSubTasks
			default:
				list = func(ctx context.Context) ([]domain.Item, error) {
					items, err := svc.ListItems(ctx)
					return filterKind(items, domain.KindTask), err
				}
			}
		}
		items, err := list(ctx)
		if err != nil {
			return err
		}
		return writeItemTable(c.stdout, items)
	})
	return cmd
}

func newSubtasksCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtasks <epic-id>",
		Short: "List the subtasks of one epic",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return c.withService("subtasks", func(ctx context.Context, svc *app.Service) error {
			items, err := svc.ListEpicSubTasks(ctx, id)
			if err != nil {
				return err
			}
			return writeItemTable(c.stdout, items)
		})(cmd, args)
	}
	return cmd
}

func newPrioritizedCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "prioritized",
		Short: "List scheduled tasks and subtasks by start time",
		Args:  cobra.NoArgs,
		RunE: c.withService("prioritized", func(ctx context.Context, svc *app.Service) error {
			items, err := svc.Prioritized(ctx)
			if err != nil {
				return err
			}
			return writeItemTable(c.stdout, items)
		}),
	}
}

func newClearCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every item",
		Args:  cobra.NoArgs,
		RunE: c.withService("clear", func(ctx context.Context, svc *app.Service) error {
			if err := svc.DeleteAll(ctx); err != nil {
				return err
			}
			_, err := fmt.Fprintln(c.stdout, "deleted all items")
			return err
		}),
	}
}

func newExportCommand(c *cli) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of every item",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.RunE = c.withService("export", func(ctx context.Context, svc *app.Service) error {
		snap, err := svc.ExportSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("export snapshot: %w", err)
		}
		encoded, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("encode snapshot json: %w", err)
		}
		encoded = append(encoded, '\n')
		if outPath == "-" {
			if _, err := c.stdout.Write(encoded); err != nil {
				return fmt.Errorf("write snapshot to stdout: %w", err)
			}
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("create export output dir: %w", err)
		}
		if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
			return fmt.Errorf("write export file: %w", err)
		}
		return nil
	})
	return cmd
}

func newImportCommand(c *cli) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace every item with a JSON snapshot",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	_ = cmd.MarkFlagRequired("in")
	cmd.RunE = c.withService("import", func(ctx context.Context, svc *app.Service) error {
		content, err := os.ReadFile(inPath)
		if err != nil {
			return fmt.Errorf("read import file: %w", err)
		}
		var snap app.Snapshot
		if err := json.Unmarshal(content, &snap); err != nil {
			return fmt.Errorf("decode snapshot json: %w", err)
		}
		if err := svc.ImportSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("import snapshot: %w", err)
		}
		_, err = fmt.Fprintf(c.stdout, "imported %d items\n", len(snap.Items))
		return err
	})
	return cmd
}

func newPathsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := c.resolvePaths(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "app: %s\n", c.appName)
			_, _ = fmt.Fprintf(c.stdout, "dev_mode: %t\n", c.devMode)
			_, _ = fmt.Fprintf(c.stdout, "config: %s\n", c.paths.ConfigPath)
			_, _ = fmt.Fprintf(c.stdout, "data_dir: %s\n", c.paths.DataDir)
			_, _ = fmt.Fprintf(c.stdout, "db: %s\n", c.paths.DBPath)
			_, _ = fmt.Fprintf(c.stdout, "csv: %s\n", c.paths.CSVPath)
			return nil
		},
	}
}

// writeItemTable renders items as a bordered table.
func writeItemTable(w io.Writer, items []domain.Item) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no items")
		return err
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, itemRow(item))
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("ID", "TYPE", "STATUS", "NAME", "START", "END", "EPIC").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func itemRow(item domain.Item) []string {
	start, end, epic := "", "", ""
	if item.StartTime != nil {
		start = item.StartTime.Format("2006-01-02 15:04")
	}
	if e := item.EndTime(); e != nil {
		end = e.Format("2006-01-02 15:04")
	}
	switch item.Kind {
	case domain.KindSubTask:
		epic = "#" + strconv.Itoa(item.EpicID)
	case domain.KindEpic:
		epic = fmt.Sprintf("%d subtasks", len(item.SubTaskIDs))
	}
	return []string{strconv.Itoa(item.ID), item.Kind.Label(), string(item.Status), item.Name, start, end, epic}
}

func filterKind(items []domain.Item, kind domain.Kind) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

// parseStart accepts RFC3339 or a zone-less UTC timestamp.
func parseStart(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range startLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("invalid start %q: use RFC3339 or \"2006-01-02 15:04\"", raw)
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func joinIDs(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, "#"+strconv.Itoa(id))
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
