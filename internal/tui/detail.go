package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/hylla/kanban/internal/domain"
)

// minDetailWidth keeps narrow terminals from collapsing the detail pane.
const minDetailWidth = 24

// ItemMarkdown renders one item as a markdown document for detail views.
func ItemMarkdown(item domain.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Name)
	fmt.Fprintf(&b, "**#%d** %s, %s\n\n", item.ID, item.Kind.Label(), item.Status)
	if span := formatSpan(item); span != "" {
		fmt.Fprintf(&b, "- when: %s\n", span)
	}
	if item.Duration != nil {
		fmt.Fprintf(&b, "- duration: %s\n", item.Duration.String())
	}
	switch item.Kind {
	case domain.KindSubTask:
		fmt.Fprintf(&b, "- epic: #%d\n", item.EpicID)
	case domain.KindEpic:
		fmt.Fprintf(&b, "- subtasks: %s\n", subTaskRefs(item.SubTaskIDs))
	}
	if item.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", item.Description)
	}
	return b.String()
}

func subTaskRefs(ids []int) string {
	if len(ids) == 0 {
		return "none"
	}
	refs := make([]string, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, "#"+strconv.Itoa(id))
	}
	return strings.Join(refs, ", ")
}

// RenderItem styles one item for a terminal of the given width.
func RenderItem(item domain.Item, width int) (string, error) {
	var r detailRenderer
	return r.render(item, width)
}

// detailRenderer keeps one glamour renderer per wrap width.
type detailRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

func (r *detailRenderer) render(item domain.Item, width int) (string, error) {
	width = max(width, minDetailWidth)
	if r.renderer == nil || r.width != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "", fmt.Errorf("build markdown renderer: %w", err)
		}
		r.renderer = renderer
		r.width = width
	}
	out, err := r.renderer.Render(ItemMarkdown(item))
	if err != nil {
		return "", fmt.Errorf("render item #%d: %w", item.ID, err)
	}
	return strings.TrimRight(out, "\n"), nil
}
