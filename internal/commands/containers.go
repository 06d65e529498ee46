package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/datalift/datalift/internal/trace"
)

type ContainersCmd struct {
	Access bool `flag:"access" help:"Include public access levels."`
}

func (cmd *ContainersCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, span := trace.Start(ctx, "ContainersCmdRun")
	defer span.End()

	if !cmd.Access {
		names, err := globals.Store.ListContainers(ctx)
		if err != nil {
			return trace.NewError(span, "failed to list containers: %w", err)
		}

		for _, name := range names {
			fmt.Println(name)
		}

		return nil
	}

	containers, err := globals.Store.ListContainersWithAccess(ctx)
	if err != nil {
		return trace.NewError(span, "failed to list containers: %w", err)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Container", "Public Access")

	for _, c := range containers {
		access := c.PublicAccess
		if access == "" {
			access = "private"
		}
		t.Row(c.Name, access)
	}

	globals.Printer.Info("📦", "Containers for account %s:\n%s", globals.Store.AccountName(), t.Render())

	return nil
}

type BlobsCmd struct{}

func (cmd *BlobsCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, span := trace.Start(ctx, "BlobsCmdRun")
	defer span.End()

	if globals.Common.Container == "" {
		return trace.NewError(span, "no storage container configured")
	}

	names, err := globals.Store.ListBlobs(ctx, globals.Common.Container)
	if err != nil {
		return trace.NewError(span, "failed to list blobs: %w", err)
	}

	for _, name := range names {
		fmt.Println(name)
	}

	return nil
}
