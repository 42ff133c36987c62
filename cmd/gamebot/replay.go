package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/okian/gamebot/internal/adapters/repository"
	"github.com/okian/gamebot/internal/domain/model"
	"github.com/okian/gamebot/internal/domain/normalize"
	"github.com/okian/gamebot/internal/domain/types"
)

type replayOptions struct {
	kind     string
	action   string
	file     string
	delivery string
	apply    bool
}

// replayResult is what replay prints.
type replayResult struct {
	DeliveryID string                 `json:"delivery_id"`
	Kind       model.Kind             `json:"kind"`
	Repository string                 `json:"repository"`
	Username   string                 `json:"username"`
	ExpEarned  int64                  `json:"exp_earned"`
	Commits    []model.ResolvedCommit `json:"commits,omitempty"`
	Entry      *types.LedgerEntry     `json:"entry,omitempty"`
}

func replayCmd() *cobra.Command {
	var o replayOptions
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Score a saved webhook payload offline",
		Long: `Normalize, resolve and score one webhook payload and print the result.

With --apply the increment is merged into the configured ledger.

Examples:
  gamebot replay --kind push --file push.json
  gamebot replay --kind issues --file closed.json --apply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReplay(cmd, o)
		},
	}
	cmd.Flags().StringVarP(&o.kind, "kind", "k", normalize.EventPush, "webhook event kind (push, issues)")
	cmd.Flags().StringVarP(&o.action, "action", "a", "", "event action; read from the payload when empty")
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "payload file")
	cmd.Flags().StringVar(&o.delivery, "delivery", "", "delivery id; generated when empty")
	cmd.Flags().BoolVar(&o.apply, "apply", false, "merge the result into the configured ledger")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runReplay(cmd *cobra.Command, o replayOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := bootstrap(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	body, err := os.ReadFile(o.file)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	if o.action == "" {
		o.action = normalize.PeekAction(body)
	}
	if !normalize.Supported(o.kind, o.action) {
		return fmt.Errorf("%w: %s/%s", normalize.ErrUnsupportedEvent, o.kind, o.action)
	}
	if o.delivery == "" {
		o.delivery = uuid.NewString()
	}

	var store repository.Store
	if o.apply {
		store, err = openStore(ctx, cfg)
	} else {
		store = repository.NewMemoryStore(ctx)
	}
	if err != nil {
		return err
	}
	svc, err := newService(cfg, store)
	if err != nil {
		_ = store.Close()
		return err
	}
	defer svc.Stop()

	ev, err := svc.Normalize(o.kind, o.action, body)
	if err != nil {
		return err
	}
	scored, inc, err := svc.Evaluate(ctx, o.delivery, ev)
	if err != nil {
		return err
	}

	res := replayResult{
		DeliveryID: o.delivery,
		Kind:       ev.Kind(),
		Repository: ev.Repository().FullName,
		Username:   ev.Actor().Login,
		ExpEarned:  scored.ExperienceAwarded,
		Commits:    scored.ResolvedCommits,
	}
	if o.apply {
		entry, err := svc.Apply(ctx, scored, time.Now(), inc)
		if err != nil {
			return err
		}
		le := types.FromEntry(entry)
		res.Entry = &le
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
