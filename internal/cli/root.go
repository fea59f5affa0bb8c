// Package cli implements marketctl, the operator tool for migrations,
// credit grants and external feed imports.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"homebids/internal/config"
	"homebids/internal/models"
	"homebids/internal/repository"
	"homebids/internal/service"

	"github.com/spf13/cobra"
)

// Backend is what the commands operate on.
type Backend interface {
	MigrateUp() error
	MigrateDown() error
	GrantCredits(ctx context.Context, contractorId string, amount models.Credits) (models.CreditEntry, error)
	GetBalance(ctx context.Context, actor models.Actor) (models.CreditAccount, error)
	ImportExternalSnapshot(ctx context.Context, ratings []models.ExternalRating, reviews []models.Review) error
	Close() error
}

type RootOptions struct {
	Format string // "json" | "text"

	// Open connects the backend. Replaced in tests.
	Open func() (Backend, error)
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{Open: OpenBackend})
}

func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marketctl",
		Short: "Operate the homebids bidding core",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range ValidFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCreditsCommand(opts))
	cmd.AddCommand(NewFeedCommand(opts))

	return cmd
}

type backend struct {
	*service.Service
	repo *repository.Repository
}

func (b *backend) MigrateUp() error   { return b.repo.MigrateUp() }
func (b *backend) MigrateDown() error { return b.repo.MigrateDown() }
func (b *backend) Close() error       { return b.repo.Close() }

// OpenBackend connects to postgres using the environment configuration.
// Migrations are never applied implicitly.
func OpenBackend() (Backend, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}
	cfg.AutoMigrateUp = "false"
	cfg.AutoMigrateDown = "false"

	repo, err := repository.NewRepository(nil, &cfg.PostgresConfig)
	if err != nil {
		return nil, err
	}

	svc, err := service.NewService(repo, cfg.PolicyConfig)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return &backend{Service: svc, repo: repo}, nil
}

func withBackend(opts *RootOptions, fn func(b Backend) error) (err error) {
	b, err := opts.Open()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(b)
}

// output prints v as json, or text as-is in text mode.
func output(w io.Writer, opts *RootOptions, v any, text string) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
