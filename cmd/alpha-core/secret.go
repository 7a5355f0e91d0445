// ABOUTME: The secret command manages variant secret bindings in the local store
// ABOUTME: Values are JSON blobs, validated by the store before they are written

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/ahi-governance/alpha-core/internal/store"
)

func runSecret(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: alpha-core secret set NAME JSON | list | delete NAME")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	switch args[0] {
	case "set":
		if len(args) != 3 {
			return errors.New("usage: alpha-core secret set NAME JSON")
		}
		return secretSet(ctx, s, args[1], args[2])
	case "list":
		return secretList(ctx, s)
	case "delete", "rm":
		if len(args) != 2 {
			return errors.New("usage: alpha-core secret delete NAME")
		}
		if err := s.DeleteSecret(ctx, args[1]); err != nil {
			return fmt.Errorf("deleting secret: %w", err)
		}
		color.New(color.FgGreen).Printf("  ✓ Deleted %s\n", args[1])
		return nil
	default:
		return fmt.Errorf("unknown secret subcommand: %s", args[0])
	}
}

func secretSet(ctx context.Context, s store.SecretsStore, name, value string) error {
	var createdBy *string
	if user := os.Getenv("USER"); user != "" {
		createdBy = &user
	}

	if err := s.SetSecret(ctx, &store.Secret{Key: name, Value: value, CreatedBy: createdBy}); err != nil {
		return fmt.Errorf("storing secret: %w", err)
	}
	color.New(color.FgGreen).Printf("  ✓ Stored %s\n", name)
	return nil
}

func secretList(ctx context.Context, s store.SecretsStore) error {
	secrets, err := s.ListAllSecrets(ctx)
	if err != nil {
		return fmt.Errorf("listing secrets: %w", err)
	}
	if len(secrets) == 0 {
		fmt.Println("No secrets stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tUPDATED\tSIZE")
	for _, sec := range secrets {
		fmt.Fprintf(w, "%s\t%s\t%d\n", sec.Key, sec.UpdatedAt.Format("2006-01-02 15:04"), len(sec.Value))
	}
	return w.Flush()
}
