package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/avelinc/edgegate/internal/adminclient"
	"github.com/avelinc/edgegate/internal/store"
)

// Flags shared by the route subcommands. The password comes from the flag
// or EDGEGATE_ADMIN_PASSWORD; it is read fresh on every invocation so a
// rotation between calls just works.
var (
	routeServer   string
	routePassword string

	addID         string
	addPathEqual  string
	addPathPrefix string
	addBackend    string
	addAction     string
	addPriority   int

	removeID string
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Manage a single owned rule through the admin API",
	Long: `Scoped rule management for autonomous helper processes that own exactly
one rule id: add it on start, remove it on stop. Adds are idempotent by id.
This is not a general route-table editor; concurrent edits of the whole
document are unsupported.`,
}

var routeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an owned rule (idempotent by id)",
	RunE:  runRouteAdd,
}

var routeRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove an owned rule by id",
	RunE:  runRouteRemove,
}

func init() {
	routeCmd.PersistentFlags().StringVar(&routeServer, "server", "http://127.0.0.1:8080",
		"gateway base URL")
	routeCmd.PersistentFlags().StringVar(&routePassword, "password", "",
		"admin password (default: $EDGEGATE_ADMIN_PASSWORD)")

	routeAddCmd.Flags().StringVar(&addID, "id", "", "rule id (required)")
	routeAddCmd.Flags().StringVar(&addPathEqual, "path-equal", "", "match the path exactly")
	routeAddCmd.Flags().StringVar(&addPathPrefix, "path-prefix", "", "match a path prefix")
	routeAddCmd.Flags().StringVar(&addBackend, "backend", "", "backend URL (required)")
	routeAddCmd.Flags().StringVar(&addAction, "action", "proxy", "proxy or redirect")
	routeAddCmd.Flags().IntVar(&addPriority, "priority", 0, "rule priority, higher wins")
	_ = routeAddCmd.MarkFlagRequired("id")
	_ = routeAddCmd.MarkFlagRequired("backend")

	routeRemoveCmd.Flags().StringVar(&removeID, "id", "", "rule id (required)")
	_ = routeRemoveCmd.MarkFlagRequired("id")

	routeCmd.AddCommand(routeAddCmd)
	routeCmd.AddCommand(routeRemoveCmd)
	rootCmd.AddCommand(routeCmd)
}

func adminPassword() (string, error) {
	if routePassword != "" {
		return routePassword, nil
	}
	if pw := os.Getenv("EDGEGATE_ADMIN_PASSWORD"); pw != "" {
		return pw, nil
	}
	return "", errors.New("no admin password: set --password or EDGEGATE_ADMIN_PASSWORD")
}

func runRouteAdd(cmd *cobra.Command, _ []string) error {
	password, err := adminPassword()
	if err != nil {
		return err
	}

	rule := store.Rule{
		ID:       addID,
		Backend:  addBackend,
		Action:   store.Action(addAction),
		Priority: addPriority,
	}
	switch {
	case addPathEqual != "" && addPathPrefix != "":
		return errors.New("set only one of --path-equal and --path-prefix")
	case addPathEqual != "":
		rule.Match = store.Equal(addPathEqual)
	case addPathPrefix != "":
		rule.Match = store.Prefix(addPathPrefix)
	default:
		return errors.New("one of --path-equal or --path-prefix is required")
	}

	client := adminclient.New(routeServer, password)
	if err := client.EnsureRule(cmd.Context(), rule); err != nil {
		return err
	}
	fmt.Printf("rule %s present\n", addID)
	return nil
}

func runRouteRemove(cmd *cobra.Command, _ []string) error {
	password, err := adminPassword()
	if err != nil {
		return err
	}

	client := adminclient.New(routeServer, password)
	if err := client.RemoveRule(cmd.Context(), removeID); err != nil {
		return err
	}
	fmt.Printf("rule %s absent\n", removeID)
	return nil
}
