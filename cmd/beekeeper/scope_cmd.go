package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity"
)

func newScopeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Work with scope strings",
	}

	cmd.AddCommand(newScopeParseCmd())

	return cmd
}

type scopeReport struct {
	Input      string              `json:"input"`
	Canonical  string              `json:"canonical,omitempty"`
	OwnerID    identity.ID         `json:"owner_id,omitempty"`
	Name       string              `json:"name,omitempty"`
	Permission identity.Permission `json:"permission,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func newScopeParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <owner-id:name:permission>...",
		Short: "Parse and canonicalize scopes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := make([]scopeReport, 0, len(args))
			var errs []error
			for _, in := range args {
				r := scopeReport{Input: in}
				s, err := identity.ParseScope(in)
				if err != nil {
					r.Error = fault.Message(err)
					errs = append(errs, fmt.Errorf("%q: %w", in, err))
				} else {
					r.Canonical = s.String()
					r.OwnerID, r.Name, r.Permission = s.OwnerID, s.Name, s.Permission
				}
				reports = append(reports, r)
			}
			if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
}
