package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuriy-kovalchuk/yk-dns-console/internal/config"
	"github.com/yuriy-kovalchuk/yk-dns-console/internal/controller"
	"github.com/yuriy-kovalchuk/yk-dns-console/internal/dns"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List DNS records in store order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, release, err := a.setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer release()
			s := c.Load(cmd.Context())
			if s.Error != "" {
				return errors.New(s.Error)
			}
			printRecords(cmd.OutOrStdout(), s.Records)
			return nil
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add DOMAIN IP",
		Short: "Create a DNS record with no expiration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, release, err := a.setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer release()
			s := c.Create(cmd.Context(), dns.Draft{Domain: args[0], IP: args[1]})
			if mutationFailed(s) {
				return errors.New(s.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s -> %s%s\n", strings.TrimSpace(args[0]), strings.TrimSpace(args[1]), reloadNote(s))
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete DOMAIN",
		Short: "Delete the DNS record for DOMAIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, release, err := a.setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer release()

			ask := promptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
			confirmed := false
			confirm := controller.ConfirmFunc(func(domain string) bool {
				confirmed = yes || ask.Confirm(domain)
				return confirmed
			})

			s := c.Remove(cmd.Context(), args[0], confirm)
			if !confirmed {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			if mutationFailed(s) {
				return errors.New(s.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s%s\n", args[0], reloadNote(s))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking for confirmation")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Create a DNS record for every entry of a domain map file",
		Long: `Reads a YAML file of "domain: ip" entries and creates one record per entry,
in domain order. Existing records with the same domain are overwritten by the store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dm, err := config.LoadDomainMap(args[0])
			if err != nil {
				return fmt.Errorf("unable to load domain map: %w", err)
			}

			c, release, err := a.setup(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			failed := 0
			for _, e := range dm.Entries() {
				s := c.Create(cmd.Context(), dns.Draft{Domain: e.Domain, IP: e.IP})
				if mutationFailed(s) {
					failed++
					fmt.Fprintf(out, "  %-40s %-16s FAILED: %s\n", e.Domain, e.IP, s.Error)
				} else {
					fmt.Fprintf(out, "  %-40s %-16s created%s\n", e.Domain, e.IP, reloadNote(s))
				}
				c.DismissError()
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d records failed to import", failed, len(dm.Entries()))
			}
			return nil
		},
	}
}

// mutationFailed reports whether the create or delete itself failed. An
// error left by the reload that follows a successful mutation does not count.
func mutationFailed(s controller.State) bool {
	return s.Error != "" && s.ErrorOp != dns.OpList
}

func reloadNote(s controller.State) string {
	if s.Error == "" {
		return ""
	}
	return fmt.Sprintf(" (reload failed: %s)", s.Error)
}

// promptConfirmer asks on out and reads a y/N answer from in.
func promptConfirmer(in io.Reader, out io.Writer) controller.Confirmer {
	return controller.ConfirmFunc(func(domain string) bool {
		fmt.Fprintf(out, "Delete DNS record for %s? [y/N]: ", domain)
		line, _ := bufio.NewReader(in).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}

func printRecords(out io.Writer, records []dns.Record) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No DNS records found.")
		return
	}
	fmt.Fprintf(out, "%-40s %-16s %s\n", "DOMAIN", "IP ADDRESS", "TTL")
	fmt.Fprintln(out, strings.Repeat("-", 64))
	for _, r := range records {
		ttl := "no expiry"
		if r.TTL != dns.NoExpirationTTL {
			ttl = fmt.Sprintf("%ds", r.TTL)
		}
		fmt.Fprintf(out, "%-40s %-16s %s\n", r.Domain, r.IP, ttl)
	}
}
