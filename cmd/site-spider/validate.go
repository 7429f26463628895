package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/site-spider/pkg/config"
	"github.com/Sriram-PR/site-spider/pkg/orchestrate"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	var siteKey string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Validate loads the config file and checks every site: root URL, hosts,
selectors and ignore file. Warnings are printed but do not fail validation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				return fmt.Errorf("--config is required")
			}
			return doValidate(cmd, path, siteKey)
		},
	}
	cmd.Flags().StringVarP(&siteKey, "site", "s", "", "Site key to validate (all sites when empty)")
	return cmd
}

// doValidate prints one OK/ERROR line per site and fails if any site is invalid
func doValidate(cmd *cobra.Command, path, siteKey string) error {
	stdout := cmd.OutOrStdout()

	appCfg, err := config.Load(path)
	if err != nil {
		return err
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		return err
	}

	keys := orchestrate.GetAllSiteKeys(appCfg)
	if siteKey != "" {
		if err := orchestrate.ValidateSiteKeys(appCfg, []string{siteKey}); err != nil {
			return err
		}
		keys = []string{siteKey}
	}

	invalid := 0
	for _, key := range keys {
		siteCfg := appCfg.Sites[key]
		siteWarnings, err := siteCfg.Validate()
		if err == nil {
			_, err = config.NewSpiderOptions(siteCfg, appCfg)
		}
		if err != nil {
			fmt.Fprintf(stdout, "ERROR: [%s] %v\n", key, err)
			invalid++
			continue
		}
		for _, w := range siteWarnings {
			fmt.Fprintf(stdout, "WARN: [%s] %s\n", key, w)
		}
		fmt.Fprintf(stdout, "OK: [%s] %s\n", key, siteCfg.RootURL)
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d sites are invalid", invalid, len(keys))
	}
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return nil
}
