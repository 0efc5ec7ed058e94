package main

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk/internal/faqseed"
)

var faqCmd = &cobra.Command{
	Use:   "faq",
	Short: "Maintain the FAQ catalogue",
}

var faqImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Upsert FAQ categories and items from a YAML seed",
	RunE:  runFAQImport,
}

var faqSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Backfill missing keywords and short texts",
	RunE:  runFAQSync,
}

var faqSeedFile string

func init() {
	faqImportCmd.Flags().StringVarP(&faqSeedFile, "file", "f", "", "seed file (defaults to the bundled catalogue)")
	faqCmd.AddCommand(faqImportCmd)
	faqCmd.AddCommand(faqSyncCmd)
}

func runFAQImport(cmd *cobra.Command, _ []string) error {
	seed, err := faqseed.Default()
	if faqSeedFile != "" {
		seed, err = faqseed.LoadFile(faqSeedFile)
	}
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), bootstrapOptions{withRedis: true})
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.faq.Import(cmd.Context(), seed)
	if err != nil {
		return err
	}
	cmd.Printf("categories: %d, created: %d, updated: %d\n", result.Categories, result.Created, result.Updated)
	return nil
}

func runFAQSync(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), bootstrapOptions{withRedis: true})
	if err != nil {
		return err
	}
	defer a.Close()

	changed, err := a.faq.Sync(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("items changed: %d\n", changed)
	return nil
}
