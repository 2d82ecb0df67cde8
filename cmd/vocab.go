package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temporal-communities/geolit/internal/areacode"
	"github.com/temporal-communities/geolit/internal/fetcher"
)

var vocabCmd = &cobra.Command{
	Use:   "vocab",
	Short: "Manage the geographic area code vocabulary",
}

var vocabFetchCmd = &cobra.Command{
	Use:   "fetch [path]",
	Short: "Download the vocabulary RDF to a local file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Vocab.File
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			path = "geographic-area-code.rdf"
		}

		transport, err := fetcher.New("1/second")
		if err != nil {
			return eris.Wrap(err, "vocabulary transport")
		}
		defer transport.Close()

		resp, err := transport.Fetch(cmd.Context(), cfg.Vocab.URL)
		if err != nil {
			return eris.Wrapf(err, "download vocabulary %s", cfg.Vocab.URL)
		}
		// parse before writing so a broken download never lands on disk
		if _, err := areacode.NewMapper(resp.Body); err != nil {
			return err
		}
		if err := os.WriteFile(path, resp.Body, 0o644); err != nil {
			return eris.Wrapf(err, "write vocabulary %s", path)
		}
		zap.L().Info("vocabulary saved",
			zap.String("url", cfg.Vocab.URL),
			zap.String("path", path),
			zap.Int("bytes", len(resp.Body)),
		)
		return nil
	},
}

var vocabLookupCmd = &cobra.Command{
	Use:   "lookup <code-or-label>",
	Short: "Resolve an area code or country label to its gazetteer id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mapper, err := loadMapper(cmd.Context())
		if err != nil {
			return err
		}

		query := args[0]
		code := query
		if !strings.HasPrefix(code, areacode.VocabularyPrefix) {
			if mapped, ok := mapper.CodeForLabel(query); ok {
				code = mapped
			} else {
				code = areacode.VocabularyPrefix + query
			}
		}

		id, ok := mapper.GeoNamesID(code)
		if !ok {
			return eris.Errorf("no gazetteer id for %q", query)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", code, id)
		return nil
	},
}

func init() {
	vocabCmd.AddCommand(vocabFetchCmd, vocabLookupCmd)
	rootCmd.AddCommand(vocabCmd)
}
