package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docrag/internal/httpapi"
	"docrag/internal/tui"
)

var (
	crawlMaxPages int
	crawlSingle   bool
	askTopK       int
	askJSON       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Ingest files (txt, md, csv, html, pdf, docx); glob patterns allowed",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var crawlCmd = &cobra.Command{
	Use:   "crawl URL",
	Short: "Crawl a website and ingest its pages",
	Args:  cobra.ExactArgs(1),
	RunE:  runCrawl,
}

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Answer a question from the indexed chunks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show chunk counts per source",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Ask questions interactively",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	crawlCmd.Flags().IntVar(&crawlMaxPages, "max-pages", 0, "maximum pages to crawl (0 uses the configured default)")
	crawlCmd.Flags().BoolVar(&crawlSingle, "single", false, "ingest only the given page without following links")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (0 uses the configured default)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(serveCmd, ingestCmd, crawlCmd, askCmd, statsCmd, tuiCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	st := a.svc.Stats()
	a.log.Info("store ready", "chunks", st.Chunks, "sources", len(st.Sources), "embedder", st.Embedder)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	srv := httpapi.New(a.svc, httpapi.Config{MaxUploadBytes: int64(a.cfg.Server.MaxUploadMB) << 20}, a.log)
	return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	n, err := a.svc.IngestFiles(cmd.Context(), args)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cmd.Printf("Ingested %d chunks (store now holds %d)\n", n, a.store.Len())
	return nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	if crawlSingle {
		n, err := a.svc.IngestPage(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ingest page failed: %w", err)
		}
		cmd.Printf("Ingested %d chunks from %s\n", n, args[0])
		return nil
	}
	report, err := a.svc.CrawlSite(cmd.Context(), args[0], crawlMaxPages)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}
	cmd.Printf("Crawled %d pages, ingested %d chunks\n", report.Pages, report.Chunks)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	ans, err := a.svc.Ask(cmd.Context(), strings.Join(args, " "), askTopK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	if askJSON {
		data, err := json.MarshalIndent(ans, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Println(ans.Text)
	if len(ans.Matches) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, m := range ans.Matches {
			cmd.Printf("  [%d] %s (%s, score %.3f)\n", i+1, m.Chunk.ID, m.Chunk.Source, m.Score)
		}
	}
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(a.svc.Stats(), "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	st := a.svc.Stats()
	header := fmt.Sprintf("%d chunks from %d sources, embedder %s", st.Chunks, len(st.Sources), st.Embedder)
	m := tui.New(a.svc, a.cfg.Retriever.TopK, header)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
